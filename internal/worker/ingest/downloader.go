package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/feedcloud/internal/security"
)

// RawEntry はダウンロードしたフィードから抽出した記事1件。
// 永続化前の中間表現で、サニタイズはまだ行われていない。
type RawEntry struct {
	OriginalID  string
	Title       string
	Summary     string
	Link        string
	PublishedAt time.Time
}

// Downloader はフィードURLから記事一覧を取得するインターフェース。
type Downloader interface {
	// Download はフィードを取得・パースして記事一覧を返す。
	// HTTPエラーとパースエラーはいずれも取り込み失敗として扱われる。
	Download(ctx context.Context, feedURL string) ([]RawEntry, error)
}

// HTTPDownloader はSSRF防止付きHTTPクライアントとgofeedによるDownloader実装。
type HTTPDownloader struct {
	ssrfGuard   security.SSRFGuardService
	timeout     time.Duration
	maxBodySize int64
}

// NewHTTPDownloader はHTTPDownloaderを生成する。
func NewHTTPDownloader(ssrfGuard security.SSRFGuardService, timeout time.Duration, maxBodySize int64) *HTTPDownloader {
	return &HTTPDownloader{
		ssrfGuard:   ssrfGuard,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Download はフィードを取得・パースして記事一覧を返す。
func (d *HTTPDownloader) Download(ctx context.Context, feedURL string) ([]RawEntry, error) {
	if err := d.ssrfGuard.ValidateURL(feedURL); err != nil {
		return nil, fmt.Errorf("URLの検証に失敗しました: %w", err)
	}

	client := d.ssrfGuard.NewSafeClient(d.timeout, d.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}

	req.Header.Set("User-Agent", "FeedCloud/1.0 Feed Aggregator")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("予期しないHTTPステータス: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗しました: %w", err)
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	entries := convertGofeedItems(parsedFeed.Items)

	slog.Debug("feed downloaded",
		slog.String("feed_url", feedURL),
		slog.Int("entry_count", len(entries)),
	)

	return entries, nil
}

// convertGofeedItems はgofeedの記事をRawEntryに変換する。
// original_idはGUIDを優先し、なければリンクを使用する。
// どちらもない記事は重複判定ができないためスキップする。
// 公開日時が取得できない記事は現在時刻を使用する。時刻はすべてUTCに正規化する。
func convertGofeedItems(items []*gofeed.Item) []RawEntry {
	entries := make([]RawEntry, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		originalID := item.GUID
		if originalID == "" {
			originalID = item.Link
		}
		if originalID == "" {
			continue
		}

		published := time.Now().UTC()
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}

		entries = append(entries, RawEntry{
			OriginalID:  originalID,
			Title:       item.Title,
			Summary:     item.Description,
			Link:        item.Link,
			PublishedAt: published,
		})
	}

	return entries
}

// compile-time interface check
var _ Downloader = (*HTTPDownloader)(nil)
