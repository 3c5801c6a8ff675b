// Package feed はフィード登録・管理のドメインロジックを提供する。
package feed

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/feedcloud/internal/model"
	"github.com/hitoshi/feedcloud/internal/security"
)

// detectorTimeout は検出リクエストのタイムアウト。
const detectorTimeout = 10 * time.Second

// detectorMaxBodySize は検出時に読み込むボディの上限（5MB）。
const detectorMaxBodySize = 5 * 1024 * 1024

// Candidate はHTMLから検出されたフィード候補。
type Candidate struct {
	URL    string
	IsAtom bool
}

// FeedDetector は入力URLからフィードURLを自動検出する。
// 入力がフィードそのものならそのまま返し、HTMLページなら
// headタグのalternateリンクからフィードを探す。
type FeedDetector struct {
	ssrfGuard security.SSRFGuardService
}

// NewFeedDetector はFeedDetectorを生成する。
func NewFeedDetector(ssrfGuard security.SSRFGuardService) *FeedDetector {
	return &FeedDetector{ssrfGuard: ssrfGuard}
}

// DetectFeedURL はURLがフィードかHTMLかを判定し、フィードURLを返す。
// フィードが見つからない場合はINVALID_URLエラーを返す。
func (d *FeedDetector) DetectFeedURL(ctx context.Context, inputURL string) (string, error) {
	if inputURL == "" {
		return "", model.NewInvalidURLError("URLが入力されていません")
	}

	if err := d.ssrfGuard.ValidateURL(inputURL); err != nil {
		return "", model.NewInvalidURLError(err.Error())
	}

	client := d.ssrfGuard.NewSafeClient(detectorTimeout, detectorMaxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "FeedCloud/1.0 Feed Aggregator")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", model.NewInvalidURLError("URLへのアクセスに失敗しました")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, detectorMaxBodySize))
	if err != nil {
		return "", model.NewInvalidURLError("レスポンスの読み取りに失敗しました")
	}

	contentType := resp.Header.Get("Content-Type")

	if looksLikeFeed(contentType, body) {
		return inputURL, nil
	}

	if !isHTMLContentType(contentType) {
		return "", model.NewInvalidURLError("フィードが見つかりませんでした")
	}

	candidates := parseFeedLinks(body, inputURL)
	if len(candidates) == 0 {
		return "", model.NewInvalidURLError("フィードが見つかりませんでした")
	}

	return selectBest(candidates, inputURL).URL, nil
}

// looksLikeFeed はContent-Typeとボディの先頭からRSS/Atomフィードかを判定する。
func looksLikeFeed(contentType string, body []byte) bool {
	mediaType := parseMediaType(contentType)

	switch mediaType {
	case "application/rss+xml", "application/atom+xml":
		return true
	case "text/xml", "application/xml":
		// 汎用XMLはルート要素で判定する
	default:
		return false
	}

	// 先頭4KBにXMLプロローグとルート要素が含まれる
	checkSize := 4096
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.ToLower(string(body[:checkSize]))

	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// parseFeedLinks はHTMLのheadタグからrel="alternate"のフィードリンクを検出する。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func parseFeedLinks(htmlBody []byte, baseURL string) []Candidate {
	var candidates []Candidate

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			// bodyに入ったら探索を終了
			if tagName == "body" {
				return candidates
			}
			if tagName != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" {
				continue
			}
			if linkType != "application/rss+xml" && linkType != "application/atom+xml" {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}

			candidates = append(candidates, Candidate{
				URL:    baseU.ResolveReference(ref).String(),
				IsAtom: linkType == "application/atom+xml",
			})

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return candidates
			}
		}
	}
}

// selectBest は候補から優先順位に従ってフィードを選択する。
// 優先順位: 同一ホスト > Atom > 先頭。
func selectBest(candidates []Candidate, inputURL string) *Candidate {
	inputHost := hostOf(inputURL)

	bestIdx := 0
	bestScore := -1

	for i, c := range candidates {
		score := 0
		if hostOf(c.URL) == inputHost {
			score += 100
		}
		if c.IsAtom {
			score += 10
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	return &candidates[bestIdx]
}

func parseMediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mediaType)
}

func isHTMLContentType(contentType string) bool {
	return strings.Contains(parseMediaType(contentType), "html")
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
