// Package ingest はフィードの取り込み処理を提供する。
// スケジューラ、ダウンロードワーカー、再試行/バックオフ戦略を含む。
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/feedcloud/internal/metrics"
	"github.com/hitoshi/feedcloud/internal/model"
	"github.com/hitoshi/feedcloud/internal/queue"
	"github.com/hitoshi/feedcloud/internal/repository"
	"github.com/hitoshi/feedcloud/internal/security"
)

// Store は取り込み結果の永続化インターフェース。
type Store interface {
	// LatestRun は指定フィードの最新Runを返す。見つからない場合はnilを返す。
	LatestRun(ctx context.Context, feedID int64) (*model.FeedUpdateRun, error)

	// RecordSuccess は記事の挿入と成功Runの記録を単一トランザクションで行う。
	// 戻り値は(保存数, 無視数)。
	RecordSuccess(ctx context.Context, run *model.FeedUpdateRun, entries []*model.Entry) (int, int, error)

	// RecordFailure は失敗Runを記録する。
	RecordFailure(ctx context.Context, run *model.FeedUpdateRun) error
}

// Worker はフィード1件のダウンロード・保存・実行記録を行う。
type Worker struct {
	feedRepo        repository.FeedRepository
	store           Store
	downloader      Downloader
	sanitizer       security.ContentSanitizerService
	enqueuer        queue.Enqueuer
	collector       metrics.MetricsCollector
	logger          *slog.Logger
	maxFailureCount int
}

// NewWorker はWorkerを生成する。
func NewWorker(
	feedRepo repository.FeedRepository,
	store Store,
	downloader Downloader,
	sanitizer security.ContentSanitizerService,
	enqueuer queue.Enqueuer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxFailureCount int,
) *Worker {
	return &Worker{
		feedRepo:        feedRepo,
		store:           store,
		downloader:      downloader,
		sanitizer:       sanitizer,
		enqueuer:        enqueuer,
		collector:       collector,
		logger:          logger,
		maxFailureCount: maxFailureCount,
	}
}

// Run はダウンロードタスク1件を処理する。
// フィードが既に削除されている場合は何もせず正常終了する。
// ダウンロード失敗は失敗Runとして記録されるため、エラーは返さない。
// エラーを返すのはデータベース操作が失敗した場合のみ。
func (w *Worker) Run(ctx context.Context, feedID int64) error {
	start := time.Now()

	feed, err := w.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		return fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil {
		// タスク投入後に削除されたフィード
		w.logger.Warn("フィードが見つからないためタスクをスキップします",
			slog.Int64("feed_id", feedID),
		)
		return nil
	}

	rawEntries, downloadErr := w.downloader.Download(ctx, feed.URL)
	if downloadErr != nil {
		return w.recordFailure(ctx, feed, downloadErr)
	}

	entries := make([]*model.Entry, 0, len(rawEntries))
	for _, raw := range rawEntries {
		entries = append(entries, &model.Entry{
			OriginalID:  raw.OriginalID,
			Title:       raw.Title,
			Summary:     w.sanitizer.Sanitize(raw.Summary),
			Link:        raw.Link,
			PublishedAt: raw.PublishedAt,
			Status:      model.EntryStatusUnread,
			FeedID:      feed.ID,
		})
	}

	run := &model.FeedUpdateRun{
		Timestamp: time.Now().UTC(),
		Status:    model.RunStatusSuccess,
		FeedID:    feed.ID,
	}

	downloaded, ignored, err := w.store.RecordSuccess(ctx, run, entries)
	if err != nil {
		return err
	}

	w.collector.RecordIngestSuccess()
	w.collector.RecordEntries(downloaded, ignored)
	w.collector.RecordIngestLatency(time.Since(start))

	w.logger.Info("フィードの取り込みが完了しました",
		slog.Int64("feed_id", feed.ID),
		slog.String("feed_url", feed.URL),
		slog.Int("n_downloaded", downloaded),
		slog.Int("n_ignored", ignored),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// recordFailure は失敗Runを記録し、必要なら再試行スケジュールを設定する。
// 連続失敗回数が上限に達した場合は次回実行時刻をNULLとし（恒久的失敗）、
// 失敗通知タスクを投入する。通知は恒久的失敗への遷移時に1回だけ行われる。
func (w *Worker) recordFailure(ctx context.Context, feed *model.Feed, cause error) error {
	last, err := w.store.LatestRun(ctx, feed.ID)
	if err != nil {
		return fmt.Errorf("最新Runの取得に失敗しました: %w", err)
	}

	// 直前が失敗なら連続失敗としてカウントし、それ以外は1から数え直す
	failureCount := 1
	if last != nil && last.Status == model.RunStatusFailed {
		failureCount = last.FailureCount + 1
	}

	now := time.Now().UTC()
	nextRun := NextRunTime(failureCount, w.maxFailureCount, now)

	run := &model.FeedUpdateRun{
		Timestamp:       now,
		Status:          model.RunStatusFailed,
		FailureCount:    failureCount,
		NextRunSchedule: nextRun,
		FeedID:          feed.ID,
	}

	if err := w.store.RecordFailure(ctx, run); err != nil {
		return err
	}

	w.collector.RecordIngestFailure()

	if nextRun == nil {
		w.collector.RecordTerminalFailure()
		w.logger.Error("フィードが恒久的失敗に遷移しました",
			slog.Int64("feed_id", feed.ID),
			slog.String("feed_url", feed.URL),
			slog.Int("failure_count", failureCount),
			slog.String("error", cause.Error()),
		)
		if err := w.enqueuer.EnqueueNotifyFailure(ctx, feed.ID); err != nil {
			return fmt.Errorf("失敗通知タスクの投入に失敗しました: %w", err)
		}
		return nil
	}

	w.logger.Warn("フィードの取り込みに失敗しました",
		slog.Int64("feed_id", feed.ID),
		slog.String("feed_url", feed.URL),
		slog.Int("failure_count", failureCount),
		slog.Time("next_run_schedule", *nextRun),
		slog.String("error", cause.Error()),
	)

	return nil
}

// compile-time interface check
var _ Store = (*repository.IngestStore)(nil)
