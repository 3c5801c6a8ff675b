package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/feedcloud/internal/metrics"
	"github.com/hitoshi/feedcloud/internal/queue"
	"github.com/hitoshi/feedcloud/internal/repository"
)

// Scheduler は定期的に更新対象フィードを選択し、ダウンロードタスクを投入する。
// 対象の選択はフィードごとの最新Runに基づくSQL述語で行われ、
// 恒久的失敗のフィードは自動的に除外される。
type Scheduler struct {
	feedRepo  repository.FeedRepository
	enqueuer  queue.Enqueuer
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewScheduler はSchedulerを生成する。
func NewScheduler(
	feedRepo repository.FeedRepository,
	enqueuer queue.Enqueuer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		feedRepo:  feedRepo,
		enqueuer:  enqueuer,
		collector: collector,
		logger:    logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
// サイクル内のエラーはログに記録し、次のサイクルを待つ。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("スケジューラサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("スケジューラサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は更新対象フィードを1回選択し、ダウンロードタスクを投入する。
// 投入に失敗したフィードはログに記録してスキップする。次のサイクルで
// 再び選択されるため取りこぼしにはならない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	feeds, err := s.feedRepo.ListDue(ctx)
	if err != nil {
		return err
	}

	enqueued := 0
	for _, feed := range feeds {
		if err := s.enqueuer.EnqueueDownload(ctx, feed.ID); err != nil {
			s.logger.Error("ダウンロードタスクの投入に失敗しました",
				slog.Int64("feed_id", feed.ID),
				slog.String("feed_url", feed.URL),
				slog.String("error", err.Error()),
			)
			continue
		}
		enqueued++
	}

	s.collector.RecordSchedulerCycle(enqueued)

	s.logger.Info("スケジューラサイクルが完了しました",
		slog.Int("feed_count", len(feeds)),
		slog.Int("enqueued", enqueued),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
