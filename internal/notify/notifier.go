// Package notify は恒久的失敗の所有者通知を提供する。
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/feedcloud/internal/metrics"
	"github.com/hitoshi/feedcloud/internal/repository"
)

// Notifier は失敗通知のインターフェース。
// メールやWebhookなどの実配信はこの背後に実装する。
type Notifier interface {
	// NotifyTerminalFailure は指定フィードの恒久的失敗を所有者に通知する。
	NotifyTerminalFailure(ctx context.Context, feedID int64) error
}

// LogNotifier は構造化ログへの出力による通知実装。
// 通知タスク1件ごとに、フィードと所有者を特定してログに記録する。
type LogNotifier struct {
	feedRepo  repository.FeedRepository
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewLogNotifier はLogNotifierを生成する。
func NewLogNotifier(feedRepo repository.FeedRepository, collector metrics.MetricsCollector, logger *slog.Logger) *LogNotifier {
	return &LogNotifier{
		feedRepo:  feedRepo,
		collector: collector,
		logger:    logger,
	}
}

// NotifyTerminalFailure は恒久的失敗を所有者向けにログ通知する。
// フィードが通知前に削除されていた場合は何もせず正常終了する。
func (n *LogNotifier) NotifyTerminalFailure(ctx context.Context, feedID int64) error {
	feed, err := n.feedRepo.FindByID(ctx, feedID)
	if err != nil {
		return fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil {
		n.logger.Warn("通知対象のフィードが見つかりません",
			slog.Int64("feed_id", feedID),
		)
		return nil
	}

	n.logger.Error("フィードの更新が恒久的に停止しました",
		slog.Int64("feed_id", feed.ID),
		slog.Int64("user_id", feed.UserID),
		slog.String("feed_url", feed.URL),
		slog.String("hint", "PUT /feeds/{id}/force-run で手動再実行できます"),
	)

	n.collector.RecordNotification()
	return nil
}

// compile-time interface check
var _ Notifier = (*LogNotifier)(nil)
