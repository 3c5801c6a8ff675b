package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/feedcloud/internal/model"
	"github.com/hitoshi/feedcloud/internal/queue"
	"github.com/hitoshi/feedcloud/internal/repository"
)

// Detector はフィード検出のインターフェース。
// テスタビリティのためFeedDetectorを抽象化する。
type Detector interface {
	DetectFeedURL(ctx context.Context, inputURL string) (string, error)
}

// Service はフィード登録・管理のサービス層。
// フィードはユーザーごとに所有され、他ユーザーのフィードは存在しないものとして扱う。
type Service struct {
	feedRepo repository.FeedRepository
	detector Detector
	enqueuer queue.Enqueuer
}

// NewService はServiceを生成する。
func NewService(feedRepo repository.FeedRepository, detector Detector, enqueuer queue.Enqueuer) *Service {
	return &Service{
		feedRepo: feedRepo,
		detector: detector,
		enqueuer: enqueuer,
	}
}

// RegisterFeed はURLからフィードを検出し、指定ユーザーのフィードとして登録する。
// 同一ユーザーが同一URLを既に登録している場合はFEED_EXISTSエラーを返す。
// 登録直後のフィードはRunを持たないため、次のスケジューラサイクルで
// 自動的に更新対象となる。
func (s *Service) RegisterFeed(ctx context.Context, userID int64, inputURL string) (*model.Feed, error) {
	feedURL, err := s.detector.DetectFeedURL(ctx, inputURL)
	if err != nil {
		return nil, err
	}

	existing, err := s.feedRepo.FindByUserAndURL(ctx, userID, feedURL)
	if err != nil {
		return nil, fmt.Errorf("フィードの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewFeedExistsError()
	}

	feed := &model.Feed{
		URL:    feedURL,
		UserID: userID,
	}
	if err := s.feedRepo.Create(ctx, feed); err != nil {
		return nil, fmt.Errorf("フィードの保存に失敗しました: %w", err)
	}

	slog.Info("feed registered",
		slog.Int64("feed_id", feed.ID),
		slog.Int64("user_id", userID),
		slog.String("feed_url", feedURL),
	)

	return feed, nil
}

// ListFeeds は指定ユーザーのフィード一覧を返す。
func (s *Service) ListFeeds(ctx context.Context, userID int64) ([]*model.Feed, error) {
	feeds, err := s.feedRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フィード一覧の取得に失敗しました: %w", err)
	}
	return feeds, nil
}

// DeleteFeed は指定ユーザーのフィードを削除する。
// 記事とRunはCASCADE削除される。フィードが存在しない、または
// 他ユーザーの所有の場合はFEED_NOT_FOUNDエラーを返す。
func (s *Service) DeleteFeed(ctx context.Context, userID, feedID int64) error {
	deleted, err := s.feedRepo.DeleteByUserAndID(ctx, userID, feedID)
	if err != nil {
		return fmt.Errorf("フィードの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewFeedNotFoundError()
	}

	slog.Info("feed deleted",
		slog.Int64("feed_id", feedID),
		slog.Int64("user_id", userID),
	)

	return nil
}

// ForceRun は指定ユーザーのフィードのダウンロードタスクを即時投入する。
// スケジューラの選択述語を経由しないため、恒久的失敗のフィードにも
// 手動で再実行を指示できる。
func (s *Service) ForceRun(ctx context.Context, userID, feedID int64) error {
	feed, err := s.feedRepo.FindByUserAndID(ctx, userID, feedID)
	if err != nil {
		return fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil {
		return model.NewFeedNotFoundError()
	}

	if err := s.enqueuer.EnqueueDownload(ctx, feed.ID); err != nil {
		return fmt.Errorf("ダウンロードタスクの投入に失敗しました: %w", err)
	}

	slog.Info("force run enqueued",
		slog.Int64("feed_id", feedID),
		slog.Int64("user_id", userID),
	)

	return nil
}
