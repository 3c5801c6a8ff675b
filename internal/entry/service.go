// Package entry は記事の閲覧・状態管理のドメインロジックを提供する。
package entry

import (
	"context"
	"fmt"

	"github.com/hitoshi/feedcloud/internal/model"
	"github.com/hitoshi/feedcloud/internal/repository"
)

// Service は記事閲覧・状態管理のサービス層。
// 記事の所有権はフィードの所有者に従う。
type Service struct {
	entryRepo repository.EntryRepository
	feedRepo  repository.FeedRepository
}

// NewService はServiceを生成する。
func NewService(entryRepo repository.EntryRepository, feedRepo repository.FeedRepository) *Service {
	return &Service{
		entryRepo: entryRepo,
		feedRepo:  feedRepo,
	}
}

// ListEntries は指定ユーザーの全フィードの記事一覧を返す。
// statusが空以外の場合はそのステータスに限定する。
// 不正なステータス値はINVALID_STATUSエラーとなる。
func (s *Service) ListEntries(ctx context.Context, userID int64, status string) ([]*model.Entry, error) {
	if status != "" && !model.ValidEntryStatus(status) {
		return nil, model.NewInvalidStatusError(status)
	}

	entries, err := s.entryRepo.ListForUser(ctx, userID, 0, model.EntryStatus(status))
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// ListFeedEntries は指定フィードの記事一覧を返す。
// フィードが存在しない、または指定ユーザーの所有でない場合は
// FEED_NOT_FOUNDエラーを返す。
func (s *Service) ListFeedEntries(ctx context.Context, userID, feedID int64, status string) ([]*model.Entry, error) {
	if status != "" && !model.ValidEntryStatus(status) {
		return nil, model.NewInvalidStatusError(status)
	}

	feed, err := s.feedRepo.FindByUserAndID(ctx, userID, feedID)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	if feed == nil {
		return nil, model.NewFeedNotFoundError()
	}

	entries, err := s.entryRepo.ListForUser(ctx, userID, feedID, model.EntryStatus(status))
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// UpdateStatus は記事のステータスを変更する。
// 記事が存在しない、または指定ユーザーの所有でない場合は
// ENTRY_NOT_FOUNDエラーを返す。
func (s *Service) UpdateStatus(ctx context.Context, userID, entryID int64, status string) error {
	if !model.ValidEntryStatus(status) {
		return model.NewInvalidStatusError(status)
	}

	updated, err := s.entryRepo.UpdateStatusForUser(ctx, userID, entryID, model.EntryStatus(status))
	if err != nil {
		return fmt.Errorf("記事ステータスの更新に失敗しました: %w", err)
	}
	if !updated {
		return model.NewEntryNotFoundError()
	}

	return nil
}
