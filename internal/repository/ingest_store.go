package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/feedcloud/internal/model"
)

// IngestStore は取り込み結果の永続化を行う。
// 記事の挿入とFeedUpdateRunの記録を単一トランザクションにまとめ、
// 片方だけが残る状態を防ぐ。
type IngestStore struct {
	db        *sql.DB
	entryRepo EntryRepository
	runRepo   RunRepository
}

// NewIngestStore はIngestStoreを生成する。
func NewIngestStore(db *sql.DB, entryRepo EntryRepository, runRepo RunRepository) *IngestStore {
	return &IngestStore{
		db:        db,
		entryRepo: entryRepo,
		runRepo:   runRepo,
	}
}

// LatestRun は指定フィードの最新Runを返す。見つからない場合はnilを返す。
func (s *IngestStore) LatestRun(ctx context.Context, feedID int64) (*model.FeedUpdateRun, error) {
	return s.runRepo.LatestByFeed(ctx, feedID)
}

// RecordSuccess は記事の挿入と成功Runの記録を単一トランザクションで行う。
// 重複記事はON CONFLICT DO NOTHINGで無視され、保存数と無視数を数え直して
// runに書き戻したうえで挿入する。戻り値は(保存数, 無視数)。
func (s *IngestStore) RecordSuccess(ctx context.Context, run *model.FeedUpdateRun, entries []*model.Entry) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	downloaded := 0
	ignored := 0

	for _, entry := range entries {
		inserted, err := s.entryRepo.InsertIgnoreDuplicate(ctx, tx, entry)
		if err != nil {
			return 0, 0, err
		}
		if inserted {
			downloaded++
		} else {
			ignored++
		}
	}

	run.NDownloaded = downloaded
	run.NIgnored = ignored

	if err := s.runRepo.Insert(ctx, tx, run); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return downloaded, ignored, nil
}

// RecordFailure は失敗Runを記録する。
func (s *IngestStore) RecordFailure(ctx context.Context, run *model.FeedUpdateRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if err := s.runRepo.Insert(ctx, tx, run); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return nil
}
