package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/feedcloud/internal/model"
)

// PostgresRunRepo はPostgreSQLを使用したFeedUpdateRunリポジトリ。
// Runは追記専用であり、INSERTと最新行の参照のみを提供する。
type PostgresRunRepo struct {
	db *sql.DB
}

// NewPostgresRunRepo はPostgresRunRepoを生成する。
func NewPostgresRunRepo(db *sql.DB) *PostgresRunRepo {
	return &PostgresRunRepo{db: db}
}

// LatestByFeed は指定フィードの最新Runを返す。見つからない場合はnilを返す。
// (feed_id, timestamp DESC)のインデックスを利用し、同時刻の行はid降順で
// 安定させる。
func (r *PostgresRunRepo) LatestByFeed(ctx context.Context, feedID int64) (*model.FeedUpdateRun, error) {
	run := &model.FeedUpdateRun{}
	var nextRun sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, timestamp, status, failure_count, next_run_schedule,
		        n_downloaded, n_ignored, feed_id
		 FROM feed_update_runs
		 WHERE feed_id = $1
		 ORDER BY timestamp DESC, id DESC
		 LIMIT 1`,
		feedID,
	).Scan(
		&run.ID, &run.Timestamp, &run.Status, &run.FailureCount, &nextRun,
		&run.NDownloaded, &run.NIgnored, &run.FeedID,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("最新Runの取得に失敗しました: %w", err)
	}

	run.NextRunSchedule = nullTimePtr(nextRun)

	return run, nil
}

// Insert はトランザクション内でRunを挿入し、採番されたIDをrun.IDに書き戻す。
func (r *PostgresRunRepo) Insert(ctx context.Context, tx *sql.Tx, run *model.FeedUpdateRun) error {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO feed_update_runs
		     (timestamp, status, failure_count, next_run_schedule, n_downloaded, n_ignored, feed_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		run.Timestamp, run.Status, run.FailureCount, nullTime(run.NextRunSchedule),
		run.NDownloaded, run.NIgnored, run.FeedID,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("Runの挿入に失敗しました: %w", err)
	}
	return nil
}

// nullTime は*time.Timeをsql.NullTimeに変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullTimePtr はsql.NullTimeから*time.Timeを取得する。
func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// compile-time interface check
var _ RunRepository = (*PostgresRunRepo)(nil)
