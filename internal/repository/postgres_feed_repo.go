package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/feedcloud/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用したフィードリポジトリ。
type PostgresFeedRepo struct {
	db *sql.DB
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(db *sql.DB) *PostgresFeedRepo {
	return &PostgresFeedRepo{db: db}
}

// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByID(ctx context.Context, id int64) (*model.Feed, error) {
	feed := &model.Feed{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, url, user_id FROM feeds WHERE id = $1`,
		id,
	).Scan(&feed.ID, &feed.URL, &feed.UserID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	return feed, nil
}

// FindByUserAndID は所有者検証付きでフィードを取得する。
// フィードが存在しない、または指定ユーザーの所有でない場合はnilを返す。
func (r *PostgresFeedRepo) FindByUserAndID(ctx context.Context, userID, feedID int64) (*model.Feed, error) {
	feed := &model.Feed{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, url, user_id FROM feeds WHERE id = $1 AND user_id = $2`,
		feedID, userID,
	).Scan(&feed.ID, &feed.URL, &feed.UserID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	return feed, nil
}

// FindByUserAndURL は(url, user_id)でフィードを検索する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByUserAndURL(ctx context.Context, userID int64, url string) (*model.Feed, error) {
	feed := &model.Feed{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, url, user_id FROM feeds WHERE url = $1 AND user_id = $2`,
		url, userID,
	).Scan(&feed.ID, &feed.URL, &feed.UserID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードURLによる検索に失敗しました: %w", err)
	}

	return feed, nil
}

// Create はフィードを作成し、採番されたIDをfeed.IDに書き戻す。
func (r *PostgresFeedRepo) Create(ctx context.Context, feed *model.Feed) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO feeds (url, user_id) VALUES ($1, $2) RETURNING id`,
		feed.URL, feed.UserID,
	).Scan(&feed.ID)
	if err != nil {
		return fmt.Errorf("フィードの作成に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserAndID は所有者検証付きでフィードを削除する。
// 関連するEntryとFeedUpdateRunはCASCADE削除される。
func (r *PostgresFeedRepo) DeleteByUserAndID(ctx context.Context, userID, feedID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM feeds WHERE id = $1 AND user_id = $2`,
		feedID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("フィードの削除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("フィード削除結果の確認に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// ListByUser は指定ユーザーのフィード一覧を返す。
func (r *PostgresFeedRepo) ListByUser(ctx context.Context, userID int64) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, url, user_id FROM feeds WHERE user_id = $1 ORDER BY id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("フィード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanFeeds(rows)
}

// ListDue は更新期限が到来したフィードを返す。
// フィードごとの最新FeedUpdateRun（timestamp降順、同時刻はid降順）を
// LATERAL JOINで1件だけ取り出し、その行に対して選択述語を評価する。
// 外部結合によりRunを1件も持たないフィードも対象に含まれる。
// 最新Runが failed かつ next_run_schedule IS NULL のフィードは恒久的失敗
// としてスキップされる。
func (r *PostgresFeedRepo) ListDue(ctx context.Context) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT f.id, f.url, f.user_id
		 FROM feeds f
		 LEFT JOIN LATERAL (
		     SELECT r.id, r.status, r.next_run_schedule
		     FROM feed_update_runs r
		     WHERE r.feed_id = f.id
		     ORDER BY r.timestamp DESC, r.id DESC
		     LIMIT 1
		 ) last_run ON TRUE
		 WHERE last_run.id IS NULL
		    OR last_run.status <> 'failed'
		    OR (last_run.status = 'failed'
		        AND last_run.next_run_schedule IS NOT NULL
		        AND last_run.next_run_schedule < now())
		 ORDER BY f.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("更新対象フィードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanFeeds(rows)
}

// scanFeeds は結果セットからフィードのスライスを組み立てる。
func scanFeeds(rows *sql.Rows) ([]*model.Feed, error) {
	var feeds []*model.Feed
	for rows.Next() {
		feed := &model.Feed{}
		if err := rows.Scan(&feed.ID, &feed.URL, &feed.UserID); err != nil {
			return nil, fmt.Errorf("フィードの読み取りに失敗しました: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィードの走査に失敗しました: %w", err)
	}

	return feeds, nil
}

// compile-time interface check
var _ FeedRepository = (*PostgresFeedRepo)(nil)
