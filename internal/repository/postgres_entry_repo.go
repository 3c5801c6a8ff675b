package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/feedcloud/internal/model"
)

// PostgresEntryRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

// InsertIgnoreDuplicate はトランザクション内で記事を挿入する。
// (original_id, feed_id)の一意制約を楽観的ロックとして利用し、
// 衝突した場合はON CONFLICT DO NOTHINGで吸収してfalseを返す。
// 同一フィードに対する並行ワーカーの競合はここで直列化される。
func (r *PostgresEntryRepo) InsertIgnoreDuplicate(ctx context.Context, tx *sql.Tx, entry *model.Entry) (bool, error) {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO entries (original_id, title, summary, link, published_at, status, feed_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (original_id, feed_id) DO NOTHING`,
		entry.OriginalID, entry.Title, entry.Summary, entry.Link,
		entry.PublishedAt, entry.Status, entry.FeedID,
	)
	if err != nil {
		return false, fmt.Errorf("記事の挿入に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("記事挿入結果の確認に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// ListForUser は指定ユーザーの記事一覧をpublished_at降順で返す。
// feedIDが0以外の場合はそのフィードに限定し、statusが空以外の場合は
// そのステータスに限定する。所有権はfeeds.user_idとのJOINで担保される。
func (r *PostgresEntryRepo) ListForUser(ctx context.Context, userID, feedID int64, status model.EntryStatus) ([]*model.Entry, error) {
	query := `SELECT e.id, e.original_id, e.title, e.summary, e.link,
	                 e.published_at, e.saved_at, e.status, e.feed_id
	          FROM entries e
	          INNER JOIN feeds f ON e.feed_id = f.id
	          WHERE f.user_id = $1`
	args := []any{userID}

	if feedID != 0 {
		args = append(args, feedID)
		query += fmt.Sprintf(" AND f.id = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND e.status = $%d", len(args))
	}

	query += " ORDER BY e.published_at DESC, e.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []*model.Entry
	for rows.Next() {
		entry := &model.Entry{}
		if err := rows.Scan(
			&entry.ID, &entry.OriginalID, &entry.Title, &entry.Summary, &entry.Link,
			&entry.PublishedAt, &entry.SavedAt, &entry.Status, &entry.FeedID,
		); err != nil {
			return nil, fmt.Errorf("記事の読み取りに失敗しました: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事の走査に失敗しました: %w", err)
	}

	return entries, nil
}

// UpdateStatusForUser は所有者検証付きで記事のステータスを変更する。
// 記事が存在しない、または指定ユーザーの所有でない場合はfalseを返す。
func (r *PostgresEntryRepo) UpdateStatusForUser(ctx context.Context, userID, entryID int64, status model.EntryStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE entries e SET status = $3
		 FROM feeds f
		 WHERE e.feed_id = f.id AND e.id = $1 AND f.user_id = $2`,
		entryID, userID, status,
	)
	if err != nil {
		return false, fmt.Errorf("記事ステータスの更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("記事ステータス更新結果の確認に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// compile-time interface check
var _ EntryRepository = (*PostgresEntryRepo)(nil)
