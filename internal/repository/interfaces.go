// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/feedcloud/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDをuser.IDに書き戻す。
	Create(ctx context.Context, user *model.User) error

	// ExistsByUsername は指定ユーザー名のユーザーが存在するかを返す。
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// FeedRepository はフィードデータの永続化インターフェース。
type FeedRepository interface {
	// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Feed, error)

	// FindByUserAndID は所有者検証付きでフィードを取得する。
	// フィードが存在しない、または指定ユーザーの所有でない場合はnilを返す。
	FindByUserAndID(ctx context.Context, userID, feedID int64) (*model.Feed, error)

	// FindByUserAndURL は(url, user_id)でフィードを検索する。見つからない場合はnilを返す。
	// サービス層の事実上の一意性チェックに使用する。
	FindByUserAndURL(ctx context.Context, userID int64, url string) (*model.Feed, error)

	// Create はフィードを作成し、採番されたIDをfeed.IDに書き戻す。
	Create(ctx context.Context, feed *model.Feed) error

	// DeleteByUserAndID は所有者検証付きでフィードを削除する。
	// 削除が行われた場合はtrueを返す。関連するEntryとFeedUpdateRunはCASCADE削除される。
	DeleteByUserAndID(ctx context.Context, userID, feedID int64) (bool, error)

	// ListByUser は指定ユーザーのフィード一覧を返す。
	ListByUser(ctx context.Context, userID int64) ([]*model.Feed, error)

	// ListDue は更新期限が到来したフィードを返す。
	// フィードごとの最新FeedUpdateRunをLATERAL JOINで求め、
	//   (1) Runが1件もない
	//   (2) 最新Runが failed 以外
	//   (3) 最新Runが failed かつ next_run_schedule が過去
	// のいずれかを満たすフィードが対象となる。
	// 最新Runが failed かつ next_run_schedule IS NULL のフィード（恒久的失敗）は
	// 対象から外れる。
	ListDue(ctx context.Context) ([]*model.Feed, error)
}

// EntryRepository は記事データの永続化インターフェース。
type EntryRepository interface {
	// InsertIgnoreDuplicate はトランザクション内で記事を挿入する。
	// (original_id, feed_id)が既に存在する場合は何もせずfalseを返す
	// （ON CONFLICT DO NOTHING）。挿入された場合はtrueを返す。
	InsertIgnoreDuplicate(ctx context.Context, tx *sql.Tx, entry *model.Entry) (bool, error)

	// ListForUser は指定ユーザーの記事一覧をpublished_at降順で返す。
	// feedIDが0以外の場合はそのフィードに限定する。
	// statusが空文字列以外の場合はそのステータスに限定する。
	// 所有権はfeeds.user_idとのJOINで担保される。
	ListForUser(ctx context.Context, userID, feedID int64, status model.EntryStatus) ([]*model.Entry, error)

	// UpdateStatusForUser は所有者検証付きで記事のステータスを変更する。
	// 記事が存在しない、または指定ユーザーの所有でない場合はfalseを返す。
	UpdateStatusForUser(ctx context.Context, userID, entryID int64, status model.EntryStatus) (bool, error)
}

// RunRepository はFeedUpdateRunの永続化インターフェース。
// Runは追記専用であり、更新・個別削除は提供しない。
type RunRepository interface {
	// LatestByFeed は指定フィードの最新Runを返す。見つからない場合はnilを返す。
	// 順序はtimestamp降順、同時刻の場合はid降順で安定させる。
	LatestByFeed(ctx context.Context, feedID int64) (*model.FeedUpdateRun, error)

	// Insert はトランザクション内でRunを挿入し、採番されたIDをrun.IDに書き戻す。
	Insert(ctx context.Context, tx *sql.Tx, run *model.FeedUpdateRun) error
}

