// Package model はドメインモデルを定義する。
package model

import "time"

// Entry はフィードから取得した1件の記事を表す。
// (original_id, feed_id)の組はentryテーブルの一意制約で保証される。
type Entry struct {
	ID          int64
	OriginalID  string
	Title       string
	Summary     string
	Link        string
	PublishedAt time.Time
	SavedAt     time.Time
	Status      EntryStatus
	FeedID      int64
}

// EntryStatus は記事の既読/未読状態を表す。
type EntryStatus string

const (
	// EntryStatusUnread は未読状態。挿入時のデフォルト。
	EntryStatusUnread EntryStatus = "unread"
	// EntryStatusRead は既読状態。
	EntryStatusRead EntryStatus = "read"
)

// ValidEntryStatus はstatusが定義済みの値かどうかを返す。
func ValidEntryStatus(s string) bool {
	return s == string(EntryStatusUnread) || s == string(EntryStatusRead)
}
