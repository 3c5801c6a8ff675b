// Package model はドメインモデルを定義する。
package model

import "time"

// FeedUpdateRun はフィード更新1回分の試行結果を表す監査レコード。
// 追記専用であり、フィードごとの最新行がそのフィードの状態を定義する。
type FeedUpdateRun struct {
	ID        int64
	Timestamp time.Time
	Status    RunStatus
	// FailureCount は連続失敗回数。成功時は常に0。
	FailureCount int
	// NextRunSchedule は次回再試行の予定時刻。
	// status = failed の場合にのみ意味を持ち、nilは恒久的失敗を示す。
	NextRunSchedule *time.Time
	NDownloaded     int
	NIgnored        int
	FeedID          int64
}

// RunStatus は更新試行の結果種別を表す。
type RunStatus string

const (
	// RunStatusSuccess は更新成功。
	RunStatusSuccess RunStatus = "success"
	// RunStatusFailed は更新失敗。
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal はこの試行が恒久的失敗（これ以上スケジュールされない状態）
// を表すかどうかを返す。
func (r *FeedUpdateRun) IsTerminal() bool {
	return r.Status == RunStatusFailed && r.NextRunSchedule == nil
}
