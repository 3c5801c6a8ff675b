// Package queue はフィード更新タスクのブローカー連携を提供する。
// 本番ではRedis(asynq)を、テストではプロセス内のメモリブローカーを使用する。
package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// タスク種別。asynqのtype名としてそのまま使用する。
const (
	// TaskTypeDownload はフィード1件のダウンロード・取り込みタスク。
	TaskTypeDownload = "feed:download"

	// TaskTypeNotifyFailure は恒久的失敗の通知タスク。
	TaskTypeNotifyFailure = "feed:notify_failure"
)

// FeedPayload はフィードを対象とするタスクのペイロード。
type FeedPayload struct {
	FeedID int64 `json:"feed_id"`
}

// MarshalFeedPayload はFeedPayloadをJSONに変換する。
func MarshalFeedPayload(feedID int64) ([]byte, error) {
	payload, err := json.Marshal(FeedPayload{FeedID: feedID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return payload, nil
}

// UnmarshalFeedPayload はJSONペイロードからフィードIDを取り出す。
func UnmarshalFeedPayload(data []byte) (int64, error) {
	var p FeedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return p.FeedID, nil
}

// Enqueuer はタスク投入のインターフェース。
// スケジューラとワーカーはブローカーの実装を知らずにタスクを投入する。
type Enqueuer interface {
	// EnqueueDownload はフィードのダウンロードタスクを投入する。
	// ダウンロードの再試行はアプリケーション側のスケジュールで管理するため、
	// ブローカー側での自動リトライは行わない。
	EnqueueDownload(ctx context.Context, feedID int64) error

	// EnqueueNotifyFailure は恒久的失敗の通知タスクを投入する。
	EnqueueNotifyFailure(ctx context.Context, feedID int64) error
}

// DownloadHandler はダウンロードタスクを処理する関数。
type DownloadHandler func(ctx context.Context, feedID int64) error

// NotifyHandler は通知タスクを処理する関数。
type NotifyHandler func(ctx context.Context, feedID int64) error
