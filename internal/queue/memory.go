package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// message はメモリブローカー内のタスク1件。
type message struct {
	id       string
	taskType string
	feedID   int64
}

// MemoryBroker はプロセス内チャネルによるブローカー実装。
// IS_TESTINGのときにRedisの代わりに使用され、EnqueuerとコンシューマLoopの
// 両方を提供する。投入されたタスクはテストからEnqueued()で観測できる。
type MemoryBroker struct {
	ch chan message

	mu       sync.Mutex
	enqueued []message
}

// NewMemoryBroker はMemoryBrokerを生成する。
func NewMemoryBroker(bufferSize int) *MemoryBroker {
	return &MemoryBroker{
		ch: make(chan message, bufferSize),
	}
}

// EnqueueDownload はダウンロードタスクを投入する。
func (b *MemoryBroker) EnqueueDownload(ctx context.Context, feedID int64) error {
	return b.enqueue(ctx, TaskTypeDownload, feedID)
}

// EnqueueNotifyFailure は通知タスクを投入する。
func (b *MemoryBroker) EnqueueNotifyFailure(ctx context.Context, feedID int64) error {
	return b.enqueue(ctx, TaskTypeNotifyFailure, feedID)
}

func (b *MemoryBroker) enqueue(ctx context.Context, taskType string, feedID int64) error {
	msg := message{
		id:       uuid.New().String(),
		taskType: taskType,
		feedID:   feedID,
	}

	select {
	case b.ch <- msg:
	case <-ctx.Done():
		return fmt.Errorf("failed to enqueue task: %w", ctx.Err())
	}

	b.mu.Lock()
	b.enqueued = append(b.enqueued, msg)
	b.mu.Unlock()

	slog.Debug("task enqueued to memory broker",
		slog.String("task_id", msg.id),
		slog.String("task_type", taskType),
		slog.Int64("feed_id", feedID),
	)
	return nil
}

// Run はタスクを取り出して処理するループを開始し、ctxの取り消しまでブロックする。
// ハンドラのエラーはログに記録し、ループは継続する。
func (b *MemoryBroker) Run(ctx context.Context, download DownloadHandler, notify NotifyHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.ch:
			var err error
			switch msg.taskType {
			case TaskTypeDownload:
				err = download(ctx, msg.feedID)
			case TaskTypeNotifyFailure:
				err = notify(ctx, msg.feedID)
			default:
				err = fmt.Errorf("unknown task type: %s", msg.taskType)
			}
			if err != nil {
				slog.Error("task handler failed",
					slog.String("task_id", msg.id),
					slog.String("task_type", msg.taskType),
					slog.Int64("feed_id", msg.feedID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// EnqueuedTypes は投入されたタスク種別の一覧を投入順で返す。
func (b *MemoryBroker) EnqueuedTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	types := make([]string, len(b.enqueued))
	for i, msg := range b.enqueued {
		types[i] = msg.taskType
	}
	return types
}

// EnqueuedFeedIDs は指定種別で投入されたフィードIDの一覧を投入順で返す。
func (b *MemoryBroker) EnqueuedFeedIDs(taskType string) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ids []int64
	for _, msg := range b.enqueued {
		if msg.taskType == taskType {
			ids = append(ids, msg.feedID)
		}
	}
	return ids
}

// compile-time interface check
var _ Enqueuer = (*MemoryBroker)(nil)
