package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// AsynqEnqueuer はRedisブローカーへのタスク投入を行う。
type AsynqEnqueuer struct {
	client *asynq.Client
}

// NewAsynqEnqueuer はBROKER_URL（redis://...）からAsynqEnqueuerを生成する。
func NewAsynqEnqueuer(brokerURL string) (*AsynqEnqueuer, error) {
	opt, err := asynq.ParseRedisURI(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse broker URL: %w", err)
	}
	return &AsynqEnqueuer{client: asynq.NewClient(opt)}, nil
}

// EnqueueDownload はダウンロードタスクを投入する。
// 再試行の判断はワーカーが次回実行スケジュールとして永続化するため、
// ブローカーでのリトライは無効化する（MaxRetry(0)）。
func (e *AsynqEnqueuer) EnqueueDownload(ctx context.Context, feedID int64) error {
	payload, err := MarshalFeedPayload(feedID)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeDownload, payload, asynq.MaxRetry(0))
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue download task: %w", err)
	}

	slog.Debug("download task enqueued",
		slog.String("task_id", info.ID),
		slog.Int64("feed_id", feedID),
	)
	return nil
}

// EnqueueNotifyFailure は通知タスクを投入する。
// 通知は取りこぼしを避けたいため、ブローカー側で最大3回まで再試行する。
func (e *AsynqEnqueuer) EnqueueNotifyFailure(ctx context.Context, feedID int64) error {
	payload, err := MarshalFeedPayload(feedID)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeNotifyFailure, payload, asynq.MaxRetry(3))
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue notify task: %w", err)
	}

	slog.Debug("notify task enqueued",
		slog.String("task_id", info.ID),
		slog.Int64("feed_id", feedID),
	)
	return nil
}

// Close はブローカー接続を閉じる。
func (e *AsynqEnqueuer) Close() error {
	return e.client.Close()
}

// AsynqServer はRedisブローカーからタスクを取り出して処理するコンシューマ。
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewAsynqServer はAsynqServerを生成する。
// concurrencyはタスクを並列処理するワーカーゴルーチン数。
func NewAsynqServer(brokerURL string, concurrency int, download DownloadHandler, notify NotifyHandler) (*AsynqServer, error) {
	opt, err := asynq.ParseRedisURI(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse broker URL: %w", err)
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeDownload, func(ctx context.Context, t *asynq.Task) error {
		feedID, err := UnmarshalFeedPayload(t.Payload())
		if err != nil {
			return err
		}
		return download(ctx, feedID)
	})
	mux.HandleFunc(TaskTypeNotifyFailure, func(ctx context.Context, t *asynq.Task) error {
		feedID, err := UnmarshalFeedPayload(t.Payload())
		if err != nil {
			return err
		}
		return notify(ctx, feedID)
	})

	return &AsynqServer{server: srv, mux: mux}, nil
}

// Run はコンシューマを起動し、停止されるまでブロックする。
func (s *AsynqServer) Run() error {
	if err := s.server.Run(s.mux); err != nil {
		return fmt.Errorf("failed to run task server: %w", err)
	}
	return nil
}

// Shutdown はコンシューマを停止する。処理中のタスクの完了を待つ。
func (s *AsynqServer) Shutdown() {
	s.server.Shutdown()
}

// compile-time interface check
var _ Enqueuer = (*AsynqEnqueuer)(nil)
