package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/stemsi/exstem-drill/internal/config"
	"github.com/stemsi/exstem-drill/internal/model"
)

// QueuePublisher hands completed results and session records to the
// persistence workers through Redis lists.
type QueuePublisher struct {
	rdb *redis.Client
}

// NewQueuePublisher creates a new QueuePublisher.
func NewQueuePublisher(rdb *redis.Client) *QueuePublisher {
	return &QueuePublisher{rdb: rdb}
}

// PushResult queues a completed session for the result worker.
func (q *QueuePublisher) PushResult(ctx context.Context, r model.CompletionResult) error {
	return q.push(ctx, config.WorkerKey.PersistResultsQueue, r)
}

// PushSession queues a session record for the session worker.
func (q *QueuePublisher) PushSession(ctx context.Context, ref model.SessionRef) error {
	return q.push(ctx, config.WorkerKey.PersistSessionsQueue, ref)
}

func (q *QueuePublisher) push(ctx context.Context, queue string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", queue, err)
	}
	if err := q.rdb.RPush(ctx, queue, raw).Err(); err != nil {
		return fmt.Errorf("push %s: %w", queue, err)
	}
	return nil
}
