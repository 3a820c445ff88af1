package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-drill/internal/config"
	"github.com/stemsi/exstem-drill/internal/model"
)

// SessionWriter persists session records.
type SessionWriter interface {
	Upsert(ctx context.Context, ref model.SessionRef) error
}

// SessionWorker consumes persist_sessions_queue and upserts session records.
type SessionWorker struct {
	writer SessionWriter
	rdb    *redis.Client
	log    zerolog.Logger

	PollTimeout time.Duration
	RetryDelay  time.Duration
}

// NewSessionWorker creates a new SessionWorker.
func NewSessionWorker(writer SessionWriter, rdb *redis.Client, log zerolog.Logger) *SessionWorker {
	return &SessionWorker{
		writer:      writer,
		rdb:         rdb,
		log:         log.With().Str("component", "session_worker").Logger(),
		PollTimeout: time.Second,
		RetryDelay:  5 * time.Second,
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *SessionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SessionWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, w.PollTimeout, config.WorkerKey.PersistSessionsQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(w.PollTimeout)
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var ref model.SessionRef
	if err := json.Unmarshal([]byte(result[1]), &ref); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}
	if ref.LearnerID == 0 {
		return
	}

	if err := w.writer.Upsert(ctx, ref); err != nil {
		w.log.Error().Err(err).
			Int("learner_id", ref.LearnerID).
			Str("session_id", ref.SessionID).
			Dur("retry_in", w.RetryDelay).
			Msg("Persist error, requeueing")
		w.rdb.RPush(ctx, config.WorkerKey.PersistSessionsQueue, result[1])

		select {
		case <-ctx.Done():
		case <-time.After(w.RetryDelay):
		}
	}
}

// drain processes all remaining items in the queue before shutdown.
func (w *SessionWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistSessionsQueue).Result()
		if err != nil {
			break
		}

		var ref model.SessionRef
		if err := json.Unmarshal([]byte(raw), &ref); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.writer.Upsert(ctx, ref); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistSessionsQueue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
