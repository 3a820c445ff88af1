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

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWriter persists completed session results.
type ResultWriter interface {
	UpsertResults(ctx context.Context, batch []model.CompletionResult) error
	UpsertResult(ctx context.Context, res model.CompletionResult) error
}

// ResultWorker consumes persist_results_queue and writes results in batches.
type ResultWorker struct {
	writer ResultWriter
	rdb    *redis.Client
	log    zerolog.Logger

	BatchSize    int
	BatchTimeout time.Duration
	PollTimeout  time.Duration
}

func NewResultWorker(writer ResultWriter, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		writer:       writer,
		rdb:          rdb,
		log:          log.With().Str("component", "result_worker").Logger(),
		BatchSize:    ResultBatchSize,
		BatchTimeout: ResultBatchTimeout,
		PollTimeout:  ResultPollTimeout,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled, then flushes what it holds. Call in a
// goroutine.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]model.CompletionResult, 0, w.BatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.BatchSize || time.Since(lastFlush) >= w.BatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, w.PollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(w.PollTimeout)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var res model.CompletionResult
			if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			if res.LearnerID == 0 {
				// Anonymous sessions have nowhere to be filed.
				continue
			}

			batch = append(batch, res)
		}
	}
}

// ----------------------------------------------------------------
// Batch write with per-item fallback
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []model.CompletionResult) {
	if len(batch) == 0 {
		return
	}

	err := w.writer.UpsertResults(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Results persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk result write failed, using fallback")

	for _, res := range batch {
		if err := w.writer.UpsertResult(ctx, res); err != nil {
			w.log.Error().Err(err).Str("session_id", res.SessionID).Msg("Result write failed, requeueing")
			raw, _ := json.Marshal(res)
			w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
		}
	}
}
