package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/exstem-drill/internal/config"
	"github.com/stemsi/exstem-drill/internal/database"
	"github.com/stemsi/exstem-drill/internal/engine"
	"github.com/stemsi/exstem-drill/internal/handler"
	"github.com/stemsi/exstem-drill/internal/logger"
	"github.com/stemsi/exstem-drill/internal/repository"
	"github.com/stemsi/exstem-drill/internal/router"
	"github.com/stemsi/exstem-drill/internal/service"
	"github.com/stemsi/exstem-drill/internal/storage"
	"github.com/stemsi/exstem-drill/internal/validator"
	"github.com/stemsi/exstem-drill/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("bulk_driver", cfg.BulkDriver).
		Msg("Starting ExStem Drill")

	if err := cfg.Exercise.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid exercise defaults")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis ──────────────────────────────────────────────
	// Without Redis sessions live in memory only and nothing is queued
	// for the database.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Error().Err(err).Msg("Redis unavailable, continuing without it")
		} else {
			rdb = client
			defer rdb.Close()
		}
	}

	// ─── Connect to the bulk database ─────────────────────────────────
	var pool *pgxpool.Pool
	backends := []storage.Backend{storage.NewMemoryBackend(cfg.Store.MemoryQuota)}
	if rdb != nil {
		backends = append(backends, storage.NewRedisBackend(rdb, cfg.Store.RedisTTL))
	}

	switch cfg.BulkDriver {
	case config.BulkDriverPostgres:
		p, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		pool = p
		defer pool.Close()
		backends = append(backends, storage.NewPostgresBulkBackend(pool))
	case config.BulkDriverSQLite:
		db, err := database.NewSQLite(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite")
		}
		defer db.Close()
		backends = append(backends, storage.NewSQLiteBulkBackend(db))
	case config.BulkDriverNone:
	default:
		log.Fatal().Str("bulk_driver", cfg.BulkDriver).Msg("Unknown bulk driver")
	}

	// ─── Session Store ────────────────────────────────────────────────
	store := storage.Open(ctx, storage.Options{
		Namespace:     cfg.Store.Namespace,
		Version:       cfg.Store.Version,
		FlushInterval: cfg.Store.FlushInterval,
		MaxBatch:      cfg.Store.MaxBatch,
	}, log, backends...)
	store.Start()

	// ─── Initialize Repositories & Services ───────────────────────────
	var (
		exerciseRepo service.ExerciseRepository
		resultReader service.ResultReader
		resultRepo   *repository.ResultRepository
		sessionRepo  *repository.SessionRepository
	)
	if pool != nil {
		exerciseRepo = repository.NewExerciseRepository(pool)
		resultRepo = repository.NewResultRepository(pool)
		resultReader = resultRepo
		sessionRepo = repository.NewSessionRepository(pool)
	}

	var (
		sink     engine.ResultSink
		recorder service.SessionRecorder
	)
	if rdb != nil && pool != nil {
		queue := service.NewQueuePublisher(rdb)
		sink, recorder = queue, queue
	}

	authService := service.NewAuthService(cfg, rdb)
	exerciseService := service.NewExerciseService(exerciseRepo, store, log)
	resultService := service.NewResultService(resultReader)
	sessionService := service.NewSessionService(service.SessionDeps{
		Exercises:     exerciseService,
		Store:         store,
		Sink:          sink,
		Recorder:      recorder,
		Log:           log,
		Defaults:      cfg.Exercise,
		MaxPerLearner: cfg.MaxSessionsPerLearner,
	})

	if cfg.ClientKeyHash == "" {
		log.Warn().Msg("AUTH_CLIENT_KEY_HASH is empty, token issuance disabled")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	pingers := map[string]handler.Pinger{}
	if rdb != nil {
		pingers["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if pool != nil {
		pingers["postgres"] = pool.Ping
	}

	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Session:  handler.NewSessionHandler(sessionService),
		Exercise: handler.NewExerciseHandler(exerciseService, resultService),
		Result:   handler.NewResultHandler(resultService),
		WS:       handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		System:   handler.NewSystemHandler(rdb, sessionService, store, pingers, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workersDone := make(chan struct{}, 2)
	workerCount := 0

	if rdb != nil && pool != nil {
		resultWorker := worker.NewResultWorker(resultRepo, rdb, log)
		sessionWorker := worker.NewSessionWorker(sessionRepo, rdb, log)
		workerCount = 2
		go func() { resultWorker.Start(workerCtx); workersDone <- struct{}{} }()
		go func() { sessionWorker.Start(workerCtx); workersDone <- struct{}{} }()
	}

	go sessionService.RunReaper(workerCtx, cfg.SessionReapInterval, cfg.SessionIdleTimeout)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests. Hijacked WebSocket
	// connections are not tracked by Shutdown; destroying engines below
	// closes them.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Unload every engine; each writes a final resumable snapshot and
	// queues its session record.
	sessionService.Shutdown(shutdownCtx)

	// 3. Flush the session store.
	if err := store.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Session store flush error")
	}

	// 4. Stop background workers and wait for queues to drain.
	workerCancel()
	for range workerCount {
		select {
		case <-workersDone:
		case <-shutdownCtx.Done():
			log.Warn().Msg("Workers did not drain in time")
		}
	}

	log.Info().Msg("Shutdown complete")
}
