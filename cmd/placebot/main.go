package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ryanbastic/go-placebot/internal/api"
	"github.com/ryanbastic/go-placebot/internal/canvas"
	"github.com/ryanbastic/go-placebot/internal/circuitbreaker"
	"github.com/ryanbastic/go-placebot/internal/command"
	"github.com/ryanbastic/go-placebot/internal/config"
	"github.com/ryanbastic/go-placebot/internal/economy"
	"github.com/ryanbastic/go-placebot/internal/journal"
	"github.com/ryanbastic/go-placebot/internal/metrics"
	"github.com/ryanbastic/go-placebot/internal/santa"
	"github.com/ryanbastic/go-placebot/internal/storage"
	"github.com/ryanbastic/go-placebot/internal/user"
)

func main() {
	var envErr error
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			envErr = err
		}
	}

	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if envErr != nil {
		logger.Warn("failed to load .env file", "error", envErr)
	}

	tuning, err := config.LoadTuning(cfg.GameConfigPath)
	if err != nil {
		logger.Error("failed to load game config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer closeBackend()
	logger.Info("storage ready", "backend", cfg.StorageBackend)

	// The in-memory backend cannot fail, so only durable backends are guarded.
	var breakerState api.BreakerReporter
	if cfg.StorageBackend != config.BackendMemory {
		breaker := circuitbreaker.New(cfg.BreakerMaxFailures, cfg.BreakerResetTimeout,
			circuitbreaker.OnStateChange(func(from, to circuitbreaker.State) {
				metrics.SetBreakerState(int(to))
				logger.Warn("storage breaker state changed", "from", from.String(), "to", to.String())
			}),
		)
		backend = storage.NewGuarded(backend, breaker)
		breakerState = breaker
	}

	users := user.NewDirectory(backend, tuning.Emojis, nil)
	canvases := canvas.NewManager(backend, tuning.Canvas, tuning.Canvases, logger)
	// A broken grid disables only that canvas; the rest of the game keeps running.
	if names, err := canvases.Names(ctx); err != nil {
		logger.Error("failed to list canvases", "error", err)
	} else {
		for _, name := range append(names, tuning.DefaultCanvas) {
			if _, err := canvases.Load(ctx, name); err != nil {
				logger.Error("canvas unusable", "canvas", name, "error", err)
			}
		}
	}

	econ := economy.New(backend, users, economy.Config{
		Currency:   tuning.CurrencyCounter(),
		TilePoints: tuning.TilePoints,
		Coins:      tuning.Wager.Coins,
		Multiplier: tuning.Wager.Multiplier,
		Limit:      tuning.Wager.Limit,
	}, nil, logger)
	engine := santa.NewEngine(backend, backend, logger)

	game := command.NewGame(users, canvases, econ, engine, command.Options{
		DefaultCanvas: tuning.DefaultCanvas,
		Cooldown:      tuning.Cooldown(),
		TilePoints:    tuning.TilePoints,
	}, logger)

	var recorder command.Recorder
	if cfg.JournalDir != "" {
		jw := journal.NewWriter(cfg.JournalDir, "commands")
		defer func() {
			if err := jw.Close(); err != nil {
				logger.Error("journal close error", "error", err)
			}
		}()
		recorder = jw
		logger.Info("command journal enabled", "dir", cfg.JournalDir)
	}
	gateway := command.NewGateway(game, recorder, logger)

	// Start HTTP server
	handler := api.NewServer(logger, gateway, canvases, map[string]api.Pinger{cfg.StorageBackend: backend}, breakerState)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server",
			"port", cfg.Port,
			"default_canvas", tuning.DefaultCanvas,
			"cooldown", tuning.Cooldown(),
			"currency", tuning.Currency,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// openBackend connects the configured store. The returned func releases it.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Backend, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		if err := storage.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations complete")
		prometheus.MustRegister(metrics.NewPoolCollector(map[string]*pgxpool.Pool{"primary": pool}))
		return storage.NewPostgresStore(pool, cfg.QueryTimeout), pool.Close, nil

	case config.BackendSQLite:
		s, err := storage.OpenSQLite(cfg.SQLitePath, cfg.QueryTimeout)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Error("sqlite close error", "error", err)
			}
		}, nil

	default:
		return storage.NewMemoryStore(), func() {}, nil
	}
}
