package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"shareit/internal/config"
	"shareit/internal/database"
	"shareit/internal/events"
	"shareit/internal/export"
	"shareit/internal/httpapi"
	"shareit/internal/logging"
	"shareit/internal/metrics"
	"shareit/internal/service"
	"shareit/internal/sheets"
	"shareit/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := events.NewEventBus()
	registerAuditLog(eventBus, &logger)
	ledgerWorker := initLedgerWorker(ctx, cfg, db, redisClient, &logger)

	users := service.NewUserService(db, &logger)
	items := service.NewItemService(db, db, db, db, db, &logger)

	var bookings *service.BookingService
	if ledgerWorker != nil {
		bookings = service.NewBookingService(db, db, db, eventBus, ledgerWorker, &logger)
	} else {
		bookings = service.NewBookingService(db, db, db, eventBus, nil, &logger)
	}
	requests := service.NewRequestService(db, db, db, &logger)

	reporter := export.NewReporter(cfg.Exports.Path, logger)

	server := httpapi.NewServer(cfg, users, items, bookings, requests, reporter, &logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "server-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// registerAuditLog пишет события жизненного цикла бронирований в лог.
func registerAuditLog(bus *events.EventBus, logger *zerolog.Logger) {
	audit := logger.With().Str("component", "audit").Logger()
	handler := func(event *events.Event) error {
		var payload events.BookingEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		audit.Info().
			Str("event", event.Type).
			Int64("booking_id", payload.BookingID).
			Int64("item_id", payload.ItemID).
			Int64("booker_id", payload.BookerID).
			Str("status", payload.Status).
			Msg("booking event")
		return nil
	}
	bus.Subscribe(events.EventBookingCreated, handler)
	bus.Subscribe(events.EventBookingApproved, handler)
	bus.Subscribe(events.EventBookingRejected, handler)
}

// initLedgerWorker поднимает фоновую синхронизацию бронирований в
// Google-таблицу, если она включена в конфиге.
func initLedgerWorker(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) *worker.LedgerWorker {
	if !cfg.Sync.Enabled || !cfg.Google.Enabled {
		return nil
	}

	ledger, err := sheets.NewLedger(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.LedgerSpreadSheetID, *logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without ledger sync")
		return nil
	}
	if err := ledger.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("ledger cache warmup failed")
	}

	w := worker.NewLedgerWorker(db, ledger, redisClient, *logger, worker.Options{
		Retry: worker.RetryPolicy{
			MaxRetries: cfg.Sync.MaxRetries,
			BaseDelay:  2 * time.Second,
			MaxDelay:   5 * time.Minute,
		},
		PollInterval: time.Duration(cfg.Sync.PollInterval) * time.Second,
		BatchSize:    cfg.Sync.BatchSize,
	})
	go w.Start(ctx)

	logger.Info().Msg("ledger sync worker started")
	return w
}
