package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-timer/config"
	"github.com/Dosada05/tournament-timer/db"
	"github.com/Dosada05/tournament-timer/handlers"
	"github.com/Dosada05/tournament-timer/live"
	"github.com/Dosada05/tournament-timer/messaging"
	"github.com/Dosada05/tournament-timer/middleware"
	api "github.com/Dosada05/tournament-timer/routes"
	"github.com/Dosada05/tournament-timer/services"
	"github.com/Dosada05/tournament-timer/storage"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const dbConnectTimeout = 5 * time.Second

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.Port), slog.String("storage_backend", cfg.StorageBackend))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("application stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Инициализация хранилища документов
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Инициализация WebSocket Hub
	wsHub := live.NewHub(logger)
	notifiers := []services.TimerNotifier{wsHub}

	if cfg.NATSURL != "" {
		publisher, err := messaging.NewPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("failed to drain NATS connection", slog.Any("error", err))
			}
		}()
		notifiers = append(notifiers, publisher)
		logger.Info("NATS publisher connected", slog.String("subject_prefix", cfg.NATSSubjectPrefix))
	}

	// Инициализация сервисов
	timerService := services.NewTimerService(store, logger, notifiers...)

	// Инициализация обработчиков HTTP
	timerHandler := handlers.NewTimerHandler(timerService, cfg.MaxBodyBytes)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, timerService)
	healthHandler := handlers.NewHealthHandler(store)

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Options{
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins(),
		WriteAuth: middleware.WriteAuth{
			JWTSecret:    cfg.JWTSecret,
			WriteKeyHash: cfg.WriteKeyHash,
		},
	}, timerHandler, webSocketHandler, healthHandler)
	if !cfg.WriteAuthEnabled() {
		logger.Warn("write endpoints are not protected: set TIMER_JWT_SECRET or TIMER_WRITE_KEY_HASH")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("WebSocket Hub started")
		return wsHub.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", cfg.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
		return nil
	})

	return g.Wait()
}

// openStore создаёт хранилище по TIMER_STORAGE_BACKEND и оборачивает его метриками.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.BlobStore, func(), error) {
	noop := func() {}

	switch cfg.StorageBackend {
	case config.BackendS3, config.BackendR2:
		s3Cfg := storage.S3StoreConfig{
			BucketName:      cfg.BucketName,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		}
		if cfg.StorageBackend == config.BackendR2 {
			s3Cfg.R2AccountID = cfg.R2AccountID
		}
		store, err := storage.NewS3Store(ctx, s3Cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to initialize %s storage: %w", cfg.StorageBackend, err)
		}
		logger.Info("object storage initialized",
			slog.String("backend", cfg.StorageBackend), slog.String("bucket", cfg.BucketName))
		return storage.WithMetrics(store, cfg.StorageBackend), noop, nil

	case config.BackendPostgres:
		dbConn, err := db.Connect(cfg.DatabaseURL, dbConnectTimeout)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to database: %w", err)
		}
		closeDB := func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		}
		if err := db.EnsureSchema(ctx, dbConn); err != nil {
			closeDB()
			return nil, noop, err
		}
		logger.Info("database connection established")
		return storage.WithMetrics(storage.NewPostgresStore(dbConn, cfg.BucketName), cfg.StorageBackend), closeDB, nil

	default:
		logger.Warn("using in-memory storage, timers are lost on restart")
		return storage.WithMetrics(storage.NewMemoryStore(), config.BackendMemory), noop, nil
	}
}
