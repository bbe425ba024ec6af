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

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/popularity-cup/brackets"
	"github.com/Dosada05/popularity-cup/chat"
	"github.com/Dosada05/popularity-cup/config"
	"github.com/Dosada05/popularity-cup/db"
	"github.com/Dosada05/popularity-cup/handlers"
	"github.com/Dosada05/popularity-cup/repositories"
	api "github.com/Dosada05/popularity-cup/routes"
	"github.com/Dosada05/popularity-cup/services"
	"github.com/Dosada05/popularity-cup/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort), slog.String("storage_backend", cfg.StorageBackend))

	if err := run(cfg, logger); err != nil {
		logger.Error("application stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close document store", slog.Any("error", err))
		} else {
			logger.Info("document store closed")
		}
	}()

	// Инициализация WebSocket Hub и доски сообщений
	wsHub := brackets.NewHub(logger.With(slog.String("component", "hub")))
	board := chat.NewBoard(wsHub, logger.With(slog.String("component", "board")))

	tournamentRepo := repositories.NewTournamentRepository(store, cfg.DocumentKey, cfg.PersistMaxRetries,
		logger.With(slog.String("component", "repository")))
	engine := brackets.NewSingleElimination(0)

	// Инициализация сервисов
	matchService := services.NewMatchService(tournamentRepo, engine, board, services.MatchServiceConfig{
		ChannelID: cfg.AnnounceChannelID,
		LockAfter: cfg.AutoLockAfter,
	}, logger.With(slog.String("component", "match")))
	scheduler := services.NewAutoLockScheduler(tournamentRepo, matchService, services.AutoLockConfig{
		WarnAfter:       cfg.AutoWarnAfter,
		LockAfter:       cfg.AutoLockAfter,
		RetryBackoff:    cfg.SchedulerRetryBackoff,
		MaxRetryBackoff: cfg.SchedulerMaxRetryBackoff,
	}, logger.With(slog.String("component", "scheduler")))
	tournamentService := services.NewTournamentService(tournamentRepo, engine, matchService, scheduler, board,
		cfg.AnnounceChannelID, logger.With(slog.String("component", "tournament")))
	itemService := services.NewItemService(tournamentRepo, logger.With(slog.String("component", "items")))
	userRepo := repositories.NewUserRepository(store, cfg.UsersKey, cfg.PersistMaxRetries,
		logger.With(slog.String("component", "users")))
	authService := services.NewAuthService(userRepo, services.AuthConfig{
		JWTSecret:    cfg.JWTSecretKey,
		StaffKeyHash: cfg.StaffKeyHash,
		TokenTTL:     cfg.TokenTTL,
	}, logger.With(slog.String("component", "auth")))
	if cfg.StaffKeyHash == "" {
		logger.Warn("STAFF_KEY_HASH is not set, nobody can obtain a staff token")
	}

	// Инициализация обработчиков HTTP
	authHandler := handlers.NewAuthHandler(authService)
	itemHandler := handlers.NewItemHandler(itemService)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	reactionHandler := handlers.NewReactionHandler(board, tournamentService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, cfg.CORSAllowedOrigins)

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Options{
		JWTSecret:      cfg.JWTSecretKey,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, authHandler, itemHandler, tournamentHandler, reactionHandler, webSocketHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return wsHub.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })

	// Матч, открытый до перезапуска, снова получает таймеры.
	if err := scheduler.Resume(gctx); err != nil {
		logger.Warn("failed to resume auto-lock for open match", slog.Any("error", err))
	}

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
		return nil
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.VersionedStore, error) {
	switch cfg.StorageBackend {
	case config.BackendR2, config.BackendS3:
		store, err := storage.NewCloudflareR2Store(ctx, storage.CloudflareR2StoreConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize object storage: %w", err)
		}
		logger.Info("object storage initialized", slog.String("bucket", cfg.R2BucketName))
		return store, nil

	case config.BackendPostgres:
		dbConn, err := db.Connect(ctx, cfg.DatabaseURL, 5*time.Second, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store, err := storage.NewPostgresStore(ctx, dbConn)
		if err != nil {
			dbConn.Close()
			return nil, err
		}
		logger.Info("database connection established")
		return store, nil

	case config.BackendBadger:
		store, err := storage.NewBadgerStore(storage.BadgerStoreConfig{
			Path:   cfg.BadgerPath,
			Logger: logger.With(slog.String("component", "badger")),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		logger.Info("badger store opened", slog.String("path", cfg.BadgerPath))
		return store, nil

	default:
		logger.Warn("using in-memory storage, state is lost on restart")
		return storage.NewMemoryStore(), nil
	}
}
