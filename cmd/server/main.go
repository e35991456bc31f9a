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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"example.com/prestige-worldwide/backend/internal/accounts"
	"example.com/prestige-worldwide/backend/internal/config"
	"example.com/prestige-worldwide/backend/internal/database"
	"example.com/prestige-worldwide/backend/internal/repository"
	"example.com/prestige-worldwide/backend/internal/server"
)

func main() {
	ensureEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	deps, cleanup, err := openStores(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open store", slog.String("backend", cfg.Store.Backend), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	if cfg.Accounts.TokenKey != "" {
		sealer, err := accounts.NewSealer(cfg.Accounts.TokenKey)
		if err != nil {
			logger.Error("invalid accounts token key", slog.String("error", err.Error()))
			os.Exit(1)
		}
		deps.Sealer = sealer
	}

	e := server.New(cfg, logger, deps)
	httpServer := server.NewHTTPServer(cfg.Server, e)

	go func() {
		logger.Info("http server starting", slog.String("addr", httpServer.Addr), slog.String("store", cfg.Store.Backend))
		if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownSignal

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

// openStores подключает выбранное хранилище кэша. Журнал попыток и привязанные
// счета сохраняются только в postgres.
func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (server.Deps, func(), error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := database.Open(ctx, cfg.Database, logger)
		if err != nil {
			return server.Deps{}, nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return server.Deps{}, nil, err
		}
		return server.Deps{
			CacheStore: repository.NewContentCacheRepository(db),
			Attempts:   repository.NewAIRepository(db),
			Items:      repository.NewLinkedItemRepository(db),
		}, db.Close, nil

	case config.StoreDynamoDB:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Store.DynamoDBRegion != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Store.DynamoDBRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return server.Deps{}, nil, fmt.Errorf("load aws config: %w", err)
		}
		store, err := repository.NewDynamoCacheRepository(dynamodb.NewFromConfig(awsCfg), cfg.Store.DynamoDBTable)
		if err != nil {
			return server.Deps{}, nil, err
		}
		return server.Deps{CacheStore: store}, func() {}, nil

	default:
		logger.Warn("using in-memory content cache: records are lost on restart")
		return server.Deps{}, func() {}, nil
	}
}

func ensureEnvFile() {
	if os.Getenv("ENV_FILE") != "" {
		return
	}

	if _, err := os.Stat(".env"); err == nil {
		_ = os.Setenv("ENV_FILE", ".env")
		return
	}

	if _, err := os.Stat("../.env"); err == nil {
		_ = os.Setenv("ENV_FILE", "../.env")
	}
}
