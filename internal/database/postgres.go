package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/prestige-worldwide/backend/internal/config"
)

// Open открывает пул подключений к PostgreSQL с ретраями.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, cfgErr := pgxpool.ParseConfig(cfg.DSN())
	if cfgErr != nil {
		return nil, fmt.Errorf("parse database config: %w", cfgErr)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	// MaxIdleConns ближе всего к MinConns в pgxpool.
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	var pool *pgxpool.Pool
	var err error

	retries := 5
	backoff := time.Second

	for i := 0; i < retries; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = pool.Ping(pingCtx)
			cancel()

			if err == nil {
				return pool, nil
			}
		}

		if pool != nil {
			pool.Close()
		}

		logger.Warn("database connect attempt failed",
			slog.Int("attempt", i+1),
			slog.Int("retries", retries),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("connect database after %d attempts: %w", retries, err)
}

// Schema создает таблицы кэша контента, журнала запросов к провайдерам и связанных счетов.
// Записи кэша только добавляются: читается самая свежая по fetched_at.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS user_content_cache (
		id uuid PRIMARY KEY,
		user_id uuid NOT NULL,
		kind text NOT NULL,
		items jsonb NOT NULL,
		fetched_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS user_content_cache_lookup_idx
		ON user_content_cache (user_id, kind, fetched_at DESC)`,
	`CREATE TABLE IF NOT EXISTS ai_requests (
		id bigserial PRIMARY KEY,
		request_id text,
		user_id uuid,
		request_type text NOT NULL,
		tier text NOT NULL,
		provider text NOT NULL,
		success boolean NOT NULL,
		error_message text,
		duration_ms bigint NOT NULL DEFAULT 0,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS linked_items (
		id uuid PRIMARY KEY,
		user_id uuid NOT NULL,
		provider text NOT NULL,
		sealed_token bytea NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
}

// Migrate применяет Schema. Все выражения идемпотентны.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, statement := range Schema {
		if _, err := pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
