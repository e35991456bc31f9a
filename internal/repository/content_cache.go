package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"example.com/prestige-worldwide/backend/internal/cache"
	"example.com/prestige-worldwide/backend/internal/models"
)

// ContentCacheRepository хранит записи кэша контента в PostgreSQL.
type ContentCacheRepository struct {
	db DBTX
}

// NewContentCacheRepository создает репозиторий кэша контента.
func NewContentCacheRepository(db DBTX) *ContentCacheRepository {
	return &ContentCacheRepository{db: db}
}

// Insert добавляет запись. Существующие записи не обновляются.
func (r *ContentCacheRepository) Insert(ctx context.Context, record models.CacheRecord) error {
	if record.UserID == uuid.Nil || record.Kind == "" {
		return fmt.Errorf("insert cache record: %w", ErrInvalid)
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO user_content_cache (id, user_id, kind, items, fetched_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5)`,
		record.ID,
		record.UserID,
		string(record.Kind),
		string(record.Items),
		record.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cache record: %w", err)
	}
	return nil
}

// SelectLatest возвращает самую свежую запись не старше since.
func (r *ContentCacheRepository) SelectLatest(ctx context.Context, userID uuid.UUID, kind models.Kind, since time.Time) (models.CacheRecord, error) {
	var (
		record models.CacheRecord
		items  []byte
	)

	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, kind, items, fetched_at
		 FROM user_content_cache
		 WHERE user_id = $1 AND kind = $2 AND fetched_at >= $3
		 ORDER BY fetched_at DESC
		 LIMIT 1`,
		userID,
		string(kind),
		since,
	).Scan(&record.ID, &record.UserID, &record.Kind, &items, &record.FetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CacheRecord{}, cache.ErrNotFound
		}
		return models.CacheRecord{}, fmt.Errorf("select cache record: %w", err)
	}

	record.Items = items
	return record, nil
}
