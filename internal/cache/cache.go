// Package cache хранит ответы верхних уровней по паре (пользователь, тип запроса)
// с фиксированным окном свежести.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"example.com/prestige-worldwide/backend/internal/models"
)

// DefaultFreshness: окно, в течение которого запись отдается без повторного запроса.
const DefaultFreshness = 24 * time.Hour

// ErrNotFound возвращается хранилищем, если свежей записи нет.
var ErrNotFound = errors.New("cache: record not found")

// Store: внешнее key-value хранилище: только вставка и чтение последней записи.
type Store interface {
	Insert(ctx context.Context, record models.CacheRecord) error
	SelectLatest(ctx context.Context, userID uuid.UUID, kind models.Kind, since time.Time) (models.CacheRecord, error)
}

// Observer получает результат каждого обращения к кэшу.
type Observer interface {
	ObserveCache(kind models.Kind, result string)
}

type TimeBound struct {
	store    Store
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

type Option func(*TimeBound)

func WithClock(now func() time.Time) Option {
	return func(c *TimeBound) {
		c.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *TimeBound) {
		c.logger = logger
	}
}

func WithObserver(observer Observer) Option {
	return func(c *TimeBound) {
		c.observer = observer
	}
}

// New создает кэш поверх хранилища. Хранилище может быть nil: тогда каждый lookup считается промахом.
func New(store Store, window time.Duration, opts ...Option) *TimeBound {
	if window <= 0 {
		window = DefaultFreshness
	}

	c := &TimeBound{
		store:  store,
		window: window,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup возвращает последнюю свежую запись. Отсутствие, устаревание и ошибка
// хранилища неотличимы для вызывающего: все это промах.
func (c *TimeBound) Lookup(ctx context.Context, userID uuid.UUID, kind models.Kind) (models.CachedNewsSet, bool) {
	if c == nil || c.store == nil || userID == uuid.Nil {
		return models.CachedNewsSet{}, false
	}

	now := c.now()
	record, err := c.store.SelectLatest(ctx, userID, kind, now.Add(-c.window))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("cache lookup failed",
				slog.String("kind", string(kind)),
				slog.String("user_id", userID.String()),
				slog.String("error", err.Error()),
			)
			c.observe(kind, "error")
			return models.CachedNewsSet{}, false
		}
		c.observe(kind, "miss")
		return models.CachedNewsSet{}, false
	}

	if now.Sub(record.FetchedAt) >= c.window {
		c.observe(kind, "miss")
		return models.CachedNewsSet{}, false
	}

	var items []models.NewsItem
	if err := json.Unmarshal(record.Items, &items); err != nil {
		c.logger.Warn("cache record is corrupted",
			slog.String("kind", string(kind)),
			slog.String("record_id", record.ID.String()),
			slog.String("error", err.Error()),
		)
		c.observe(kind, "error")
		return models.CachedNewsSet{}, false
	}

	c.observe(kind, "hit")
	return models.CachedNewsSet{Items: items, FetchedAt: record.FetchedAt}, true
}

// Store добавляет новую запись. Прежние записи не изменяются и не удаляются.
func (c *TimeBound) Store(ctx context.Context, userID uuid.UUID, kind models.Kind, items []models.NewsItem) error {
	if c == nil || c.store == nil || userID == uuid.Nil {
		return nil
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("cache: marshal items: %w", err)
	}

	record := models.CacheRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Items:     payload,
		FetchedAt: c.now().UTC(),
	}

	if err := c.store.Insert(ctx, record); err != nil {
		return fmt.Errorf("cache: insert record: %w", err)
	}
	return nil
}

func (c *TimeBound) observe(kind models.Kind, result string) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveCache(kind, result)
}
