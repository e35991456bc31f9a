package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/prestige-worldwide/backend/internal/models"
)

type brokenStore struct{}

func (brokenStore) Insert(context.Context, models.CacheRecord) error {
	return errors.New("connection refused")
}

func (brokenStore) SelectLatest(context.Context, uuid.UUID, models.Kind, time.Time) (models.CacheRecord, error) {
	return models.CacheRecord{}, errors.New("connection refused")
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func sampleItems() []models.NewsItem {
	return []models.NewsItem{{Headline: "BoC holds rates", URL: "https://www.bankofcanada.ca", Date: "2026-10-15"}}
}

// TestStoreThenLookupWithinWindow проверяет чтение только что сохраненной записи.
func TestStoreThenLookupWithinWindow(t *testing.T) {
	clk := &clock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	c := New(NewMemoryStore(), DefaultFreshness, WithClock(clk.Now))
	userID := uuid.New()

	require.NoError(t, c.Store(context.Background(), userID, models.KindNews, sampleItems()))

	clk.now = clk.now.Add(23 * time.Hour)
	set, ok := c.Lookup(context.Background(), userID, models.KindNews)
	require.True(t, ok)
	require.Equal(t, sampleItems(), set.Items)
	require.Equal(t, time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC), set.FetchedAt)
}

// TestLookupAfterWindowIsMiss проверяет промах для устаревшей записи.
func TestLookupAfterWindowIsMiss(t *testing.T) {
	clk := &clock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	c := New(NewMemoryStore(), DefaultFreshness, WithClock(clk.Now))
	userID := uuid.New()

	require.NoError(t, c.Store(context.Background(), userID, models.KindNews, sampleItems()))

	clk.now = clk.now.Add(24 * time.Hour)
	_, ok := c.Lookup(context.Background(), userID, models.KindNews)
	require.False(t, ok)
}

// TestLookupUnknownKey проверяет промах для неизвестной пары и другого типа запроса.
func TestLookupUnknownKey(t *testing.T) {
	c := New(NewMemoryStore(), DefaultFreshness)
	userID := uuid.New()
	require.NoError(t, c.Store(context.Background(), userID, models.KindNews, sampleItems()))

	_, ok := c.Lookup(context.Background(), uuid.New(), models.KindNews)
	require.False(t, ok)

	_, ok = c.Lookup(context.Background(), userID, models.KindInsight)
	require.False(t, ok)
}

// TestStoreIsAppendOnly проверяет, что новая запись вытесняет старую без перезаписи.
func TestStoreIsAppendOnly(t *testing.T) {
	clk := &clock{now: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	c := New(store, DefaultFreshness, WithClock(clk.Now))
	userID := uuid.New()

	require.NoError(t, c.Store(context.Background(), userID, models.KindNews, sampleItems()))
	clk.now = clk.now.Add(time.Hour)
	fresh := []models.NewsItem{{Headline: "IRS guidance"}}
	require.NoError(t, c.Store(context.Background(), userID, models.KindNews, fresh))

	require.Equal(t, 2, store.Len(userID, models.KindNews))

	set, ok := c.Lookup(context.Background(), userID, models.KindNews)
	require.True(t, ok)
	require.Equal(t, fresh, set.Items)
}

// TestUnavailableStoreIsMiss проверяет, что ошибка хранилища считается промахом.
func TestUnavailableStoreIsMiss(t *testing.T) {
	c := New(brokenStore{}, DefaultFreshness)
	userID := uuid.New()

	_, ok := c.Lookup(context.Background(), userID, models.KindNews)
	require.False(t, ok)
	require.Error(t, c.Store(context.Background(), userID, models.KindNews, sampleItems()))
}

// TestAnonymousAndNilCache проверяет, что без пользователя и хранилища кэш не используется.
func TestAnonymousAndNilCache(t *testing.T) {
	c := New(NewMemoryStore(), DefaultFreshness)
	require.NoError(t, c.Store(context.Background(), uuid.Nil, models.KindNews, sampleItems()))
	_, ok := c.Lookup(context.Background(), uuid.Nil, models.KindNews)
	require.False(t, ok)

	var nilCache *TimeBound
	_, ok = nilCache.Lookup(context.Background(), uuid.New(), models.KindNews)
	require.False(t, ok)
	require.NoError(t, nilCache.Store(context.Background(), uuid.New(), models.KindNews, nil))
}
