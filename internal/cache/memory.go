package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/prestige-worldwide/backend/internal/models"
)

type memoryKey struct {
	userID uuid.UUID
	kind   models.Kind
}

// MemoryStore: хранилище в памяти процесса для локального запуска и тестов.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[memoryKey][]models.CacheRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[memoryKey][]models.CacheRecord)}
}

func (s *MemoryStore) Insert(_ context.Context, record models.CacheRecord) error {
	key := memoryKey{userID: record.UserID, kind: record.Kind}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = append(s.records[key], record)
	return nil
}

func (s *MemoryStore) SelectLatest(_ context.Context, userID uuid.UUID, kind models.Kind, since time.Time) (models.CacheRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest models.CacheRecord
		found  bool
	)
	for _, record := range s.records[memoryKey{userID: userID, kind: kind}] {
		if record.FetchedAt.Before(since) {
			continue
		}
		if !found || record.FetchedAt.After(latest.FetchedAt) {
			latest = record
			found = true
		}
	}

	if !found {
		return models.CacheRecord{}, ErrNotFound
	}
	return latest, nil
}

// Len возвращает число записей для пары (пользователь, тип).
func (s *MemoryStore) Len(userID uuid.UUID, kind models.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[memoryKey{userID: userID, kind: kind}])
}
