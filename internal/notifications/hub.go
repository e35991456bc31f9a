// Package notifications рассылает пользователю события об обновлении контента через SSE.
package notifications

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventConnected     EventType = "connected"
	EventPlanGenerated EventType = "plan_generated"
	EventNewsRefreshed EventType = "news_refreshed"
)

const subscriberBuffer = 8

type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// PlanGenerated сообщает, каким уровнем цепочки построен план.
func PlanGenerated(tier, provider string) Event {
	return Event{Type: EventPlanGenerated, Data: map[string]string{"tier": tier, "provider": provider}}
}

// NewsRefreshed сообщает, что подборка новостей получена заново и записана в кэш.
func NewsRefreshed(count int, fetchedAt time.Time) Event {
	return Event{Type: EventNewsRefreshed, Data: map[string]any{"count": count, "fetchedAt": fetchedAt.UTC()}}
}

type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[chan Event]struct{}
	now         func() time.Time
}

// NewHub создает хаб для SSE-подписок.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]map[chan Event]struct{}),
		now:         time.Now,
	}
}

// Subscribe подписывает пользователя на события и возвращает канал и функцию отписки.
func (h *Hub) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	userSubs, ok := h.subscribers[userID]
	if !ok {
		userSubs = make(map[chan Event]struct{})
		h.subscribers[userID] = userSubs
	}
	userSubs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			if subs, exists := h.subscribers[userID]; exists {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(h.subscribers, userID)
				}
			}
			close(ch)
		})
	}
}

// Publish отправляет событие всем подписчикам пользователя.
// Медленный подписчик теряет событие, публикация не блокируется.
func (h *Hub) Publish(userID uuid.UUID, event Event) {
	if h == nil || userID == uuid.Nil {
		return
	}
	event.Timestamp = h.now().UTC()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[userID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers возвращает число открытых подписок.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.subscribers {
		total += len(subs)
	}
	return total
}
