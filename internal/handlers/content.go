package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/prestige-worldwide/backend/internal/auth"
	"example.com/prestige-worldwide/backend/internal/cache"
	"example.com/prestige-worldwide/backend/internal/models"
	"example.com/prestige-worldwide/backend/internal/notifications"
	"example.com/prestige-worldwide/backend/internal/provider"
	"example.com/prestige-worldwide/backend/internal/repository"
)

// Chains: цепочки провайдеров для четырех типов запросов.
type Chains struct {
	Plan    *provider.Chain[models.FinancialProfile]
	Chat    *provider.Chain[models.ChatRequest]
	Insight *provider.Chain[models.InsightRequest]
	News    *provider.Chain[models.NewsRequest]
}

// AttemptLogger сохраняет попытки уровней. Реализуется repository.AIRepository.
type AttemptLogger interface {
	LogRequest(ctx context.Context, log repository.AIRequestLog) error
}

// RelayObserver учитывает фрагменты потоковой передачи.
type RelayObserver interface {
	ObserveRelay(kind models.Kind, forwarded, skipped int)
}

// ContentHandler обслуживает план, чат, инсайт и новости через цепочки провайдеров.
type ContentHandler struct {
	Chains      Chains
	Cache       *cache.TimeBound
	Attempts    AttemptLogger
	Notifier    *notifications.Hub
	Relay       RelayObserver
	ReadTimeout time.Duration
	Logger      *slog.Logger

	now func() time.Time
}

// NewContentHandler создает обработчик. cache, attempts, notifier и relay могут быть nil.
func NewContentHandler(chains Chains, contentCache *cache.TimeBound, attempts AttemptLogger, notifier *notifications.Hub, relay RelayObserver, readTimeout time.Duration, logger *slog.Logger) *ContentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentHandler{
		Chains:      chains,
		Cache:       contentCache,
		Attempts:    attempts,
		Notifier:    notifier,
		Relay:       relay,
		ReadTimeout: readTimeout,
		Logger:      logger,
		now:         time.Now,
	}
}

// recordAttempts пишет в журнал каждую попытку уровня. Ошибка журнала запрос не прерывает.
func (h *ContentHandler) recordAttempts(c echo.Context, kind models.Kind, result provider.Result) {
	if h.Attempts == nil {
		return
	}

	var userID *uuid.UUID
	if id, ok := auth.UserIDFromContext(c); ok {
		userID = &id
	}
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)

	for _, attempt := range result.Attempts {
		entry := repository.AIRequestLog{
			RequestID:   requestID,
			UserID:      userID,
			RequestType: string(kind),
			Tier:        string(attempt.Tier),
			Provider:    attempt.Provider,
			Success:     attempt.Err == nil,
			Duration:    attempt.Elapsed,
		}
		if attempt.Err != nil {
			message := attempt.Err.Error()
			entry.ErrorMessage = &message
		}

		if err := h.Attempts.LogRequest(c.Request().Context(), entry); err != nil {
			h.Logger.Warn("failed to log provider attempt",
				slog.String("kind", string(kind)),
				slog.String("tier", string(attempt.Tier)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (h *ContentHandler) publish(userID uuid.UUID, event notifications.Event) {
	if h.Notifier == nil || userID == uuid.Nil {
		return
	}
	h.Notifier.Publish(userID, event)
}

func userIDOrNil(c echo.Context) uuid.UUID {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return uuid.Nil
	}
	return userID
}
