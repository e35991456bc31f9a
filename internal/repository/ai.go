package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AIRepository struct {
	db DBTX
}

// AIRequestLog: одна попытка уровня цепочки провайдеров.
type AIRequestLog struct {
	RequestID    string
	UserID       *uuid.UUID
	RequestType  string
	Tier         string
	Provider     string
	Success      bool
	ErrorMessage *string
	Duration     time.Duration
}

// NewAIRepository создает репозиторий для журнала запросов к провайдерам.
func NewAIRepository(db DBTX) *AIRepository {
	return &AIRepository{db: db}
}

// LogRequest сохраняет попытку уровня.
func (r *AIRepository) LogRequest(ctx context.Context, log AIRequestLog) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ai_requests
		 (request_id, user_id, request_type, tier, provider, success, error_message, duration_ms)
		 VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, $8)`,
		log.RequestID,
		log.UserID,
		log.RequestType,
		log.Tier,
		log.Provider,
		log.Success,
		log.ErrorMessage,
		log.Duration.Milliseconds(),
	)
	return err
}
