package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// LinkedItemRepository хранит зашифрованные токены доступа агрегатора счетов.
type LinkedItemRepository struct {
	db DBTX
}

func NewLinkedItemRepository(db DBTX) *LinkedItemRepository {
	return &LinkedItemRepository{db: db}
}

// Insert сохраняет токен, уже запечатанный вызывающим. Открытый токен сюда не попадает.
func (r *LinkedItemRepository) Insert(ctx context.Context, userID uuid.UUID, provider string, sealedToken []byte) (uuid.UUID, error) {
	if userID == uuid.Nil || len(sealedToken) == 0 {
		return uuid.Nil, fmt.Errorf("insert linked item: %w", ErrInvalid)
	}

	id := uuid.New()
	_, err := r.db.Exec(ctx,
		`INSERT INTO linked_items (id, user_id, provider, sealed_token) VALUES ($1, $2, $3, $4)`,
		id,
		userID,
		provider,
		sealedToken,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert linked item: %w", err)
	}
	return id, nil
}
