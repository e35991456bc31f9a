// Package accounts связывает внешние счета пользователя через агрегатор (Plaid).
// Без ключей агрегатора отдаются демонстрационные счета.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"example.com/prestige-worldwide/backend/internal/models"
)

const providerPlaid = "plaid"

var ErrPublicTokenRequired = errors.New("accounts: public_token is required")

// ItemStore сохраняет запечатанный токен доступа для пользователя.
type ItemStore interface {
	Insert(ctx context.Context, userID uuid.UUID, provider string, sealedToken []byte) (uuid.UUID, error)
}

type LinkToken struct {
	LinkToken string `json:"link_token,omitempty"`
	Mock      bool   `json:"mock,omitempty"`
}

type Service struct {
	client *PlaidClient
	sealer *Sealer
	store  ItemStore
	logger *slog.Logger
}

// NewService создает сервис. client, sealer и store могут быть nil.
func NewService(client *PlaidClient, sealer *Sealer, store ItemStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, sealer: sealer, store: store, logger: logger}
}

// MockAccounts возвращает демонстрационные счета для запуска без агрегатора.
func MockAccounts() []models.LinkedAccount {
	chase, td := "Chase", "TD Bank"
	return []models.LinkedAccount{
		{Name: "Chase Checking", Type: "401(k)", Balance: 85000, Currency: "USD", Institution: &chase},
		{Name: "TD RRSP", Type: "RRSP", Balance: 62000, Currency: "CAD", Institution: &td},
	}
}

// CreateLinkToken возвращает link token или признак демонстрационного режима.
func (s *Service) CreateLinkToken(ctx context.Context, userID uuid.UUID) (LinkToken, error) {
	if !s.client.Configured() {
		return LinkToken{Mock: true}, nil
	}

	clientUserID := "anonymous"
	if userID != uuid.Nil {
		clientUserID = userID.String()
	}

	token, err := s.client.CreateLinkToken(ctx, clientUserID)
	if err != nil {
		return LinkToken{}, err
	}
	return LinkToken{LinkToken: token}, nil
}

// Exchange меняет public token на счета пользователя. Токен доступа сохраняется
// только зашифрованным и только для известного пользователя.
func (s *Service) Exchange(ctx context.Context, userID uuid.UUID, publicToken string) ([]models.LinkedAccount, error) {
	if !s.client.Configured() {
		return MockAccounts(), nil
	}

	publicToken = strings.TrimSpace(publicToken)
	if publicToken == "" {
		return nil, ErrPublicTokenRequired
	}

	accessToken, err := s.client.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, fmt.Errorf("exchange public token: %w", err)
	}

	accounts, err := s.client.Balances(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}

	s.remember(ctx, userID, accessToken)
	return accounts, nil
}

func (s *Service) remember(ctx context.Context, userID uuid.UUID, accessToken string) {
	if userID == uuid.Nil || s.store == nil {
		return
	}
	if s.sealer == nil {
		s.logger.Warn("account token not stored: sealing key is not configured", slog.String("user_id", userID.String()))
		return
	}

	sealed, err := s.sealer.Seal([]byte(accessToken))
	if err != nil {
		s.logger.Error("seal account token failed", slog.String("error", err.Error()))
		return
	}

	if _, err := s.store.Insert(ctx, userID, providerPlaid, sealed); err != nil {
		s.logger.Error("store account token failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
	}
}
