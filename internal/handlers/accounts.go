package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"example.com/prestige-worldwide/backend/internal/accounts"
	"example.com/prestige-worldwide/backend/internal/models"
)

type AccountsHandler struct {
	Service *accounts.Service
	Logger  *slog.Logger
}

type exchangeRequest struct {
	PublicToken string `json:"public_token"`
}

type accountsResponse struct {
	Accounts []models.LinkedAccount `json:"accounts"`
}

// NewAccountsHandler создает обработчик привязки счетов.
func NewAccountsHandler(service *accounts.Service, logger *slog.Logger) *AccountsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountsHandler{Service: service, Logger: logger}
}

// LinkToken выдает link token агрегатора или признак демонстрационного режима.
func (h *AccountsHandler) LinkToken(c echo.Context) error {
	token, err := h.Service.CreateLinkToken(c.Request().Context(), userIDOrNil(c))
	if err != nil {
		h.Logger.Error("create link token failed", slog.String("error", err.Error()))
		return relayFailed(c)
	}
	return c.JSON(http.StatusOK, token)
}

// Exchange меняет public token на список счетов.
func (h *AccountsHandler) Exchange(c echo.Context) error {
	var req exchangeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}

	linked, err := h.Service.Exchange(c.Request().Context(), userIDOrNil(c), req.PublicToken)
	if err != nil {
		if errors.Is(err, accounts.ErrPublicTokenRequired) {
			return badRequest(c, "public_token is required")
		}

		var apiErr *accounts.APIError
		if errors.As(err, &apiErr) {
			h.Logger.Error("account aggregator rejected exchange",
				slog.Int("status", apiErr.StatusCode),
				slog.String("code", apiErr.Code),
			)
			return relayFailed(c)
		}

		h.Logger.Error("exchange public token failed", slog.String("error", err.Error()))
		return serverError(c)
	}

	return c.JSON(http.StatusOK, accountsResponse{Accounts: linked})
}
