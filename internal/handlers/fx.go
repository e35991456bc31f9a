package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"example.com/prestige-worldwide/backend/internal/fx"
)

// RateSource: источник курсов валют. Реализуется fx.Source.
type RateSource interface {
	Rates(ctx context.Context, base string, targets []string) fx.Quote
}

type FXHandler struct {
	Rates RateSource
}

// NewFXHandler создает обработчик курсов валют.
func NewFXHandler(rates RateSource) *FXHandler {
	return &FXHandler{Rates: rates}
}

// Get возвращает курсы targets относительно base.
func (h *FXHandler) Get(c echo.Context) error {
	base := strings.ToUpper(strings.TrimSpace(c.QueryParam("base")))
	if base == "" {
		base = "USD"
	}
	if len(base) != 3 {
		return badRequest(c, "invalid base currency")
	}

	var targets []string
	for _, part := range strings.Split(c.QueryParam("targets"), ",") {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		if len(code) != 3 {
			return badRequest(c, "invalid target currency")
		}
		targets = append(targets, code)
	}

	return c.JSON(http.StatusOK, h.Rates.Rates(c.Request().Context(), base, targets))
}
