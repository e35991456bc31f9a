package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"example.com/prestige-worldwide/backend/internal/models"
	"example.com/prestige-worldwide/backend/internal/relay"
)

// Insight возвращает короткий инсайт дня по плану.
func (h *ContentHandler) Insight(c echo.Context) error {
	var req models.InsightRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}

	ctx := c.Request().Context()
	result := h.Chains.Insight.Execute(ctx, req)
	h.recordAttempts(c, models.KindInsight, result)

	text, err := relay.Text(ctx, result.Response, h.ReadTimeout, h.Logger)
	if err != nil {
		h.Logger.Error("insight relay failed",
			slog.String("tier", string(result.Tier)),
			slog.String("error", err.Error()),
		)
		return relayFailed(c)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		h.Logger.Warn("insight payload empty, using canned insight", slog.String("provider", result.Provider))
		text = StubInsight
	}

	return c.JSON(http.StatusOK, insightResponse{Insight: text})
}
