package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"example.com/prestige-worldwide/backend/internal/models"
	"example.com/prestige-worldwide/backend/internal/provider"
)

type HealthResponse struct {
	Status string                                 `json:"status"`
	Tiers  map[models.Kind]map[provider.Tier]bool `json:"tiers,omitempty"`
}

// Health возвращает статус сервиса и включенные удаленные уровни каждой цепочки.
func (h *ContentHandler) Health(c echo.Context) error {
	tiers := make(map[models.Kind]map[provider.Tier]bool, 4)
	if h.Chains.Plan != nil {
		tiers[models.KindPlan] = h.Chains.Plan.Configured()
	}
	if h.Chains.Chat != nil {
		tiers[models.KindChat] = h.Chains.Chat.Configured()
	}
	if h.Chains.Insight != nil {
		tiers[models.KindInsight] = h.Chains.Insight.Configured()
	}
	if h.Chains.News != nil {
		tiers[models.KindNews] = h.Chains.News.Configured()
	}

	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Tiers: tiers})
}
