package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"example.com/prestige-worldwide/backend/internal/models"
	"example.com/prestige-worldwide/backend/internal/notifications"
	"example.com/prestige-worldwide/backend/internal/projection"
	"example.com/prestige-worldwide/backend/internal/provider"
	"example.com/prestige-worldwide/backend/internal/relay"
)

// Plan строит финансовый план по профилю пользователя.
func (h *ContentHandler) Plan(c echo.Context) error {
	var profile models.FinancialProfile
	if err := c.Bind(&profile); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&profile); err != nil {
		return badRequest(c, "validation failed")
	}

	ctx := c.Request().Context()
	result := h.Chains.Plan.Execute(ctx, profile)
	h.recordAttempts(c, models.KindPlan, result)

	text, err := relay.Text(ctx, result.Response, h.ReadTimeout, h.Logger)
	if err != nil {
		h.Logger.Error("plan relay failed",
			slog.String("tier", string(result.Tier)),
			slog.String("error", err.Error()),
		)
		return relayFailed(c)
	}

	tier := result.Tier
	plan, err := decodePlan(text)
	if err != nil {
		h.Logger.Warn("plan payload malformed, using projection",
			slog.String("tier", string(result.Tier)),
			slog.String("provider", result.Provider),
			slog.String("error", err.Error()),
		)
		plan = projection.BuildPlan(profile)
		tier = provider.TierDefault
	}

	plan = completePlan(plan, profile)
	h.publish(userIDOrNil(c), notifications.PlanGenerated(string(tier), result.Provider))

	return c.JSON(http.StatusOK, plan)
}

func decodePlan(text string) (models.Plan, error) {
	var plan models.Plan
	if err := relay.DecodeObject(text, &plan); err != nil {
		return models.Plan{}, err
	}
	if strings.TrimSpace(plan.Summary) == "" {
		return models.Plan{}, errors.Join(relay.ErrMalformedPayload, errors.New("plan summary is empty"))
	}
	if !plan.Metrics.Finite() {
		return models.Plan{}, errors.Join(relay.ErrMalformedPayload, errors.New("plan metrics are not finite"))
	}
	return plan, nil
}

// completePlan дополняет план верхнего уровня полями, которые всегда присутствуют в ответе.
func completePlan(plan models.Plan, profile models.FinancialProfile) models.Plan {
	if plan.Metrics == (models.Metrics{}) {
		plan.Metrics = projection.Project(profile)
	}
	if plan.Recommendations == nil {
		plan.Recommendations = []models.Recommendation{}
	}
	if strings.TrimSpace(plan.Disclaimer) == "" {
		plan.Disclaimer = projection.Disclaimer
	}
	plan.Meta = profile
	return plan
}
