package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"example.com/prestige-worldwide/backend/internal/models"
	"example.com/prestige-worldwide/backend/internal/notifications"
	"example.com/prestige-worldwide/backend/internal/provider"
	"example.com/prestige-worldwide/backend/internal/relay"
)

type newsResponse struct {
	Items  []models.NewsItem `json:"items"`
	Cached bool              `json:"cached,omitempty"`
	Stub   bool              `json:"stub,omitempty"`
}

// News возвращает подборку новостей: из кэша, если он свеж и обновление не запрошено,
// иначе через цепочку провайдеров с записью результата в кэш.
func (h *ContentHandler) News(c echo.Context) error {
	var req models.NewsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}

	ctx := c.Request().Context()
	userID := userIDOrNil(c)

	if !req.ForceRefresh {
		if cached, ok := h.Cache.Lookup(ctx, userID, models.KindNews); ok {
			return c.JSON(http.StatusOK, newsResponse{Items: cached.Items, Cached: true})
		}
	}

	result := h.Chains.News.Execute(ctx, req)
	h.recordAttempts(c, models.KindNews, result)

	text, err := relay.Text(ctx, result.Response, h.ReadTimeout, h.Logger)
	if err != nil {
		h.Logger.Error("news relay failed",
			slog.String("tier", string(result.Tier)),
			slog.String("error", err.Error()),
		)
		return relayFailed(c)
	}

	items, err := relay.DecodeArray[models.NewsItem](text)
	if result.Tier == provider.TierDefault || err != nil || len(items) == 0 {
		if result.Tier != provider.TierDefault {
			h.Logger.Warn("news payload malformed, using canned items",
				slog.String("tier", string(result.Tier)),
				slog.String("provider", result.Provider),
			)
		}
		if err != nil || len(items) == 0 {
			items = StubNews(h.now())
		}
		return c.JSON(http.StatusOK, newsResponse{Items: items, Stub: true})
	}

	if err := h.Cache.Store(ctx, userID, models.KindNews, items); err != nil {
		h.Logger.Warn("news cache write failed", slog.String("error", err.Error()))
	} else {
		h.publish(userID, notifications.NewsRefreshed(len(items), h.now()))
	}

	return c.JSON(http.StatusOK, newsResponse{Items: items})
}
