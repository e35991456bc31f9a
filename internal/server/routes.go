package server

import (
	"github.com/labstack/echo/v4"

	"example.com/prestige-worldwide/backend/internal/auth"
	"example.com/prestige-worldwide/backend/internal/handlers"
)

func registerRoutes(
	e *echo.Echo,
	contentHandler *handlers.ContentHandler,
	fxHandler *handlers.FXHandler,
	accountsHandler *handlers.AccountsHandler,
	notificationHandler *handlers.NotificationHandler,
	metricsHandler echo.HandlerFunc,
	identity echo.MiddlewareFunc,
	aiRateLimiter echo.MiddlewareFunc,
) {
	e.GET("/health", contentHandler.Health)
	e.GET("/metrics", metricsHandler)

	api := e.Group("/api/v1", identity)

	api.POST("/plan", contentHandler.Plan, aiRateLimiter)
	api.POST("/chat", contentHandler.Chat, aiRateLimiter)
	api.POST("/insight", contentHandler.Insight, aiRateLimiter)
	api.POST("/news", contentHandler.News, aiRateLimiter)

	api.GET("/fx", fxHandler.Get)

	accountsGroup := api.Group("/accounts")
	accountsGroup.POST("/link-token", accountsHandler.LinkToken)
	accountsGroup.POST("/exchange", accountsHandler.Exchange)

	notifications := api.Group("/notifications", auth.RequireUser())
	notifications.GET("/stream", notificationHandler.Stream)
}
