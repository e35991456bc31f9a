package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"example.com/prestige-worldwide/backend/internal/accounts"
	"example.com/prestige-worldwide/backend/internal/ai"
	"example.com/prestige-worldwide/backend/internal/auth"
	"example.com/prestige-worldwide/backend/internal/cache"
	"example.com/prestige-worldwide/backend/internal/config"
	"example.com/prestige-worldwide/backend/internal/fx"
	"example.com/prestige-worldwide/backend/internal/handlers"
	"example.com/prestige-worldwide/backend/internal/metrics"
	"example.com/prestige-worldwide/backend/internal/models"
	"example.com/prestige-worldwide/backend/internal/notifications"
	"example.com/prestige-worldwide/backend/internal/provider"
)

// Deps: внешние хранилища, выбранные в main. Любое поле может быть nil.
type Deps struct {
	CacheStore cache.Store
	Attempts   handlers.AttemptLogger
	Items      accounts.ItemStore
	Sealer     *accounts.Sealer
	Metrics    *metrics.Collector
}

// New собирает HTTP-сервер Echo с роутами и зависимостями.
func New(cfg config.Config, logger *slog.Logger, deps Deps) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}
	cacheStore := deps.CacheStore
	if cacheStore == nil {
		cacheStore = cache.NewMemoryStore()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(httpMetrics(collector))
	if len(cfg.Server.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Server.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	var verifier *auth.Verifier
	if cfg.Auth.Enabled() {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	}

	notificationHub := notifications.NewHub()
	collector.RegisterGauge("notification_subscribers", "Open notification streams.", func() float64 {
		return float64(notificationHub.Subscribers())
	})

	contentCache := cache.New(cacheStore, cfg.Cache.Freshness,
		cache.WithLogger(logger),
		cache.WithObserver(collector),
	)

	chains := buildChains(cfg.Tiers, logger, collector)
	logTiers(logger, chains)

	upstreamTimeout := cfg.Tiers.UpstreamTimeout
	contentHandler := handlers.NewContentHandler(chains, contentCache, deps.Attempts, notificationHub, collector, upstreamTimeout, logger)
	fxHandler := handlers.NewFXHandler(fx.NewSource(cfg.FX.APIKey, cfg.FX.BaseURL, cfg.FX.CacheTTL, &http.Client{Timeout: upstreamTimeout}, logger))

	var plaid *accounts.PlaidClient
	if cfg.Accounts.PlaidConfigured() {
		plaid = accounts.NewPlaidClient(cfg.Accounts.PlaidClientID, cfg.Accounts.PlaidSecret, cfg.Accounts.PlaidBaseURL(), &http.Client{Timeout: upstreamTimeout})
	}
	accountsHandler := handlers.NewAccountsHandler(accounts.NewService(plaid, deps.Sealer, deps.Items, logger), logger)
	notificationHandler := handlers.NewNotificationHandler(notificationHub)

	registerRoutes(
		e,
		contentHandler,
		fxHandler,
		accountsHandler,
		notificationHandler,
		echo.WrapHandler(collector.Handler()),
		auth.Identity(verifier),
		aiRateLimiter(cfg.Tiers.AI),
	)

	return e
}

// buildChains собирает четыре цепочки: webhook автоматизации, затем модель, затем локальный уровень.
func buildChains(cfg config.TiersConfig, logger *slog.Logger, observer provider.Observer) handlers.Chains {
	httpClient := provider.NewHTTPClient(cfg.UpstreamTimeout)
	breaker := provider.BreakerSettings{
		MaxFailures: uint32(cfg.BreakerMaxFailures),
		OpenTimeout: cfg.BreakerOpenTimeout,
		Logger:      logger,
	}
	opts := []provider.Option{
		provider.WithLogger(logger),
		provider.WithObserver(observer),
		provider.WithReadTimeout(cfg.UpstreamTimeout),
	}

	var client ai.Client
	switch cfg.AI.Provider {
	case config.ProviderGemini:
		client = ai.NewGeminiClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.MaxOutputTokens, cfg.UpstreamTimeout, httpClient)
	default:
		client = ai.NewOpenRouterClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Referer, cfg.AI.MaxOutputTokens, httpClient)
	}

	return handlers.Chains{
		Plan: provider.NewChain[models.FinancialProfile](
			models.KindPlan,
			provider.WithBreaker[models.FinancialProfile](provider.NewWebhook[models.FinancialProfile]("n8n-plan", cfg.PlanWebhookURL, httpClient), breaker),
			provider.WithBreaker[models.FinancialProfile](ai.NewTier[models.FinancialProfile](client, ai.TierConfig{Model: cfg.AI.PlanModel, JSON: true}, ai.PlanMessages), breaker),
			handlers.PlanFallback,
			opts...,
		),
		Chat: provider.NewChain[models.ChatRequest](
			models.KindChat,
			provider.WithBreaker[models.ChatRequest](provider.NewWebhook[models.ChatRequest]("n8n-chat", cfg.ChatWebhookURL, httpClient), breaker),
			provider.WithBreaker[models.ChatRequest](ai.NewTier[models.ChatRequest](client, ai.TierConfig{Model: cfg.AI.Model, Stream: true}, ai.ChatMessages), breaker),
			handlers.ChatFallback,
			opts...,
		),
		Insight: provider.NewChain[models.InsightRequest](
			models.KindInsight,
			provider.WithBreaker[models.InsightRequest](provider.NewWebhook[models.InsightRequest]("n8n-insight", cfg.InsightWebhookURL, httpClient), breaker),
			provider.WithBreaker[models.InsightRequest](ai.NewTier[models.InsightRequest](client, ai.TierConfig{Model: cfg.AI.InsightModel}, ai.InsightMessages), breaker),
			handlers.InsightFallback,
			opts...,
		),
		News: provider.NewChain[models.NewsRequest](
			models.KindNews,
			provider.WithBreaker[models.NewsRequest](provider.NewWebhook[models.NewsRequest]("n8n-news", cfg.NewsWebhookURL, httpClient), breaker),
			provider.WithBreaker[models.NewsRequest](ai.NewTier[models.NewsRequest](client, ai.TierConfig{Model: cfg.AI.NewsModel}, ai.NewsMessages), breaker),
			handlers.NewsFallback(time.Now),
			opts...,
		),
	}
}

func logTiers(logger *slog.Logger, chains handlers.Chains) {
	for kind, tiers := range map[models.Kind]map[provider.Tier]bool{
		models.KindPlan:    chains.Plan.Configured(),
		models.KindChat:    chains.Chat.Configured(),
		models.KindInsight: chains.Insight.Configured(),
		models.KindNews:    chains.News.Configured(),
	} {
		logger.Info("provider chain configured",
			slog.String("kind", string(kind)),
			slog.Bool("primary", tiers[provider.TierPrimary]),
			slog.Bool("secondary", tiers[provider.TierSecondary]),
		)
	}
}

// NewHTTPServer создает net/http сервер с заданными таймаутами.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
				slog.Duration("latency", v.Latency),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			msg := "request completed"
			if v.Status >= http.StatusInternalServerError {
				logger.LogAttrs(c.Request().Context(), slog.LevelError, msg, attrs...)
				return nil
			}

			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, msg, attrs...)
			return nil
		},
	})
}

// httpMetrics учитывает запросы по шаблону маршрута, а не по URI.
func httpMetrics(collector *metrics.Collector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			err := next(c)

			status := c.Response().Status
			if httpErr, ok := err.(*echo.HTTPError); ok {
				status = httpErr.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			collector.ObserveHTTP(c.Request().Method, route, status, time.Since(started))
			return err
		}
	}
}

func aiRateLimiter(cfg config.AIConfig) echo.MiddlewareFunc {
	limit := rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0)
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     cfg.RateLimitBurst,
		ExpiresIn: time.Minute,
	})

	return middleware.RateLimiter(store)
}
