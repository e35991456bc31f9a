package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"

	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

type Config struct {
	Env      string
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Tiers    TiersConfig
	Cache    CacheConfig
	FX       FXConfig
	Accounts AccountsConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

type StoreConfig struct {
	Backend        string
	DynamoDBTable  string
	DynamoDBRegion string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// AuthConfig описывает проверку токенов внешнего провайдера идентичности.
// Пустой секрет означает, что все вызывающие анонимны.
type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// TiersConfig: явная конфигурация уровней цепочки: наличие адреса или ключа включает уровень.
type TiersConfig struct {
	PlanWebhookURL    string
	ChatWebhookURL    string
	InsightWebhookURL string
	NewsWebhookURL    string

	AI AIConfig

	UpstreamTimeout    time.Duration
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration
}

type AIConfig struct {
	Provider           string
	APIKey             string
	BaseURL            string
	Model              string
	PlanModel          string
	InsightModel       string
	NewsModel          string
	Referer            string
	MaxOutputTokens    int
	RateLimitPerMinute int
	RateLimitBurst     int
}

type CacheConfig struct {
	Freshness time.Duration
}

type FXConfig struct {
	APIKey   string
	BaseURL  string
	CacheTTL time.Duration
}

type AccountsConfig struct {
	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string
	TokenKey      string
}

// Load загружает конфигурацию приложения из окружения и .env.
func Load() (Config, error) {
	cfg := Config{}

	if err := loadEnv(); err != nil {
		return cfg, err
	}

	cfg.Env = getEnv("APP_ENV", "local")

	serverPort, err := parseIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return cfg, err
	}

	readTimeout, err := parseDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return cfg, err
	}

	// 0 отключает таймаут записи: ответы чата идут потоком.
	writeTimeout, err := parseOptionalDurationEnv("SERVER_WRITE_TIMEOUT", 0)
	if err != nil {
		return cfg, err
	}

	idleTimeout, err := parseDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return cfg, err
	}

	cfg.Server = ServerConfig{
		Host:         getEnv("SERVER_HOST", "0.0.0.0"),
		Port:         serverPort,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		CORSOrigins:  parseCSVEnv("CORS_ALLOWED_ORIGINS"),
	}

	cfg.Store = StoreConfig{
		Backend:        strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", StoreMemory))),
		DynamoDBTable:  getEnv("DYNAMODB_CACHE_TABLE", "user_content_cache"),
		DynamoDBRegion: getEnv("AWS_REGION", ""),
	}

	dbPort, err := parseIntEnv("DB_PORT", 5432)
	if err != nil {
		return cfg, err
	}

	maxOpenConns, err := parseIntEnv("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return cfg, err
	}

	maxIdleConns, err := parseIntEnv("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return cfg, err
	}

	connMaxIdleTime, err := parseDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute)
	if err != nil {
		return cfg, err
	}

	connMaxLifetime, err := parseDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return cfg, err
	}

	cfg.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		User:            getEnv("DB_USER", "prestige"),
		Password:        getEnv("DB_PASSWORD", "prestige"),
		Name:            getEnv("DB_NAME", "prestige_worldwide"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxIdleTime: connMaxIdleTime,
		ConnMaxLifetime: connMaxLifetime,
	}

	cfg.Auth = AuthConfig{
		JWTSecret:   firstEnv("", "AUTH_JWT_SECRET", "SUPABASE_JWT_SECRET"),
		JWTIssuer:   getEnv("AUTH_JWT_ISSUER", ""),
		JWTAudience: getEnv("AUTH_JWT_AUDIENCE", "authenticated"),
	}

	upstreamTimeout, err := parseDurationEnv("UPSTREAM_TIMEOUT", 20*time.Second)
	if err != nil {
		return cfg, err
	}

	breakerMaxFailures, err := parseIntEnv("BREAKER_MAX_FAILURES", 5)
	if err != nil {
		return cfg, err
	}

	breakerOpenTimeout, err := parseDurationEnv("BREAKER_OPEN_TIMEOUT", 30*time.Second)
	if err != nil {
		return cfg, err
	}

	ai, err := loadAI()
	if err != nil {
		return cfg, err
	}

	cfg.Tiers = TiersConfig{
		PlanWebhookURL:     getEnv("N8N_WEBHOOK_URL", ""),
		ChatWebhookURL:     getEnv("N8N_CHAT_WEBHOOK_URL", ""),
		InsightWebhookURL:  getEnv("N8N_INSIGHT_WEBHOOK_URL", ""),
		NewsWebhookURL:     getEnv("N8N_NEWS_WEBHOOK_URL", ""),
		AI:                 ai,
		UpstreamTimeout:    upstreamTimeout,
		BreakerMaxFailures: breakerMaxFailures,
		BreakerOpenTimeout: breakerOpenTimeout,
	}

	freshness, err := parseDurationEnv("CACHE_FRESHNESS", 24*time.Hour)
	if err != nil {
		return cfg, err
	}
	cfg.Cache = CacheConfig{Freshness: freshness}

	fxTTL, err := parseDurationEnv("FX_CACHE_TTL", time.Hour)
	if err != nil {
		return cfg, err
	}

	cfg.FX = FXConfig{
		APIKey:   getEnv("FX_API_KEY", ""),
		BaseURL:  getEnv("FX_BASE_URL", "https://v6.exchangerate-api.com/v6"),
		CacheTTL: fxTTL,
	}

	cfg.Accounts = AccountsConfig{
		PlaidClientID: getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:   getEnv("PLAID_SECRET", ""),
		PlaidEnv:      strings.ToLower(getEnv("PLAID_ENV", "sandbox")),
		TokenKey:      getEnv("ACCOUNTS_TOKEN_KEY", ""),
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func loadAI() (AIConfig, error) {
	rateLimitPerMinute, err := parseIntEnv("AI_RATE_LIMIT_PER_MINUTE", 30)
	if err != nil {
		return AIConfig{}, err
	}

	rateLimitBurst, err := parseIntEnv("AI_RATE_LIMIT_BURST", 10)
	if err != nil {
		return AIConfig{}, err
	}

	maxOutputTokens, err := parseIntEnv("AI_MAX_OUTPUT_TOKENS", 4096)
	if err != nil {
		return AIConfig{}, err
	}

	provider := strings.ToLower(getEnv("AI_PROVIDER", ProviderOpenRouter))
	defaultBaseURL := "https://openrouter.ai/api/v1"
	defaultModel := firstEnv("anthropic/claude-3.5-haiku", "OPENROUTER_MODEL")
	planModel := defaultModel
	insightModel := "google/gemini-flash-1.5"
	newsModel := "perplexity/sonar-pro"
	apiKey := firstEnv("", "AI_API_KEY", "OPENROUTER_API_KEY")

	if provider == ProviderGemini {
		defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
		defaultModel = "gemini-1.5-flash"
		planModel, insightModel, newsModel = defaultModel, defaultModel, defaultModel
		apiKey = firstEnv("", "AI_API_KEY", "GEMINI_API_KEY")
	}

	model := getEnv("AI_MODEL", defaultModel)

	return AIConfig{
		Provider:           provider,
		APIKey:             strings.TrimSpace(apiKey),
		BaseURL:            getEnv("AI_BASE_URL", defaultBaseURL),
		Model:              model,
		PlanModel:          getEnv("AI_PLAN_MODEL", planModel),
		InsightModel:       getEnv("AI_INSIGHT_MODEL", insightModel),
		NewsModel:          getEnv("AI_NEWS_MODEL", newsModel),
		Referer:            getEnv("AI_REFERER", "https://prestigeworldwide.app"),
		MaxOutputTokens:    maxOutputTokens,
		RateLimitPerMinute: rateLimitPerMinute,
		RateLimitBurst:     rateLimitBurst,
	}, nil
}

// DSN возвращает строку подключения к базе данных.
func (c DatabaseConfig) DSN() string {
	user := url.UserPassword(c.User, c.Password)
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}

	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	return dsn.String() + "?" + query.Encode()
}

// Enabled сообщает, включена ли проверка токенов.
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

// PlaidConfigured сообщает, заданы ли ключи агрегатора счетов.
func (c AccountsConfig) PlaidConfigured() bool {
	return c.PlaidClientID != "" && c.PlaidSecret != ""
}

// PlaidBaseURL возвращает адрес API для выбранного окружения.
func (c AccountsConfig) PlaidBaseURL() string {
	return fmt.Sprintf("https://%s.plaid.com", c.PlaidEnv)
}

func (c Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be greater than 0")
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
		if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			return fmt.Errorf("DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
		}
	case StoreDynamoDB:
		if c.Store.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_CACHE_TABLE is required")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, postgres, dynamodb")
	}

	if c.Tiers.AI.Provider != ProviderOpenRouter && c.Tiers.AI.Provider != ProviderGemini {
		return fmt.Errorf("AI_PROVIDER must be openrouter or gemini")
	}

	for key, raw := range map[string]string{
		"N8N_WEBHOOK_URL":         c.Tiers.PlanWebhookURL,
		"N8N_CHAT_WEBHOOK_URL":    c.Tiers.ChatWebhookURL,
		"N8N_INSIGHT_WEBHOOK_URL": c.Tiers.InsightWebhookURL,
		"N8N_NEWS_WEBHOOK_URL":    c.Tiers.NewsWebhookURL,
		"AI_BASE_URL":             c.Tiers.AI.BaseURL,
		"FX_BASE_URL":             c.FX.BaseURL,
	} {
		if err := validateURL(key, raw); err != nil {
			return err
		}
	}

	switch c.Accounts.PlaidEnv {
	case "sandbox", "development", "production":
	default:
		return fmt.Errorf("PLAID_ENV must be sandbox, development or production")
	}

	if c.Accounts.TokenKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.Accounts.TokenKey)
		if err != nil {
			return fmt.Errorf("ACCOUNTS_TOKEN_KEY must be base64: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("ACCOUNTS_TOKEN_KEY must decode to 32 bytes")
		}
	}

	return nil
}

func validateURL(key, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s must be a valid URL: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", key)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

// firstEnv возвращает первое непустое значение из перечисленных переменных.
func firstEnv(fallback string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}

	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	parsed, err := parseOptionalDurationEnv(key, fallback)
	if err != nil {
		return 0, err
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseOptionalDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}

	if parsed < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}

	return parsed, nil
}

func parseCSVEnv(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(part))
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func loadEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}
