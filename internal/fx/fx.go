// Package fx отдает курсы валют: живой источник exchangerate-api или статическую таблицу.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTTL: сколько живой ответ источника хранится в памяти.
const DefaultTTL = time.Hour

// stubRates: приблизительные курсы относительно USD.
var stubRates = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"CAD": decimal.RequireFromString("1.36"),
	"GBP": decimal.RequireFromString("0.79"),
	"EUR": decimal.RequireFromString("0.92"),
	"SGD": decimal.RequireFromString("1.34"),
	"AUD": decimal.RequireFromString("1.53"),
	"CHF": decimal.RequireFromString("0.88"),
	"JPY": decimal.RequireFromString("149.5"),
	"HKD": decimal.RequireFromString("7.82"),
}

type Quote struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
	Stub  bool               `json:"stub,omitempty"`
}

type cachedRates struct {
	rates     map[string]float64
	fetchedAt time.Time
}

// Source получает курсы. Без ключа или при ошибке источника отдается статическая таблица.
type Source struct {
	apiKey     string
	baseURL    string
	ttl        time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]cachedRates
}

func NewSource(apiKey, baseURL string, ttl time.Duration, httpClient *http.Client, logger *slog.Logger) *Source {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		ttl:        ttl,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
		cache:      make(map[string]cachedRates),
	}
}

// Currencies возвращает коды из статической таблицы в алфавитном порядке.
func Currencies() []string {
	out := make([]string, 0, len(stubRates))
	for code := range stubRates {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Rates возвращает курсы targets относительно base. Пустой targets означает все коды таблицы.
func (s *Source) Rates(ctx context.Context, base string, targets []string) Quote {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		base = "USD"
	}
	if len(targets) == 0 {
		targets = Currencies()
	}

	if s.apiKey != "" {
		live, err := s.live(ctx, base)
		if err == nil {
			rates := make(map[string]float64, len(targets))
			for _, target := range targets {
				if rate, ok := live[target]; ok && rate != 0 {
					rates[target] = rate
				}
			}
			return Quote{Base: base, Rates: rates}
		}
		s.logger.Warn("fx source failed, using static rates",
			slog.String("base", base),
			slog.String("error", err.Error()),
		)
	}

	return Quote{Base: base, Rates: StubRates(base, targets), Stub: true}
}

// StubRates пересчитывает статическую таблицу к base. Неизвестная база считается равной USD.
func StubRates(base string, targets []string) map[string]float64 {
	baseRate, ok := stubRates[base]
	if !ok {
		baseRate = decimal.NewFromInt(1)
	}

	rates := make(map[string]float64, len(targets))
	for _, target := range targets {
		rate, ok := stubRates[target]
		if !ok {
			continue
		}
		rates[target] = rate.DivRound(baseRate, 6).InexactFloat64()
	}
	return rates
}

func (s *Source) live(ctx context.Context, base string) (map[string]float64, error) {
	s.mu.Lock()
	entry, ok := s.cache[base]
	s.mu.Unlock()
	if ok && s.now().Sub(entry.fetchedAt) < s.ttl {
		return entry.rates, nil
	}

	endpoint := fmt.Sprintf("%s/%s/latest/%s", s.baseURL, s.apiKey, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("fx: create request: %w", err)
	}

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fx: request: %w", redact(err, s.apiKey))
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fx: unexpected status %d", res.StatusCode)
	}

	var payload struct {
		Result          string             `json:"result"`
		ConversionRates map[string]float64 `json:"conversion_rates"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("fx: decode response: %w", err)
	}
	if payload.Result != "" && payload.Result != "success" {
		return nil, fmt.Errorf("fx: result %q", payload.Result)
	}
	if len(payload.ConversionRates) == 0 {
		return nil, fmt.Errorf("fx: empty conversion rates")
	}

	s.mu.Lock()
	s.cache[base] = cachedRates{rates: payload.ConversionRates, fetchedAt: s.now()}
	s.mu.Unlock()

	return payload.ConversionRates, nil
}

func redact(err error, key string) error {
	if key == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
