// Package metrics собирает Prometheus-метрики цепочки провайдеров, кэша, relay и HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/prestige-worldwide/backend/internal/models"
	"example.com/prestige-worldwide/backend/internal/provider"
)

const namespace = "prestige"

// Collector хранит метрики приложения в собственном реестре.
type Collector struct {
	registry *prometheus.Registry

	TierOutcomes  *prometheus.CounterVec
	TierDuration  *prometheus.HistogramVec
	CacheResults  *prometheus.CounterVec
	RelayFragment *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

// NewCollector создает и регистрирует метрики.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		TierOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_tier_outcomes_total",
				Help:      "Provider chain tier outcomes by request kind.",
			},
			[]string{"kind", "tier", "outcome"},
		),
		TierDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_tier_duration_seconds",
				Help:      "Time spent in attempted provider chain tiers.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"kind", "tier"},
		),
		CacheResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "content_cache_lookups_total",
				Help:      "Content cache lookups by result.",
			},
			[]string{"kind", "result"},
		),
		RelayFragment: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_fragments_total",
				Help:      "Streamed fragments forwarded or skipped as malformed.",
			},
			[]string{"kind", "result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	c.registry.MustRegister(
		c.TierOutcomes,
		c.TierDuration,
		c.CacheResults,
		c.RelayFragment,
		c.HTTPRequests,
		c.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// ObserveTier реализует provider.Observer.
func (c *Collector) ObserveTier(kind models.Kind, tier provider.Tier, outcome provider.Outcome, elapsed time.Duration) {
	c.TierOutcomes.WithLabelValues(string(kind), string(tier), string(outcome)).Inc()
	if outcome != provider.OutcomeSkipped {
		c.TierDuration.WithLabelValues(string(kind), string(tier)).Observe(elapsed.Seconds())
	}
}

// ObserveCache реализует cache.Observer.
func (c *Collector) ObserveCache(kind models.Kind, result string) {
	c.CacheResults.WithLabelValues(string(kind), result).Inc()
}

// ObserveRelay учитывает итог потоковой передачи.
func (c *Collector) ObserveRelay(kind models.Kind, forwarded, skipped int) {
	c.RelayFragment.WithLabelValues(string(kind), "forwarded").Add(float64(forwarded))
	c.RelayFragment.WithLabelValues(string(kind), "skipped").Add(float64(skipped))
}

// ObserveHTTP учитывает обработанный запрос.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RegisterGauge добавляет gauge, значение которого читается при сборе.
func (c *Collector) RegisterGauge(name, help string, value func() float64) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help},
		value,
	))
}

// Registry возвращает реестр для сбора в тестах.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler отдает метрики в формате Prometheus.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
