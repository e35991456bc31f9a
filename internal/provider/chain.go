package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"example.com/prestige-worldwide/backend/internal/models"
)

type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
	TierDefault   Tier = "default"
)

type Outcome string

const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
	OutcomeServed  Outcome = "served"
)

// Upstream: удаленный уровень цепочки: webhook автоматизации или модель.
type Upstream[P any] interface {
	Name() string
	Configured() bool
	Call(ctx context.Context, payload P) (*Response, error)
}

// Fallback: локальный уровень по умолчанию. Должен быть тотальным и без ошибок.
type Fallback[P any] func(payload P) *Response

// Observer получает исход каждого уровня.
type Observer interface {
	ObserveTier(kind models.Kind, tier Tier, outcome Outcome, elapsed time.Duration)
}

type Attempt struct {
	Tier     Tier
	Provider string
	Err      error
	Elapsed  time.Duration
}

type Result struct {
	Tier     Tier
	Provider string
	Response *Response
	Attempts []Attempt
}

type options struct {
	logger      *slog.Logger
	observer    Observer
	readTimeout time.Duration
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithReadTimeout задает срок чтения тела документа удаленного уровня.
// Поток событий этим сроком не ограничивается.
func WithReadTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.readTimeout = timeout
	}
}

// Chain последовательно пробует primary, secondary и default для одного типа запроса.
type Chain[P any] struct {
	kind      models.Kind
	primary   Upstream[P]
	secondary Upstream[P]
	fallback  Fallback[P]
	opts      options
}

// NewChain собирает цепочку. Любой из удаленных уровней может быть nil.
func NewChain[P any](kind models.Kind, primary, secondary Upstream[P], fallback Fallback[P], opts ...Option) *Chain[P] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if fallback == nil {
		fallback = func(P) *Response { return JSONResponse(struct{}{}) }
	}

	return &Chain[P]{
		kind:      kind,
		primary:   primary,
		secondary: secondary,
		fallback:  fallback,
		opts:      o,
	}
}

func (c *Chain[P]) Kind() models.Kind {
	return c.kind
}

// Configured сообщает, какие удаленные уровни включены конфигурацией.
func (c *Chain[P]) Configured() map[Tier]bool {
	return map[Tier]bool{
		TierPrimary:   c.primary != nil && c.primary.Configured(),
		TierSecondary: c.secondary != nil && c.secondary.Configured(),
	}
}

// Execute возвращает ответ первого успешного уровня. Ошибки верхних уровней
// только логируются: вызывающий видит лишь выбранный уровень.
func (c *Chain[P]) Execute(ctx context.Context, payload P) Result {
	var result Result

	steps := []struct {
		tier     Tier
		upstream Upstream[P]
	}{
		{TierPrimary, c.primary},
		{TierSecondary, c.secondary},
	}

	for _, step := range steps {
		if step.upstream == nil || !step.upstream.Configured() {
			c.observe(step.tier, OutcomeSkipped, 0)
			continue
		}

		// Клиент уже ушел: удаленные уровни не трогаем.
		if ctx.Err() != nil {
			c.observe(step.tier, OutcomeSkipped, 0)
			continue
		}

		started := time.Now()
		response, err := c.call(ctx, step.upstream, payload)
		elapsed := time.Since(started)

		result.Attempts = append(result.Attempts, Attempt{
			Tier:     step.tier,
			Provider: step.upstream.Name(),
			Err:      err,
			Elapsed:  elapsed,
		})

		if err != nil {
			c.opts.logger.Warn("provider tier failed",
				slog.String("kind", string(c.kind)),
				slog.String("tier", string(step.tier)),
				slog.String("provider", step.upstream.Name()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
			c.observe(step.tier, OutcomeFailed, elapsed)
			continue
		}

		c.observe(step.tier, OutcomeServed, elapsed)
		result.Tier = step.tier
		result.Provider = step.upstream.Name()
		result.Response = response
		return result
	}

	started := time.Now()
	result.Tier = TierDefault
	result.Provider = "local"
	result.Response = c.fallback(payload)
	result.Attempts = append(result.Attempts, Attempt{Tier: TierDefault, Provider: "local", Elapsed: time.Since(started)})
	c.observe(TierDefault, OutcomeServed, time.Since(started))

	c.opts.logger.Warn("provider default tier used", slog.String("kind", string(c.kind)))
	return result
}

func (c *Chain[P]) call(ctx context.Context, upstream Upstream[P], payload P) (*Response, error) {
	response, err := upstream.Call(ctx, payload)
	if err != nil {
		_ = response.Close()
		return nil, err
	}
	if response == nil {
		return nil, &UpstreamError{Provider: upstream.Name(), Err: errors.New("empty response")}
	}
	if response.StatusCode != 0 && (response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices) {
		_ = response.Close()
		return nil, &UpstreamError{Provider: upstream.Name(), StatusCode: response.StatusCode}
	}
	if response.IsStream() || response.Body == nil {
		return response, nil
	}

	// Документ читается здесь: зависший или оборванный ответ остается отказом уровня.
	document, err := response.buffered(c.opts.readTimeout)
	if err != nil {
		return nil, &UpstreamError{Provider: upstream.Name(), Err: err}
	}
	return document, nil
}

func (c *Chain[P]) observe(tier Tier, outcome Outcome, elapsed time.Duration) {
	if c.opts.observer == nil {
		return
	}
	c.opts.observer.ObserveTier(c.kind, tier, outcome, elapsed)
}
