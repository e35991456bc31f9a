package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
	Logger      *slog.Logger
}

// Guard пропускает вызовы уровня через circuit breaker: после серии отказов
// уровень сразу считается недоступным, пока breaker не перейдет в half-open.
type Guard[P any] struct {
	next    Upstream[P]
	breaker *gobreaker.CircuitBreaker
}

func WithBreaker[P any](next Upstream[P], settings BreakerSettings) *Guard[P] {
	logger := settings.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("provider breaker state changed",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// Отмена запроса клиентом не говорит о здоровье источника.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Guard[P]{next: next, breaker: cb}
}

func (g *Guard[P]) Name() string {
	return g.next.Name()
}

func (g *Guard[P]) Configured() bool {
	return g.next.Configured()
}

func (g *Guard[P]) State() gobreaker.State {
	return g.breaker.State()
}

func (g *Guard[P]) Call(ctx context.Context, payload P) (*Response, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Call(ctx, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &UpstreamError{Provider: g.next.Name(), Err: err}
		}
		return nil, err
	}

	response, _ := out.(*Response)
	return response, nil
}
