package ai

import (
	"context"
	"time"

	"example.com/prestige-worldwide/backend/internal/provider"
)

// PromptFunc переводит полезную нагрузку запроса в сообщения для модели.
type PromptFunc[P any] func(payload P, now time.Time) []Message

type TierConfig struct {
	Model  string
	Stream bool
	JSON   bool
}

// Tier: уровень цепочки, который обращается к модели напрямую.
type Tier[P any] struct {
	client Client
	config TierConfig
	prompt PromptFunc[P]
	now    func() time.Time
}

func NewTier[P any](client Client, config TierConfig, prompt PromptFunc[P]) *Tier[P] {
	return &Tier[P]{
		client: client,
		config: config,
		prompt: prompt,
		now:    time.Now,
	}
}

func (t *Tier[P]) Name() string {
	if t.client == nil {
		return "model"
	}
	return t.client.Name()
}

func (t *Tier[P]) Configured() bool {
	return t.client != nil && t.client.Configured() && t.prompt != nil
}

func (t *Tier[P]) Call(ctx context.Context, payload P) (*provider.Response, error) {
	if !t.Configured() {
		return nil, provider.ErrNotConfigured
	}

	return t.client.Complete(ctx, Request{
		Model:    t.config.Model,
		Messages: t.prompt(payload, t.now().UTC()),
		Stream:   t.config.Stream,
		JSON:     t.config.JSON,
	})
}
