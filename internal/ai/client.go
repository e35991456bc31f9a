package ai

import (
	"context"

	"example.com/prestige-worldwide/backend/internal/provider"
)

const defaultMaxTokens = 4096

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model    string
	Messages []Message
	// Stream просит источник отвечать потоком событий, если он это умеет.
	Stream bool
	// JSON просит источник вернуть документ JSON.
	JSON bool
}

// Client: прямой вызов модели. Ответ возвращается непрочитанным: поток или документ.
type Client interface {
	Name() string
	Configured() bool
	Complete(ctx context.Context, req Request) (*provider.Response, error)
}

func resolveMaxTokens(value int) int {
	if value > 0 {
		return value
	}

	return defaultMaxTokens
}
