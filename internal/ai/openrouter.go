package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"example.com/prestige-worldwide/backend/internal/provider"
)

// OpenRouterClient вызывает OpenAI-совместимый chat completions API (OpenRouter).
type OpenRouterClient struct {
	apiKey     string
	baseURL    string
	referer    string
	maxTokens  int
	httpClient *http.Client
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Stream         bool            `json:"stream,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// NewOpenRouterClient создает клиент OpenRouter с заданными параметрами.
func NewOpenRouterClient(apiKey, baseURL, referer string, maxTokens int, httpClient *http.Client) *OpenRouterClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenRouterClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		referer:    referer,
		maxTokens:  maxTokens,
		httpClient: httpClient,
	}
}

func (c *OpenRouterClient) Name() string {
	return "openrouter"
}

func (c *OpenRouterClient) Configured() bool {
	return c.apiKey != ""
}

// Complete отправляет сообщения и возвращает ответ как есть: SSE при Stream, иначе JSON.
func (c *OpenRouterClient) Complete(ctx context.Context, req Request) (*provider.Response, error) {
	if !c.Configured() {
		return nil, provider.ErrNotConfigured
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, errors.New("openrouter: model must not be empty")
	}

	reqBody := chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Stream:      req.Stream,
		Temperature: 0.2,
		MaxTokens:   resolveMaxTokens(c.maxTokens),
	}
	if req.JSON {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("openrouter: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/chat/completions", c.baseURL)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openrouter: create request: %w", err)
	}

	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", provider.ContentTypeJSON)
	if c.referer != "" {
		request.Header.Set("HTTP-Referer", c.referer)
	}
	if req.Stream {
		request.Header.Set("Accept", provider.ContentTypeEventStream)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, &provider.UpstreamError{Provider: c.Name(), Err: err}
	}

	if err := provider.CheckStatus(c.Name(), response); err != nil {
		return nil, err
	}

	return provider.FromHTTP(response), nil
}
