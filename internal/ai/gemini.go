package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"example.com/prestige-worldwide/backend/internal/provider"
)

// GeminiClient вызывает Google Generative Language API (Gemini).
// Gemini не отдает поток в формате chat completions, поэтому ответ всегда документ.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens   int
	readTimeout time.Duration
	httpClient  *http.Client
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  *geminiConfig   `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGeminiClient создает клиент Gemini. model используется, если запрос не задает свою модель.
// readTimeout ограничивает чтение тела ответа после получения заголовков.
func NewGeminiClient(apiKey, baseURL, model string, maxTokens int, readTimeout time.Duration, httpClient *http.Client) *GeminiClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GeminiClient{
		apiKey:      strings.TrimSpace(apiKey),
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		maxTokens:   maxTokens,
		readTimeout: readTimeout,
		httpClient:  httpClient,
	}
}

func (c *GeminiClient) Name() string {
	return "gemini"
}

func (c *GeminiClient) Configured() bool {
	return c.apiKey != ""
}

// Complete отправляет сообщения в Gemini и возвращает документ {"role","content"}.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (*provider.Response, error) {
	if !c.Configured() {
		return nil, provider.ErrNotConfigured
	}

	systemParts := make([]geminiPart, 0)
	contents := make([]geminiContent, 0)

	for _, message := range req.Messages {
		role := strings.ToLower(strings.TrimSpace(message.Role))
		text := strings.TrimSpace(message.Content)
		if text == "" {
			continue
		}

		switch role {
		case "system":
			systemParts = append(systemParts, geminiPart{Text: text})
		case "assistant", "model":
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: text}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: text}}})
		}
	}

	if len(contents) == 0 {
		return nil, errors.New("gemini: request has no user content")
	}

	request := geminiRequest{
		Contents: contents,
		GenerationConfig: &geminiConfig{
			Temperature:     0.2,
			MaxOutputTokens: resolveMaxTokens(c.maxTokens),
		},
	}
	if req.JSON {
		request.GenerationConfig.ResponseMimeType = provider.ContentTypeJSON
	}
	if len(systemParts) > 0 {
		request.SystemInstruction = &geminiContent{Role: "system", Parts: systemParts}
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	model := c.model
	if strings.TrimSpace(req.Model) != "" && !strings.Contains(req.Model, "/") {
		model = req.Model
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", provider.ContentTypeJSON)

	response, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &provider.UpstreamError{Provider: c.Name(), Err: redactKey(err, c.apiKey)}
	}

	body, err := provider.ReadDocument(response.Body, c.readTimeout)
	if err != nil {
		return nil, &provider.UpstreamError{Provider: c.Name(), Err: err}
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		message := strings.TrimSpace(string(body))
		var apiErr geminiResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil {
			message = apiErr.Error.Message
		}
		return nil, &provider.UpstreamError{Provider: c.Name(), StatusCode: response.StatusCode, Body: message}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &provider.UpstreamError{Provider: c.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, &provider.UpstreamError{Provider: c.Name(), Err: errors.New("response missing content")}
	}

	var builder strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		builder.WriteString(part.Text)
	}

	return provider.JSONResponse(Message{Role: "assistant", Content: builder.String()}), nil
}

// redactKey убирает ключ из текста ошибки: он передается в query string.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
