package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"example.com/prestige-worldwide/backend/internal/provider"
)

// ErrMalformedPayload: ожидаемая структура не найдена в ответе.
var ErrMalformedPayload = errors.New("relay: structured payload not found")

// ReadDocument полностью читает тело ответа. По истечении timeout тело закрывается,
// и чтение завершается ошибкой.
func ReadDocument(body io.ReadCloser, timeout time.Duration) ([]byte, error) {
	payload, err := provider.ReadDocument(body, timeout)
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}
	return payload, nil
}

// Text возвращает ответ уровня как одну строку независимо от режима источника.
// Поток событий собирается целиком, из документа извлекается текст ответа.
func Text(ctx context.Context, response *provider.Response, timeout time.Duration, logger *slog.Logger) (string, error) {
	if response.IsStream() {
		defer func() { _ = response.Close() }()
		stats, err := Stream(ctx, io.Discard, response.Body, logger)
		if err != nil {
			return "", err
		}
		return stats.Content, nil
	}

	doc, err := ReadDocument(response.Body, timeout)
	if err != nil {
		return "", err
	}

	if text, ok := ExtractText(doc); ok {
		return text, nil
	}
	return strings.TrimSpace(string(doc)), nil
}

type envelope struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Content *string         `json:"content"`
	Message json.RawMessage `json:"message"`
	Insight *string         `json:"insight"`
	Output  *string         `json:"output"`
	Text    *string         `json:"text"`
}

// ExtractText достает текст ответа из известных форм документа: chat completions,
// {content}, {message}, {insight}, {output}, {text} или JSON-строка.
// Документ, не являющийся JSON, считается готовым текстом.
func ExtractText(doc []byte) (string, bool) {
	trimmed := strings.TrimSpace(string(doc))
	if trimmed == "" {
		return "", false
	}

	if !json.Valid([]byte(trimmed)) {
		return trimmed, true
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal([]byte(trimmed), &text); err != nil {
			return "", false
		}
		return text, true
	case '{':
	default:
		return "", false
	}

	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return "", false
	}

	if len(env.Choices) > 0 {
		if env.Choices[0].Message.Content != "" {
			return env.Choices[0].Message.Content, true
		}
		if env.Choices[0].Text != "" {
			return env.Choices[0].Text, true
		}
	}

	for _, candidate := range []*string{env.Content, env.Insight, env.Output, env.Text} {
		if candidate != nil && *candidate != "" {
			return *candidate, true
		}
	}

	if len(env.Message) > 0 {
		var text string
		if err := json.Unmarshal(env.Message, &text); err == nil && text != "" {
			return text, true
		}
		var nested struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(env.Message, &nested); err == nil && nested.Content != "" {
			return nested.Content, true
		}
	}

	return "", false
}

// DecodeArray находит в тексте первый корректный JSON-массив, который
// декодируется в []T. Пояснения модели до и после массива допускаются.
func DecodeArray[T any](text string) ([]T, error) {
	for i := strings.IndexByte(text, '['); i >= 0; {
		if raw, ok := decodeArrayAt(text, i); ok {
			var out []T
			if err := json.Unmarshal(raw, &out); err == nil {
				return out, nil
			}
		}

		next := strings.IndexByte(text[i+1:], '[')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, ErrMalformedPayload
}

func decodeArrayAt(text string, offset int) (json.RawMessage, bool) {
	decoder := json.NewDecoder(strings.NewReader(text[offset:]))
	var raw json.RawMessage
	if err := decoder.Decode(&raw); err != nil {
		return nil, false
	}
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	return raw, true
}

// DecodeObject извлекает JSON-объект из ответа модели (в том числе из блока ```json)
// и декодирует его в target.
func DecodeObject(text string, target any) error {
	payload := extractObject(text)
	if payload == "" {
		return ErrMalformedPayload
	}
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func extractObject(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimPrefix(strings.TrimSpace(trimmed), "json")
		trimmed = strings.TrimSpace(trimmed)
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}

	return trimmed[start : end+1]
}
