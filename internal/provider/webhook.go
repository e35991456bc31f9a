package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const errorBodyLimit = 4096

// Webhook вызывает workflow автоматизации (n8n): POST полезной нагрузки как JSON.
// Ответ может быть и документом, и потоком событий.
type Webhook[P any] struct {
	name       string
	url        string
	httpClient *http.Client
}

// NewWebhook создает уровень автоматизации. Пустой url означает, что уровень не настроен.
func NewWebhook[P any](name, url string, httpClient *http.Client) *Webhook[P] {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Webhook[P]{
		name:       name,
		url:        strings.TrimSpace(url),
		httpClient: httpClient,
	}
}

func (w *Webhook[P]) Name() string {
	return w.name
}

func (w *Webhook[P]) Configured() bool {
	return w.url != ""
}

// Call отправляет полезную нагрузку. Тело успешного ответа остается непрочитанным.
func (w *Webhook[P]) Call(ctx context.Context, payload P) (*Response, error) {
	if !w.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal payload: %w", w.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", w.name, err)
	}
	req.Header.Set("Content-Type", ContentTypeJSON)
	req.Header.Set("Accept", ContentTypeJSON+", "+ContentTypeEventStream)

	res, err := w.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: w.name, Err: err}
	}

	if err := CheckStatus(w.name, res); err != nil {
		return nil, err
	}

	return FromHTTP(res), nil
}

// CheckStatus закрывает тело неуспешного ответа и возвращает UpstreamError.
func CheckStatus(name string, res *http.Response) error {
	if res.StatusCode >= http.StatusOK && res.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	defer func() { _ = res.Body.Close() }()

	buf, _ := io.ReadAll(io.LimitReader(res.Body, errorBodyLimit))
	return &UpstreamError{
		Provider:   name,
		StatusCode: res.StatusCode,
		Body:       strings.TrimSpace(string(buf)),
	}
}
