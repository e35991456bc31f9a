package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DocumentLimit ограничивает размер документа в атомарном режиме.
const DocumentLimit = 1 << 20

const (
	ContentTypeJSON        = "application/json"
	ContentTypeEventStream = "text/event-stream"
)

// Response: сырой ответ уровня. Тело не прочитано: режим выдачи выбирает relay.
type Response struct {
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
}

// IsStream сообщает, объявил ли источник поток событий.
func (r *Response) IsStream() bool {
	if r == nil {
		return false
	}
	return strings.Contains(strings.ToLower(r.ContentType), ContentTypeEventStream)
}

// Close освобождает соединение с источником.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// FromHTTP оборачивает ответ net/http без чтения тела.
func FromHTTP(res *http.Response) *Response {
	return &Response{
		StatusCode:  res.StatusCode,
		ContentType: res.Header.Get("Content-Type"),
		Body:        res.Body,
	}
}

// JSONResponse собирает локальный JSON-документ для уровня по умолчанию.
func JSONResponse(v any) *Response {
	payload, err := json.Marshal(v)
	if err != nil {
		payload = []byte("{}")
	}
	return DocumentResponse(payload)
}

// DocumentResponse оборачивает готовый JSON-документ.
func DocumentResponse(payload []byte) *Response {
	return &Response{
		StatusCode:  http.StatusOK,
		ContentType: ContentTypeJSON,
		Body:        io.NopCloser(bytes.NewReader(payload)),
	}
}

// ReadDocument полностью читает тело ответа. По истечении timeout тело закрывается,
// и чтение завершается ошибкой. Нулевой timeout отключает срок.
func ReadDocument(body io.ReadCloser, timeout time.Duration) ([]byte, error) {
	defer func() { _ = body.Close() }()

	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() { _ = body.Close() })
		defer timer.Stop()
	}

	payload, err := io.ReadAll(io.LimitReader(body, DocumentLimit))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return payload, nil
}

// buffered возвращает копию ответа с уже прочитанным телом.
func (r *Response) buffered(timeout time.Duration) (*Response, error) {
	payload, err := ReadDocument(r.Body, timeout)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode:  r.StatusCode,
		ContentType: r.ContentType,
		Body:        io.NopCloser(bytes.NewReader(payload)),
	}, nil
}
