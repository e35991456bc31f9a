package provider

import (
	"errors"
	"fmt"
)

// ErrNotConfigured означает, что у уровня нет адреса или ключа: он пропускается без попытки.
var ErrNotConfigured = errors.New("provider: tier not configured")

// UpstreamError описывает недоступность настроенного уровня: ошибку транспорта,
// неуспешный статус, таймаут или открытый circuit breaker.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: upstream unavailable", e.Provider)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) HTTPStatusCode() int {
	return e.StatusCode
}
