package provider

import (
	"net/http"
	"time"
)

// NewHTTPClient создает клиент для вызовов уровней.
//
// Таймаут ограничивает только ожидание заголовков ответа: потоковые ответы
// могут идти дольше, а чтение документа ограничивает relay.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	transport.TLSHandshakeTimeout = timeout

	return &http.Client{Transport: transport}
}
