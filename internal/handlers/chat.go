package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"example.com/prestige-worldwide/backend/internal/models"
	"example.com/prestige-worldwide/backend/internal/provider"
	"example.com/prestige-worldwide/backend/internal/relay"
)

const streamErrorEvent = "event: error\ndata: {\"error\":\"upstream relay failed\"}\n\n"

// Chat отвечает на сообщение пользователя потоком событий или одним документом,
// в зависимости от того, что вернул выбранный уровень.
func (h *ContentHandler) Chat(c echo.Context) error {
	var req models.ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	ctx := c.Request().Context()
	result := h.Chains.Chat.Execute(ctx, req)
	h.recordAttempts(c, models.KindChat, result)

	if result.Response.IsStream() {
		return h.streamChat(c, result)
	}

	doc, err := relay.ReadDocument(result.Response.Body, h.ReadTimeout)
	if err != nil {
		h.Logger.Error("chat relay failed",
			slog.String("tier", string(result.Tier)),
			slog.String("error", err.Error()),
		)
		return relayFailed(c)
	}

	text, ok := relay.ExtractText(doc)
	if !ok && opaqueObject(doc) {
		h.Logger.Info("chat document passed through", slog.String("provider", result.Provider))
		return c.JSONBlob(http.StatusOK, doc)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		h.Logger.Warn("chat payload empty, using acknowledgement", slog.String("provider", result.Provider))
		text = ChatAcknowledgement(req)
	}

	return c.JSON(http.StatusOK, chatMessage{Role: models.RoleAssistant, Content: text})
}

// opaqueObject сообщает, что документ является JSON-объектом без полей с текстом ответа.
// Такой объект отдается клиенту без изменений.
func opaqueObject(doc []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil || len(fields) == 0 {
		return false
	}
	for _, key := range []string{"choices", "content", "message", "insight", "output", "text"} {
		if _, ok := fields[key]; ok {
			return false
		}
	}
	return true
}

func (h *ContentHandler) streamChat(c echo.Context, result provider.Result) error {
	defer func() { _ = result.Response.Close() }()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, provider.ContentTypeEventStream)
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	stats, err := relay.Stream(ctx, res, result.Response.Body, h.Logger)
	if h.Relay != nil {
		h.Relay.ObserveRelay(models.KindChat, stats.Forwarded, stats.Skipped)
	}

	if err != nil {
		if ctx.Err() != nil {
			h.Logger.Info("chat stream closed by client",
				slog.String("provider", result.Provider),
				slog.Int("forwarded", stats.Forwarded),
			)
			return nil
		}

		h.Logger.Error("chat stream relay failed",
			slog.String("provider", result.Provider),
			slog.Int("forwarded", stats.Forwarded),
			slog.String("error", err.Error()),
		)
		if _, writeErr := res.Write([]byte(streamErrorEvent)); writeErr == nil {
			res.Flush()
		}
		return nil
	}

	if stats.Skipped > 0 {
		h.Logger.Warn("chat stream skipped malformed fragments",
			slog.String("provider", result.Provider),
			slog.Int("skipped", stats.Skipped),
		)
	}
	return nil
}
