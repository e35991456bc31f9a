package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/prestige-worldwide/backend/internal/models"
	"example.com/prestige-worldwide/backend/internal/provider"
)

// TestOpenRouterStreamPassThrough проверяет, что потоковый ответ возвращается непрочитанным.
func TestOpenRouterStreamPassThrough(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.Equal(t, "https://prestigeworldwide.app", r.Header.Get("HTTP-Referer"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewOpenRouterClient("key", server.URL+"/", "https://prestigeworldwide.app", 0, server.Client())
	response, err := client.Complete(context.Background(), Request{
		Model:    "anthropic/claude-3.5-haiku",
		Messages: []Message{{Role: "user", Content: "hello"}},
		Stream:   true,
	})
	require.NoError(t, err)
	defer response.Close()

	require.True(t, response.IsStream())
	require.True(t, captured.Stream)
	require.Equal(t, defaultMaxTokens, captured.MaxTokens)
	require.Nil(t, captured.ResponseFormat)

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "[DONE]")
}

// TestOpenRouterErrorStatus проверяет, что неуспешный статус превращается в UpstreamError.
func TestOpenRouterErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewOpenRouterClient("key", server.URL, "", 128, server.Client())
	_, err := client.Complete(context.Background(), Request{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}})

	var upstreamErr *provider.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	require.Equal(t, http.StatusTooManyRequests, upstreamErr.HTTPStatusCode())
	require.Contains(t, upstreamErr.Body, "rate limited")
}

// TestOpenRouterNotConfigured проверяет, что без ключа запрос не отправляется.
func TestOpenRouterNotConfigured(t *testing.T) {
	client := NewOpenRouterClient("  ", "http://127.0.0.1:1", "", 0, nil)
	require.False(t, client.Configured())

	_, err := client.Complete(context.Background(), Request{Model: "m"})
	require.ErrorIs(t, err, provider.ErrNotConfigured)
}

// TestGeminiNormalizesDocument проверяет сборку ответа Gemini в документ {"role","content"}.
func TestGeminiNormalizesDocument(t *testing.T) {
	var captured geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		require.Equal(t, "secret", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Part one. "},{"text":"Part two."}]}}]}`)
	}))
	defer server.Close()

	client := NewGeminiClient("secret", server.URL, "gemini-1.5-flash", 0, time.Second, server.Client())
	response, err := client.Complete(context.Background(), Request{
		Model: "google/gemini-flash-1.5",
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "again"},
		},
		JSON: true,
	})
	require.NoError(t, err)
	defer response.Close()

	require.False(t, response.IsStream())
	require.NotNil(t, captured.SystemInstruction)
	require.Len(t, captured.Contents, 3)
	require.Equal(t, "model", captured.Contents[1].Role)
	require.Equal(t, provider.ContentTypeJSON, captured.GenerationConfig.ResponseMimeType)

	var message Message
	require.NoError(t, json.NewDecoder(response.Body).Decode(&message))
	require.Equal(t, "assistant", message.Role)
	require.Equal(t, "Part one. Part two.", message.Content)
}

// TestGeminiErrorMessage проверяет, что сообщение об ошибке API попадает в UpstreamError.
func TestGeminiErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"API key not valid"}}`)
	}))
	defer server.Close()

	client := NewGeminiClient("secret", server.URL, "gemini-1.5-flash", 0, time.Second, server.Client())
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}})

	var upstreamErr *provider.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	require.Equal(t, http.StatusBadRequest, upstreamErr.StatusCode)
	require.Equal(t, "API key not valid", upstreamErr.Body)
	require.NotContains(t, err.Error(), "secret")
}

// TestGeminiStalledBody проверяет, что зависшее тело ответа завершается ошибкой по сроку чтения.
func TestGeminiStalledBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"candidates":[`)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewGeminiClient("secret", server.URL, "gemini-1.5-flash", 0, 50*time.Millisecond, server.Client())

	started := time.Now()
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "x"}}})

	var upstreamErr *provider.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	require.Less(t, time.Since(started), time.Second)
}

type stubClient struct {
	configured bool
	last       Request
	err        error
}

func (s *stubClient) Name() string     { return "stub" }
func (s *stubClient) Configured() bool { return s.configured }

func (s *stubClient) Complete(_ context.Context, req Request) (*provider.Response, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return provider.JSONResponse(Message{Role: "assistant", Content: "ok"}), nil
}

// TestTierBuildsRequest проверяет, что уровень модели передает модель, режим и промпт.
func TestTierBuildsRequest(t *testing.T) {
	client := &stubClient{configured: true}
	tier := NewTier(client, TierConfig{Model: "perplexity/sonar-pro", JSON: true}, NewsMessages)
	tier.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	response, err := tier.Call(context.Background(), models.NewsRequest{})
	require.NoError(t, err)
	defer response.Close()

	require.Equal(t, "stub", tier.Name())
	require.Equal(t, "perplexity/sonar-pro", client.last.Model)
	require.True(t, client.last.JSON)
	require.False(t, client.last.Stream)
	require.Len(t, client.last.Messages, 1)
	require.Contains(t, client.last.Messages[0].Content, "Today is 2026-03-01.")
}

// TestTierNotConfigured проверяет, что ненастроенный клиент делает уровень пропускаемым.
func TestTierNotConfigured(t *testing.T) {
	tier := NewTier(&stubClient{}, TierConfig{Model: "m"}, InsightMessages)
	require.False(t, tier.Configured())

	_, err := tier.Call(context.Background(), models.InsightRequest{})
	require.True(t, errors.Is(err, provider.ErrNotConfigured))

	var nilTier = NewTier[models.InsightRequest](nil, TierConfig{}, InsightMessages)
	require.False(t, nilTier.Configured())
	require.Equal(t, "model", nilTier.Name())
}

func TestPromptContent(t *testing.T) {
	now := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	profile := models.FinancialProfile{
		Countries:     []string{"Canada", "United States"},
		Accounts:      []models.Account{{Type: "RRSP", Country: "Canada", Balance: 62000}, {Type: "401(k)", Country: "United States", Balance: 85000}},
		Goals:         []string{"retire abroad"},
		CurrentAge:    40,
		RetirementAge: 65,
	}

	t.Run("news uses plan meta", func(t *testing.T) {
		messages := NewsMessages(models.NewsRequest{Plan: models.Plan{Meta: profile}}, now)
		content := messages[0].Content
		require.Contains(t, content, "assets in: Canada, United States.")
		require.Contains(t, content, "Account types: RRSP, 401(k).")
		require.Contains(t, content, "Goals: retire abroad.")
	})

	t.Run("news falls back without meta", func(t *testing.T) {
		content := NewsMessages(models.NewsRequest{}, now)[0].Content
		require.Contains(t, content, "assets in: multiple countries.")
		require.Contains(t, content, "Account types: various accounts.")
		require.Contains(t, content, "Goals: financial planning.")
	})

	t.Run("chat without plan context", func(t *testing.T) {
		messages := ChatMessages(models.ChatRequest{Messages: []models.ChatTurn{{Role: models.RoleUser, Content: "hi"}}}, now)
		require.Len(t, messages, 2)
		require.Equal(t, chatSystemPrompt, messages[0].Content)
		require.Equal(t, "user", messages[1].Role)
	})

	t.Run("chat with plan context", func(t *testing.T) {
		plan := models.Plan{Summary: "Canada plan"}
		messages := ChatMessages(models.ChatRequest{PlanContext: &plan}, now)
		require.Contains(t, messages[0].Content, "Canada plan")
		require.Contains(t, messages[0].Content, "not a licensed financial adviser")
	})

	t.Run("insight carries date", func(t *testing.T) {
		messages := InsightMessages(models.InsightRequest{}, now)
		require.True(t, strings.HasSuffix(messages[0].Content, "Today is 2026-01-15."))
	})

	t.Run("plan asks for json", func(t *testing.T) {
		messages := PlanMessages(profile, now)
		require.Len(t, messages, 2)
		require.Contains(t, messages[1].Content, `"RRSP"`)
		require.Contains(t, messages[1].Content, "projectedRetirementBalance")
	})
}
