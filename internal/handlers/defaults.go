package handlers

import (
	"fmt"
	"time"

	"example.com/prestige-worldwide/backend/internal/models"
	"example.com/prestige-worldwide/backend/internal/projection"
	"example.com/prestige-worldwide/backend/internal/provider"
)

// StubInsight: инсайт уровня по умолчанию.
const StubInsight = "The US-Canada tax treaty allows pension income to be taxed only in your country of residence — ensure your RRSP withdrawals are reported correctly to avoid double taxation. With markets near all-time highs, consider whether your target-date glide path matches your cross-border risk tolerance. A rebalance before year-end could save on capital gains in both jurisdictions."

// StubNews возвращает подборку новостей уровня по умолчанию с датой now.
func StubNews(now time.Time) []models.NewsItem {
	day := now.UTC().Format(time.DateOnly)
	return []models.NewsItem{
		{
			Headline:  "IRS releases updated foreign tax credit guidance for dual-status taxpayers",
			Summary:   "New guidance clarifies how US citizens living abroad can apply foreign tax credits against PFIC income — potentially reducing effective rates for those with Canadian mutual funds.",
			Relevance: "Directly affects US-Canada dual taxpayers holding RRSP or non-registered investment accounts.",
			URL:       "https://www.irs.gov",
			Date:      day,
		},
		{
			Headline:  "Bank of Canada holds rates steady; CAD strengthens against USD",
			Summary:   "The BoC maintained its overnight rate at 3.75%, citing moderating inflation. The CAD gained 0.4% against the USD following the announcement.",
			Relevance: "Affects the USD value of your Canadian accounts and cross-border transfer timing.",
			URL:       "https://www.bankofcanada.ca",
			Date:      day,
		},
	}
}

// ChatAcknowledgement: ответ чата по умолчанию, цитирующий последний вопрос пользователя.
func ChatAcknowledgement(req models.ChatRequest) string {
	question := req.LastUserMessage()
	if question == "" {
		question = "your question"
	}
	return fmt.Sprintf("Thanks for your question about \"%s\". To get live AI responses, connect N8N or set OPENROUTER_API_KEY in your environment.", question)
}

type chatMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

type insightResponse struct {
	Insight string `json:"insight"`
}

// Уровни по умолчанию: локальные, без ошибок, отдают JSON-документ.

func PlanFallback(profile models.FinancialProfile) *provider.Response {
	return provider.JSONResponse(projection.BuildPlan(profile))
}

func ChatFallback(req models.ChatRequest) *provider.Response {
	return provider.JSONResponse(chatMessage{Role: models.RoleAssistant, Content: ChatAcknowledgement(req)})
}

func InsightFallback(models.InsightRequest) *provider.Response {
	return provider.JSONResponse(insightResponse{Insight: StubInsight})
}

// NewsFallback строит уровень по умолчанию для новостей с часами now.
func NewsFallback(now func() time.Time) provider.Fallback[models.NewsRequest] {
	return func(models.NewsRequest) *provider.Response {
		return provider.JSONResponse(StubNews(now()))
	}
}
