package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"example.com/prestige-worldwide/backend/internal/models"
)

const (
	chatSystemPrompt      = "You are a helpful cross-border financial planning assistant."
	structuredOutputRules = "You are a cross-border financial planning assistant. Respond with JSON only, without extra text."
)

// PlanMessages строит запрос плана по финансовому профилю.
func PlanMessages(profile models.FinancialProfile, _ time.Time) []Message {
	payload, _ := json.MarshalIndent(profile, "", "  ")

	prompt := fmt.Sprintf(`Create a cross-border financial plan as JSON.

Requirements:
- Output JSON only, no code fences, no extra text.
- Amounts are in USD, numbers only.
- Schema:
{
  "summary": string,
  "metrics": {
    "netWorth": number,
    "yearsToRetirement": integer,
    "projectedRetirementBalance": number,
    "estimatedAnnualIncomeAtRetirement": number
  },
  "recommendations": [
    {"category": string, "priority": "high" | "medium" | "low", "text": string}
  ],
  "disclaimer": string
}
- Provide 3-6 recommendations covering retirement, tax, currency and estate topics.
- Name the specific countries and account types from the input.

Input:
%s`, string(payload))

	return []Message{
		{Role: "system", Content: structuredOutputRules},
		{Role: "user", Content: prompt},
	}
}

// ChatMessages добавляет к истории диалога системный промпт с контекстом плана.
func ChatMessages(req models.ChatRequest, _ time.Time) []Message {
	system := chatSystemPrompt
	if req.PlanContext != nil {
		planJSON, _ := json.MarshalIndent(req.PlanContext, "", "  ")
		system = fmt.Sprintf(`You are a helpful cross-border financial planning assistant for Prestige Worldwide.
The user's current financial plan context:

%s

Answer questions about their plan, explain recommendations, and provide general guidance. Always note you are not a licensed financial adviser.`, string(planJSON))
	}

	messages := make([]Message, 0, len(req.Messages)+1)
	messages = append(messages, Message{Role: "system", Content: system})
	for _, turn := range req.Messages {
		messages = append(messages, Message{Role: string(turn.Role), Content: turn.Content})
	}
	return messages
}

// InsightMessages просит короткий инсайт дня по плану пользователя.
func InsightMessages(req models.InsightRequest, now time.Time) []Message {
	planJSON, _ := json.MarshalIndent(req.Plan, "", "  ")

	return []Message{
		{Role: "system", Content: fmt.Sprintf("You are a concise cross-border financial planning analyst. Today is %s.", day(now))},
		{Role: "user", Content: fmt.Sprintf(`Based on this user's financial plan, write a 2-3 sentence spotlight insight that is highly specific to their countries, account types, and current date (e.g. tax-year timing, treaty opportunities, currency events). Be concrete and actionable. Do not use generic advice.

Plan:
%s`, string(planJSON))},
	}
}

// NewsMessages просит подборку новостей в виде JSON-массива.
func NewsMessages(req models.NewsRequest, now time.Time) []Message {
	meta := req.Plan.Meta

	prompt := fmt.Sprintf(`Today is %s. The user has assets in: %s. Account types: %s. Goals: %s.

Find 3-5 financial news items from the past 7 days that are highly relevant to this user's specific situation. Focus on: tax treaty changes, currency movements, retirement account rule changes, estate planning updates, or cross-border financial regulations affecting their specific countries.

Return ONLY a JSON array with this exact shape (no markdown, no extra text):
[{"headline":"...","summary":"1-2 sentences","relevance":"1 sentence explaining why this matters for this user","url":"https://...","date":"YYYY-MM-DD"}]`,
		day(now),
		joinOr(meta.Countries, "multiple countries"),
		joinOr(meta.AccountTypes(), "various accounts"),
		joinOr(meta.Goals, "financial planning"),
	)

	return []Message{{Role: "user", Content: prompt}}
}

func day(now time.Time) string {
	return now.UTC().Format(time.DateOnly)
}

func joinOr(values []string, fallback string) string {
	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			cleaned = append(cleaned, value)
		}
	}
	if len(cleaned) == 0 {
		return fallback
	}
	return strings.Join(cleaned, ", ")
}
