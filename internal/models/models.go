package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// Kind: тип запроса, который обслуживает цепочка провайдеров.
type Kind string

const (
	KindPlan    Kind = "plan"
	KindChat    Kind = "chat"
	KindInsight Kind = "insight"
	KindNews    Kind = "news"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Account struct {
	Type     string  `json:"type" validate:"required,max=64"`
	Country  string  `json:"country,omitempty" validate:"max=64"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency,omitempty" validate:"omitempty,len=3"`
}

// UnmarshalJSON принимает также поле balanceUsd, которое отдают старые n8n-воркфлоу.
func (a *Account) UnmarshalJSON(data []byte) error {
	type plain Account
	aux := struct {
		*plain
		Balance    *float64 `json:"balance"`
		BalanceUSD *float64 `json:"balanceUsd"`
	}{plain: (*plain)(a)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch {
	case aux.Balance != nil:
		a.Balance = *aux.Balance
	case aux.BalanceUSD != nil:
		a.Balance = *aux.BalanceUSD
	}
	return nil
}

type FinancialProfile struct {
	Countries         []string  `json:"countries" validate:"max=20,dive,max=64"`
	Accounts          []Account `json:"accounts" validate:"dive"`
	Goals             []string  `json:"goals"`
	CurrentAge        int       `json:"currentAge" validate:"gte=0,lte=120"`
	RetirementAge     int       `json:"retirementAge" validate:"gtfield=CurrentAge,lte=120"`
	ResidenceCountry  string    `json:"residenceCountry,omitempty"`
	RetirementCountry string    `json:"retirementCountry,omitempty"`
	Notes             string    `json:"notes,omitempty"`
}

// AccountTypes возвращает типы счетов в исходном порядке.
func (p FinancialProfile) AccountTypes() []string {
	out := make([]string, 0, len(p.Accounts))
	for _, account := range p.Accounts {
		out = append(out, account.Type)
	}
	return out
}

type Metrics struct {
	NetWorth                          float64 `json:"netWorth"`
	YearsToRetirement                 int     `json:"yearsToRetirement"`
	ProjectedRetirementBalance        float64 `json:"projectedRetirementBalance"`
	EstimatedAnnualIncomeAtRetirement float64 `json:"estimatedAnnualIncomeAtRetirement"`
}

// UnmarshalJSON понимает и старые имена полей с суффиксом Usd.
// Модели иногда пишут число лет дробным (25.0), оно округляется.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var aux struct {
		NetWorth                             *float64 `json:"netWorth"`
		NetWorthUSD                          *float64 `json:"netWorthUsd"`
		YearsToRetirement                    *float64 `json:"yearsToRetirement"`
		ProjectedRetirementBalance           *float64 `json:"projectedRetirementBalance"`
		ProjectedRetirementBalanceUSD        *float64 `json:"projectedRetirementBalanceUsd"`
		EstimatedAnnualIncomeAtRetirement    *float64 `json:"estimatedAnnualIncomeAtRetirement"`
		EstimatedAnnualIncomeAtRetirementUSD *float64 `json:"estimatedAnnualIncomeAtRetirementUsd"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.NetWorth = firstFloat(aux.NetWorth, aux.NetWorthUSD)
	m.YearsToRetirement = int(math.Round(firstFloat(aux.YearsToRetirement)))
	m.ProjectedRetirementBalance = firstFloat(aux.ProjectedRetirementBalance, aux.ProjectedRetirementBalanceUSD)
	m.EstimatedAnnualIncomeAtRetirement = firstFloat(aux.EstimatedAnnualIncomeAtRetirement, aux.EstimatedAnnualIncomeAtRetirementUSD)
	return nil
}

// Finite сообщает, что все метрики являются конечными числами.
func (m Metrics) Finite() bool {
	for _, value := range []float64{m.NetWorth, m.ProjectedRetirementBalance, m.EstimatedAnnualIncomeAtRetirement} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return false
		}
	}
	return true
}

func firstFloat(values ...*float64) float64 {
	for _, value := range values {
		if value != nil {
			return *value
		}
	}
	return 0
}

type Recommendation struct {
	Category string   `json:"category"`
	Priority Priority `json:"priority"`
	Text     string   `json:"text"`
}

type Plan struct {
	Summary         string           `json:"summary"`
	Metrics         Metrics          `json:"metrics"`
	Recommendations []Recommendation `json:"recommendations"`
	Disclaimer      string           `json:"disclaimer"`
	Meta            FinancialProfile `json:"meta"`
}

type ChatTurn struct {
	Role    Role   `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"max=8000"`
}

type NewsItem struct {
	Headline  string `json:"headline"`
	Summary   string `json:"summary"`
	Relevance string `json:"relevance"`
	URL       string `json:"url"`
	Date      string `json:"date"`
}

type CachedNewsSet struct {
	Items     []NewsItem `json:"items"`
	FetchedAt time.Time  `json:"fetchedAt"`
}

// CacheRecord: одна append-only запись кэша для пары (пользователь, тип запроса).
type CacheRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      Kind
	Items     json.RawMessage
	FetchedAt time.Time
}

type LinkedAccount struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Balance     float64 `json:"balance"`
	Currency    string  `json:"currency"`
	Institution *string `json:"institution"`
}

type ChatRequest struct {
	Messages    []ChatTurn `json:"messages" validate:"required,min=1,max=50,dive"`
	PlanContext *Plan      `json:"planContext,omitempty" validate:"-"`
}

// LastUserMessage возвращает текст последней реплики пользователя.
func (r ChatRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

type InsightRequest struct {
	Plan Plan `json:"plan" validate:"-"`
}

type NewsRequest struct {
	Plan         Plan `json:"plan" validate:"-"`
	ForceRefresh bool `json:"forceRefresh,omitempty"`
}
