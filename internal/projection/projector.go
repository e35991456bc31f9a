// Package projection считает метрики плана локально, без обращения к модели.
package projection

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"example.com/prestige-worldwide/backend/internal/models"
)

// ReferenceCurrency: валюта, в которой заданы балансы счетов и все метрики.
const ReferenceCurrency = "USD"

const Disclaimer = "This is an AI-generated summary for informational purposes only and does not constitute financial, legal, or tax advice. Please consult qualified professionals in each jurisdiction."

var (
	annualGrowthRate = decimal.RequireFromString("0.07")
	withdrawalRate   = decimal.RequireFromString("0.04")
)

// Project вычисляет метрики плана. Возраст не проверяется: отрицательный горизонт
// дает дисконтирование, а не ошибку.
func Project(profile models.FinancialProfile) models.Metrics {
	netWorth := decimal.Zero
	for _, account := range profile.Accounts {
		netWorth = netWorth.Add(decimal.NewFromFloat(account.Balance))
	}

	years := profile.RetirementAge - profile.CurrentAge
	growth := decimal.NewFromInt(1).Add(annualGrowthRate).Pow(decimal.NewFromInt(int64(years)))
	projected := netWorth.Mul(growth)
	income := projected.Mul(withdrawalRate)

	return models.Metrics{
		NetWorth:                          netWorth.Round(2).InexactFloat64(),
		YearsToRetirement:                 years,
		ProjectedRetirementBalance:        projected.Round(0).InexactFloat64(),
		EstimatedAnnualIncomeAtRetirement: income.Round(0).InexactFloat64(),
	}
}

// BuildPlan собирает полный план уровня по умолчанию. Результат полностью
// определяется профилем.
func BuildPlan(profile models.FinancialProfile) models.Plan {
	metrics := Project(profile)
	countries := countryList(profile.Countries, ", ")

	summary := fmt.Sprintf(
		"Based on your accounts across %s, you have an estimated net worth of $%s %s. With %d years until your target retirement age of %d, here is a high-level plan.",
		countries,
		formatAmount(metrics.NetWorth),
		ReferenceCurrency,
		metrics.YearsToRetirement,
		profile.RetirementAge,
	)

	return models.Plan{
		Summary:         summary,
		Metrics:         metrics,
		Recommendations: Recommendations(profile, metrics.YearsToRetirement),
		Disclaimer:      Disclaimer,
		Meta:            profile,
	}
}

// Recommendations возвращает четыре фиксированные рекомендации: Retirement, Tax, Currency, Estate.
func Recommendations(profile models.FinancialProfile, years int) []models.Recommendation {
	return []models.Recommendation{
		{
			Category: "Retirement",
			Priority: models.PriorityHigh,
			Text:     fmt.Sprintf("Maximise contributions to your tax-advantaged accounts in each jurisdiction. With %d years of growth, compounding has a significant impact.", years),
		},
		{
			Category: "Tax",
			Priority: models.PriorityHigh,
			Text:     fmt.Sprintf("Review applicable tax treaties between %s. Double-taxation agreements may significantly reduce your overall tax burden.", countryList(profile.Countries, " and ")),
		},
		{
			Category: "Currency",
			Priority: models.PriorityMedium,
			Text:     "Consider your base currency for retirement. Holding assets across multiple currencies provides a natural hedge but introduces FX risk on drawdown.",
		},
		{
			Category: "Estate",
			Priority: models.PriorityMedium,
			Text:     "Cross-border assets often fall under multiple inheritance regimes. A cross-border estate plan is advisable once assets exceed $500k.",
		},
	}
}

func countryList(countries []string, sep string) string {
	cleaned := make([]string, 0, len(countries))
	for _, country := range countries {
		if trimmed := strings.TrimSpace(country); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return "your countries of residence"
	}
	return strings.Join(cleaned, sep)
}

// formatAmount печатает сумму с разделителями тысяч: 1234567.5 -> 1,234,567.5.
func formatAmount(value float64) string {
	text := decimal.NewFromFloat(value).String()

	sign := ""
	if strings.HasPrefix(text, "-") {
		sign, text = "-", text[1:]
	}

	whole, fraction, hasFraction := strings.Cut(text, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if hasFraction {
		return sign + b.String() + "." + fraction
	}
	return sign + b.String()
}
