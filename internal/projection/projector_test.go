package projection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/prestige-worldwide/backend/internal/models"
)

func canadaProfile() models.FinancialProfile {
	return models.FinancialProfile{
		Countries:     []string{"Canada"},
		Accounts:      []models.Account{{Type: "RRSP", Balance: 62000}},
		CurrentAge:    40,
		RetirementAge: 65,
	}
}

// TestProjectCanadaScenario проверяет сценарий RRSP 62000, 40 -> 65 лет.
func TestProjectCanadaScenario(t *testing.T) {
	metrics := Project(canadaProfile())

	require.Equal(t, 62000.0, metrics.NetWorth)
	require.Equal(t, 25, metrics.YearsToRetirement)
	require.InDelta(t, 336497, metrics.ProjectedRetirementBalance, 10)
	require.Equal(t, 336501.0, metrics.ProjectedRetirementBalance)
	require.Equal(t, 13460.0, metrics.EstimatedAnnualIncomeAtRetirement)
}

// TestProjectDeterministic проверяет идемпотентность расчета и рекомендаций.
func TestProjectDeterministic(t *testing.T) {
	profile := models.FinancialProfile{
		Countries:     []string{"United States", "Canada"},
		Accounts:      []models.Account{{Type: "401(k)", Balance: 85000.55}, {Type: "RRSP", Balance: 62000}},
		CurrentAge:    35,
		RetirementAge: 60,
	}

	require.Equal(t, BuildPlan(profile), BuildPlan(profile))
}

// TestProjectedNotBelowNetWorth проверяет рост при положительном горизонте.
func TestProjectedNotBelowNetWorth(t *testing.T) {
	for _, years := range []int{1, 5, 30} {
		profile := canadaProfile()
		profile.RetirementAge = profile.CurrentAge + years

		metrics := Project(profile)
		require.GreaterOrEqual(t, metrics.ProjectedRetirementBalance, metrics.NetWorth)
	}
}

// TestProjectNoAccounts проверяет деградацию без счетов.
func TestProjectNoAccounts(t *testing.T) {
	plan := BuildPlan(models.FinancialProfile{CurrentAge: 30, RetirementAge: 60})

	require.Zero(t, plan.Metrics.NetWorth)
	require.Zero(t, plan.Metrics.ProjectedRetirementBalance)
	require.Zero(t, plan.Metrics.EstimatedAnnualIncomeAtRetirement)
	require.Equal(t, 30, plan.Metrics.YearsToRetirement)
	require.True(t, plan.Metrics.Finite())
	require.Len(t, plan.Recommendations, 4)
	require.Contains(t, plan.Summary, "your countries of residence")
}

// TestProjectNegativeHorizon проверяет, что некорректный возраст не ломает расчет.
func TestProjectNegativeHorizon(t *testing.T) {
	profile := canadaProfile()
	profile.RetirementAge = 38

	metrics := Project(profile)
	require.Equal(t, -2, metrics.YearsToRetirement)
	require.True(t, metrics.Finite())
	require.Less(t, metrics.ProjectedRetirementBalance, metrics.NetWorth)
}

// TestRecommendationsInterpolateProfile проверяет категории и подстановку стран и горизонта.
func TestRecommendationsInterpolateProfile(t *testing.T) {
	profile := canadaProfile()
	profile.Countries = []string{"Canada", "United Kingdom"}

	recs := Recommendations(profile, 25)
	categories := make([]string, 0, len(recs))
	for _, rec := range recs {
		categories = append(categories, rec.Category)
	}

	require.Equal(t, []string{"Retirement", "Tax", "Currency", "Estate"}, categories)
	require.Contains(t, recs[0].Text, "25 years")
	require.Contains(t, recs[1].Text, "Canada and United Kingdom")
	require.Equal(t, models.PriorityHigh, recs[1].Priority)
}

// TestFormatAmount проверяет разделители тысяч.
func TestFormatAmount(t *testing.T) {
	require.Equal(t, "62,000", formatAmount(62000))
	require.Equal(t, "1,234,567.5", formatAmount(1234567.5))
	require.Equal(t, "999", formatAmount(999))
	require.Equal(t, "-1,000", formatAmount(-1000))
}
