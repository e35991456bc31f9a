package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMetricsUnmarshalFractionalYears проверяет округление дробного числа лет.
func TestMetricsUnmarshalFractionalYears(t *testing.T) {
	var m Metrics
	require.NoError(t, json.Unmarshal([]byte(`{"netWorth":100,"yearsToRetirement":25.0}`), &m))
	require.Equal(t, 25, m.YearsToRetirement)
	require.Equal(t, 100.0, m.NetWorth)

	require.NoError(t, json.Unmarshal([]byte(`{"yearsToRetirement":24.6}`), &m))
	require.Equal(t, 25, m.YearsToRetirement)
}

// TestMetricsUnmarshalUsdAliases проверяет старые имена полей с суффиксом Usd.
func TestMetricsUnmarshalUsdAliases(t *testing.T) {
	var m Metrics
	payload := `{
		"netWorthUsd": 62000,
		"yearsToRetirement": 25,
		"projectedRetirementBalanceUsd": 410000,
		"estimatedAnnualIncomeAtRetirementUsd": 16400
	}`
	require.NoError(t, json.Unmarshal([]byte(payload), &m))
	require.Equal(t, Metrics{
		NetWorth:                          62000,
		YearsToRetirement:                 25,
		ProjectedRetirementBalance:        410000,
		EstimatedAnnualIncomeAtRetirement: 16400,
	}, m)
}

// TestMetricsUnmarshalPrefersCurrentNames проверяет приоритет текущих имен над псевдонимами.
func TestMetricsUnmarshalPrefersCurrentNames(t *testing.T) {
	var m Metrics
	require.NoError(t, json.Unmarshal([]byte(`{"estimatedAnnualIncomeAtRetirement":1,"estimatedAnnualIncomeAtRetirementUsd":2}`), &m))
	require.Equal(t, 1.0, m.EstimatedAnnualIncomeAtRetirement)
}
