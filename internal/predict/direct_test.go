package predict

import (
	"testing"

	"provincecast/internal/openmeteo"
)

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }

func TestExtractDaily_ConvertsPercentages(t *testing.T) {
	daily := openmeteo.DailyBlock{
		Time:        []string{"2024-06-15", "2024-06-16"},
		WeatherCode: []*int{ip(2), ip(61)},
		TempMax:     []*float64{fp(33.0), fp(31.5)},
		TempMin:     []*float64{fp(25.5), fp(24.0)},
		PrecipProb:  []*int{ip(40), nil},
	}

	forecasts := ExtractDaily(daily)
	if len(forecasts) != 2 {
		t.Fatalf("len = %d, want 2", len(forecasts))
	}
	if forecasts[0].RainProbability != 0.4 {
		t.Errorf("RainProbability = %v, want 0.4", forecasts[0].RainProbability)
	}
	if forecasts[0].WeatherCode != 2 {
		t.Errorf("WeatherCode = %d, want 2", forecasts[0].WeatherCode)
	}
	if forecasts[1].RainProbability != 0.0 {
		t.Errorf("missing probability = %v, want 0", forecasts[1].RainProbability)
	}
	if forecasts[1].Date.Format("2006-01-02") != "2024-06-16" {
		t.Errorf("Date = %v, want 2024-06-16", forecasts[1].Date)
	}
}

func TestExtractDaily_EmptyBlock(t *testing.T) {
	if got := ExtractDaily(openmeteo.DailyBlock{}); got != nil {
		t.Errorf("ExtractDaily(empty) = %v, want nil", got)
	}
}

func TestExtractDaily_MismatchedLengths(t *testing.T) {
	daily := openmeteo.DailyBlock{
		Time:        []string{"2024-06-15", "2024-06-16"},
		WeatherCode: []*int{ip(2), ip(61)},
		TempMax:     []*float64{fp(33.0)},
		TempMin:     []*float64{fp(25.5), fp(24.0)},
		PrecipProb:  []*int{ip(40), ip(80)},
	}
	if got := ExtractDaily(daily); got != nil {
		t.Errorf("ExtractDaily(mismatched) = %v, want nil", got)
	}
}
