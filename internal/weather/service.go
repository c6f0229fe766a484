package weather

import (
	"context"
	"log"
	"time"

	"provincecast/internal/metrics"
	"provincecast/internal/models"
	"provincecast/internal/openmeteo"
	"provincecast/internal/predict"
)

// DefaultHorizonDays is the public forecast horizon: today plus seven days.
const DefaultHorizonDays = 7

// Service is the public face of the forecast pipeline. Its accessors never
// return errors: the model path is tried first, any failure falls back to the
// provider's own forecast, and the worst case is an empty result.
type Service struct {
	client     *openmeteo.Client
	forecaster *predict.Forecaster
	reports    *reportCache
}

func NewService(client *openmeteo.Client, forecaster *predict.Forecaster) *Service {
	return &Service{
		client:     client,
		forecaster: forecaster,
		reports:    newReportCache(5 * time.Minute),
	}
}

// SevenDayForecast returns the default-horizon forecast for a province.
func (s *Service) SevenDayForecast(ctx context.Context, province string) []models.Forecast {
	return s.Forecast(ctx, province, DefaultHorizonDays)
}

// Forecast returns the model-based forecast for today plus horizonDays more
// days, falling back to the provider forecast when history is short or a
// model fails.
func (s *Service) Forecast(ctx context.Context, province string, horizonDays int) []models.Forecast {
	forecasts, err := s.forecaster.Forecast(province, horizonDays)
	if err == nil && len(forecasts) > 0 {
		return forecasts
	}
	if err != nil {
		log.Printf("weather: model forecast for %s unavailable: %v", province, err)
	}

	metrics.ModelFallbacks.Inc()
	report, err := s.WeatherReport(ctx, province)
	if err != nil {
		log.Printf("weather: provider fallback for %s: %v", province, err)
		return nil
	}

	days := predict.ExtractDaily(report.Daily)
	if len(days) > horizonDays+1 {
		days = days[:horizonDays+1]
	}
	return days
}

// WeatherReport fetches the provider's full report for a province, memoized
// for a few minutes to bound provider call volume from read paths.
func (s *Service) WeatherReport(ctx context.Context, province string) (*openmeteo.ForecastResponse, error) {
	if report, ok := s.reports.get(province); ok {
		return report, nil
	}

	lat, lon, err := s.client.Geocode(ctx, province)
	if err != nil {
		return nil, err
	}
	report, err := s.client.Forecast(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	s.reports.put(province, report)
	return report, nil
}

// ProvinceCurrent is a current-conditions snapshot for one province.
type ProvinceCurrent struct {
	Province    string  `json:"province"`
	Temperature float64 `json:"temperature"`
	WeatherCode int     `json:"weatherCode"`
}

// CurrentForProvinces returns current conditions for a set of provinces.
// Provinces that fail to resolve or fetch are skipped.
func (s *Service) CurrentForProvinces(ctx context.Context, provinces []string) []ProvinceCurrent {
	var out []ProvinceCurrent
	for _, province := range provinces {
		report, err := s.WeatherReport(ctx, province)
		if err != nil {
			log.Printf("weather: current conditions for %s: %v", province, err)
			continue
		}
		if report.Current.Temperature == nil {
			continue
		}

		pc := ProvinceCurrent{
			Province:    province,
			Temperature: *report.Current.Temperature,
		}
		if report.Current.WeatherCode != nil {
			pc.WeatherCode = *report.Current.WeatherCode
		}
		out = append(out, pc)
	}
	return out
}
