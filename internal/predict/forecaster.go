package predict

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"provincecast/internal/metrics"
	"provincecast/internal/models"
	"provincecast/internal/store"
)

// ErrInsufficientHistory is returned when a province has fewer than
// HistoryDepth stored observations; the caller falls back to the provider
// forecast.
var ErrInsufficientHistory = errors.New("insufficient observation history")

// Forecaster runs the three regression models (max temp, min temp, rain
// probability) over a shared feature vector to predict a multi-day horizon.
type Forecaster struct {
	store    *store.Store
	maxTemp  Predictor
	minTemp  Predictor
	rainProb Predictor
	clock    clockwork.Clock
}

func NewForecaster(st *store.Store, maxTemp, minTemp, rainProb Predictor) *Forecaster {
	return &Forecaster{
		store:    st,
		maxTemp:  maxTemp,
		minTemp:  minTemp,
		rainProb: rainProb,
		clock:    clockwork.NewRealClock(),
	}
}

// SetClock swaps the time source, used by tests to pin "today".
func (f *Forecaster) SetClock(clock clockwork.Clock) {
	f.clock = clock
}

// Forecast predicts offsets 0..horizonDays from today for one province and
// persists each day via the prediction store (first write per date wins).
//
// The same fixed history window feeds every day of the horizon: predicted days
// are not rolled back into the features, which avoids compounding model error
// across the horizon.
func (f *Forecaster) Forecast(province string, horizonDays int) ([]models.Forecast, error) {
	recent, err := f.store.RecentObservations(province, HistoryDepth)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", province, err)
	}
	if len(recent) < HistoryDepth {
		return nil, fmt.Errorf("%s: have %d of %d days: %w",
			province, len(recent), HistoryDepth, ErrInsufficientHistory)
	}

	lat := recent[0].Latitude
	lon := recent[0].Longitude

	now := f.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var forecasts []models.Forecast
	for offset := 0; offset <= horizonDays; offset++ {
		targetDate := today.AddDate(0, 0, offset)
		features := BuildFeatures(lat, lon, targetDate, recent)

		tempMax, err := f.maxTemp.Predict(features)
		if err != nil {
			return nil, fmt.Errorf("predict max temp for %s: %w", province, err)
		}
		tempMin, err := f.minTemp.Predict(features)
		if err != nil {
			return nil, fmt.Errorf("predict min temp for %s: %w", province, err)
		}
		rainProb, err := f.rainProb.Predict(features)
		if err != nil {
			return nil, fmt.Errorf("predict rain probability for %s: %w", province, err)
		}

		rainProb = clamp01(rainProb)

		forecasts = append(forecasts, models.Forecast{
			Date:            targetDate,
			TempMax:         tempMax,
			TempMin:         tempMin,
			RainProbability: rainProb,
			WeatherCode:     WeatherCodeForRainProb(rainProb),
		})
	}

	f.recordPredictions(province, forecasts)
	return forecasts, nil
}

// recordPredictions persists forecasts for later verification. Duplicate
// (province, date) rows are skipped by the store; persistence failures are
// logged but never fail the forecast itself.
func (f *Forecaster) recordPredictions(province string, forecasts []models.Forecast) {
	for _, fc := range forecasts {
		inserted, err := f.store.InsertPrediction(models.Prediction{
			Province:             province,
			TargetDate:           fc.Date,
			PredictedMaxTemp:     fc.TempMax,
			PredictedMinTemp:     fc.TempMin,
			PredictedRainProb:    fc.RainProbability,
			PredictedWeatherCode: fc.WeatherCode,
		})
		if err != nil {
			log.Printf("predict: record %s %s: %v", province, fc.Date.Format("2006-01-02"), err)
			continue
		}
		if inserted {
			metrics.PredictionsRecorded.Inc()
		}
	}
}

// WeatherCodeForRainProb maps a rain probability in [0,1] to a WMO-style
// weather code by fixed thresholds.
func WeatherCodeForRainProb(rainProb float64) int {
	switch {
	case rainProb < 0.1:
		return 0 // clear sky
	case rainProb < 0.2:
		return 1 // mainly clear
	case rainProb < 0.3:
		return 2 // partly cloudy
	case rainProb < 0.4:
		return 3 // overcast
	case rainProb < 0.5:
		return 61 // slight rain
	case rainProb < 0.7:
		return 63 // moderate rain
	default:
		return 65 // heavy rain
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
