package predict

import (
	"time"

	"provincecast/internal/models"
)

// HistoryDepth is the number of recent daily observations fed to the models.
const HistoryDepth = 3

// Imputed defaults for history slots with missing fields or too little data.
// These match the values the models were trained with.
const (
	defaultTempMax    = 25.0
	defaultTempMin    = 20.0
	defaultPrecipProb = 0.0
)

// BuildFeatures produces the fixed-width feature vector for one target date:
// [lat, lon, dayOfYear] followed by [tempMax, tempMin, precipProbability] for
// each of the HistoryDepth most recent observations, newest first. The output
// length is always 3 + 3*HistoryDepth regardless of how much history exists.
func BuildFeatures(lat, lon float64, targetDate time.Time, recent []models.Observation) []float64 {
	features := make([]float64, 0, 3+HistoryDepth*3)
	features = append(features, lat, lon, float64(targetDate.YearDay()))

	for i := 0; i < HistoryDepth; i++ {
		tempMax, tempMin, precipProb := defaultTempMax, defaultTempMin, defaultPrecipProb
		if i < len(recent) {
			obs := recent[i]
			if obs.TempMax.Valid {
				tempMax = obs.TempMax.Float64
			}
			if obs.TempMin.Valid {
				tempMin = obs.TempMin.Float64
			}
			if obs.PrecipProbability.Valid {
				precipProb = obs.PrecipProbability.Float64
			}
		}
		features = append(features, tempMax, tempMin, precipProb)
	}

	return features
}
