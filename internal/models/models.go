package models

import (
	"database/sql"
	"time"
)

// Observation is one realized daily weather record for one province.
// At most one row exists per (province, record date); re-ingestion is a no-op.
type Observation struct {
	ID                int64
	Province          string
	Latitude          float64
	Longitude         float64
	RecordDate        time.Time
	RecordTime        sql.NullString
	TempMax           sql.NullFloat64
	TempMin           sql.NullFloat64
	TempCurrent       sql.NullFloat64
	Humidity          sql.NullFloat64
	WindSpeed         sql.NullFloat64
	Precipitation     sql.NullFloat64
	PrecipProbability sql.NullFloat64 // 0..1
	Pressure          sql.NullFloat64
	CloudCover        sql.NullFloat64
	WeatherCode       sql.NullInt64
	RecordedAt        time.Time
}

// Forecast is one predicted day for one province. It is transient; persistence
// happens through Prediction.
type Forecast struct {
	Date            time.Time
	TempMax         float64
	TempMin         float64
	RainProbability float64 // 0..1
	WeatherCode     int
}

// Prediction is a persisted Forecast plus verification state. Created at
// prediction time, mutated exactly once by the verifier, never deleted.
type Prediction struct {
	ID                   int64
	Province             string
	TargetDate           time.Time
	PredictedMaxTemp     float64
	PredictedMinTemp     float64
	PredictedRainProb    float64
	PredictedWeatherCode int
	ActualMaxTemp        sql.NullFloat64
	ActualMinTemp        sql.NullFloat64
	ActualRainProb       sql.NullFloat64
	ActualWeatherCode    sql.NullInt64
	MAEMaxTemp           sql.NullFloat64
	MAEMinTemp           sql.NullFloat64
	Verified             bool
	CreatedAt            time.Time
	VerifiedAt           sql.NullTime
}

// AccuracyStats aggregates mean absolute error over verified predictions.
type AccuracyStats struct {
	MAEMaxTemp sql.NullFloat64
	MAEMinTemp sql.NullFloat64
	SampleSize int
}

// RunStatus is the scheduler's record of the last collection run. It lives for
// the process lifetime only.
type RunStatus struct {
	LastRun     time.Time
	Status      string
	RecordCount int
	Enabled     bool
	NextRun     time.Time
}
