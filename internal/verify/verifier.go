package verify

import (
	"database/sql"
	"log"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"provincecast/internal/metrics"
	"provincecast/internal/models"
	"provincecast/internal/store"
)

// Verifier reconciles past predictions against realized observations and
// attaches per-record error metrics.
type Verifier struct {
	store *store.Store
	clock clockwork.Clock
}

func New(st *store.Store) *Verifier {
	return &Verifier{store: st, clock: clockwork.NewRealClock()}
}

// SetClock swaps the time source, used by tests to pin "today".
func (v *Verifier) SetClock(clock clockwork.Clock) {
	v.clock = clock
}

// VerifyDue grades every unverified prediction whose target date is strictly
// before today. Predictions with no matching observation stay unverified; a
// failure on one row is logged and the run continues. Returns the number of
// rows considered and the number verified.
func (v *Verifier) VerifyDue() (attempted, verified int) {
	now := v.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	pending, err := v.store.UnverifiedPredictionsBefore(today)
	if err != nil {
		log.Printf("verify: load pending predictions: %v", err)
		return 0, 0
	}

	for _, prediction := range pending {
		attempted++

		obs, err := v.store.GetObservation(prediction.Province, prediction.TargetDate)
		if err != nil {
			log.Printf("verify: lookup observation %s %s: %v",
				prediction.Province, prediction.TargetDate.Format("2006-01-02"), err)
			continue
		}
		if obs == nil {
			// No realized observation yet; stays unverified.
			continue
		}

		graded := grade(prediction, *obs)
		if err := v.store.MarkVerified(graded); err != nil {
			log.Printf("verify: mark verified %s %s: %v",
				prediction.Province, prediction.TargetDate.Format("2006-01-02"), err)
			continue
		}
		verified++
		metrics.PredictionsVerified.Inc()

		log.Printf("verify: %s %s: MAE max=%.1f°C min=%.1f°C",
			prediction.Province, prediction.TargetDate.Format("2006-01-02"),
			graded.MAEMaxTemp.Float64, graded.MAEMinTemp.Float64)
	}

	log.Printf("verify: completed %d/%d predictions", verified, attempted)
	return attempted, verified
}

// Accuracy returns aggregate mean absolute error over verified predictions,
// optionally filtered to one province (empty string means all).
func (v *Verifier) Accuracy(province string) (models.AccuracyStats, error) {
	return v.store.AccuracyStats(province)
}

func grade(p models.Prediction, obs models.Observation) models.Prediction {
	p.ActualMaxTemp = obs.TempMax
	p.ActualMinTemp = obs.TempMin
	p.ActualRainProb = obs.PrecipProbability
	p.ActualWeatherCode = obs.WeatherCode

	if obs.TempMax.Valid {
		p.MAEMaxTemp = sql.NullFloat64{
			Float64: math.Abs(p.PredictedMaxTemp - obs.TempMax.Float64),
			Valid:   true,
		}
	}
	if obs.TempMin.Valid {
		p.MAEMinTemp = sql.NullFloat64{
			Float64: math.Abs(p.PredictedMinTemp - obs.TempMin.Float64),
			Valid:   true,
		}
	}

	p.Verified = true
	return p
}
