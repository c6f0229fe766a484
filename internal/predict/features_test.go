package predict

import (
	"database/sql"
	"testing"
	"time"

	"provincecast/internal/models"
)

func obsWith(max, min, prob float64) models.Observation {
	return models.Observation{
		TempMax:           sql.NullFloat64{Float64: max, Valid: true},
		TempMin:           sql.NullFloat64{Float64: min, Valid: true},
		PrecipProbability: sql.NullFloat64{Float64: prob, Valid: true},
	}
}

func TestBuildFeatures_FullHistory(t *testing.T) {
	target := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) // day 32
	recent := []models.Observation{
		obsWith(30, 22, 0.8),
		obsWith(29, 21, 0.2),
		obsWith(28, 20, 0.0),
	}

	got := BuildFeatures(21.03, 105.85, target, recent)
	want := []float64{
		21.03, 105.85, 32,
		30, 22, 0.8,
		29, 21, 0.2,
		28, 20, 0.0,
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("feature[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBuildFeatures_PadsShortHistory(t *testing.T) {
	target := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	recent := []models.Observation{obsWith(31, 24, 1.0)}

	got := BuildFeatures(10.0, 106.0, target, recent)
	if len(got) != 3+3*HistoryDepth {
		t.Fatalf("len = %d, want %d", len(got), 3+3*HistoryDepth)
	}

	// Slots beyond the available history carry the training defaults.
	for slot := 1; slot < HistoryDepth; slot++ {
		base := 3 + slot*3
		if got[base] != 25.0 || got[base+1] != 20.0 || got[base+2] != 0.0 {
			t.Errorf("slot %d = [%v %v %v], want defaults [25 20 0]",
				slot, got[base], got[base+1], got[base+2])
		}
	}
}

func TestBuildFeatures_MissingFieldsDefaulted(t *testing.T) {
	target := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	recent := []models.Observation{
		{TempMax: sql.NullFloat64{Float64: 33, Valid: true}},
		obsWith(29, 21, 0.2),
		obsWith(28, 20, 0.0),
	}

	got := BuildFeatures(10.0, 106.0, target, recent)
	if got[3] != 33 {
		t.Errorf("tempMax = %v, want 33", got[3])
	}
	if got[4] != 20.0 {
		t.Errorf("missing tempMin = %v, want default 20", got[4])
	}
	if got[5] != 0.0 {
		t.Errorf("missing precipProb = %v, want default 0", got[5])
	}
}
