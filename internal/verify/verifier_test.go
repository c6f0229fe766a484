package verify

import (
	"database/sql"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"provincecast/internal/models"
	"provincecast/internal/store"
)

var testToday = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func newTestVerifier(st *store.Store) *Verifier {
	v := New(st)
	v.SetClock(clockwork.NewFakeClockAt(testToday.Add(23 * time.Hour)))
	return v
}

func seedPrediction(t *testing.T, st *store.Store, province string, target time.Time, maxTemp float64) {
	t.Helper()
	if _, err := st.InsertPrediction(models.Prediction{
		Province:         province,
		TargetDate:       target,
		PredictedMaxTemp: maxTemp,
		PredictedMinTemp: 20.0,
	}); err != nil {
		t.Fatalf("seed prediction: %v", err)
	}
}

func seedObservation(t *testing.T, st *store.Store, province string, date time.Time, maxTemp, minTemp float64) {
	t.Helper()
	if _, err := st.InsertObservation(models.Observation{
		Province:   province,
		RecordDate: date,
		TempMax:    sql.NullFloat64{Float64: maxTemp, Valid: true},
		TempMin:    sql.NullFloat64{Float64: minTemp, Valid: true},
	}); err != nil {
		t.Fatalf("seed observation: %v", err)
	}
}

func TestVerifyDue_GradesMatchedPrediction(t *testing.T) {
	st := setupTestStore(t)
	yesterday := testToday.AddDate(0, 0, -1)
	seedPrediction(t, st, "Hà Nội", yesterday, 30.0)
	seedObservation(t, st, "Hà Nội", yesterday, 27.5, 21.0)

	attempted, verified := newTestVerifier(st).VerifyDue()
	if attempted != 1 || verified != 1 {
		t.Fatalf("attempted=%d verified=%d, want 1/1", attempted, verified)
	}

	p, err := st.GetPrediction("Hà Nội", yesterday)
	if err != nil || p == nil {
		t.Fatalf("GetPrediction: %v, p=%v", err, p)
	}
	if !p.Verified {
		t.Error("prediction not marked verified")
	}
	if !p.MAEMaxTemp.Valid || p.MAEMaxTemp.Float64 != 2.5 {
		t.Errorf("MAEMaxTemp = %+v, want 2.5", p.MAEMaxTemp)
	}
	if !p.ActualMaxTemp.Valid || p.ActualMaxTemp.Float64 != 27.5 {
		t.Errorf("ActualMaxTemp = %+v, want 27.5", p.ActualMaxTemp)
	}
}

func TestVerifyDue_SkipsFutureAndUnmatched(t *testing.T) {
	st := setupTestStore(t)
	// Today's and future rows are not due; the past one has no observation.
	seedPrediction(t, st, "Hà Nội", testToday, 30.0)
	seedPrediction(t, st, "Hà Nội", testToday.AddDate(0, 0, 2), 30.0)
	seedPrediction(t, st, "Huế", testToday.AddDate(0, 0, -1), 30.0)

	attempted, verified := newTestVerifier(st).VerifyDue()
	if attempted != 1 {
		t.Errorf("attempted = %d, want 1 (only the past-dated row)", attempted)
	}
	if verified != 0 {
		t.Errorf("verified = %d, want 0", verified)
	}

	p, err := st.GetPrediction("Huế", testToday.AddDate(0, 0, -1))
	if err != nil || p == nil {
		t.Fatalf("GetPrediction: %v, p=%v", err, p)
	}
	if p.Verified {
		t.Error("unmatched prediction was marked verified")
	}
}

func TestVerifyDue_RemainsPendingUntilObserved(t *testing.T) {
	st := setupTestStore(t)
	yesterday := testToday.AddDate(0, 0, -1)
	seedPrediction(t, st, "Đà Nẵng", yesterday, 30.0)

	v := newTestVerifier(st)
	if _, verified := v.VerifyDue(); verified != 0 {
		t.Fatalf("verified = %d before observation exists, want 0", verified)
	}

	// Once the observation lands, the next run grades it.
	seedObservation(t, st, "Đà Nẵng", yesterday, 29.0, 22.0)
	if _, verified := v.VerifyDue(); verified != 1 {
		t.Fatalf("verified = %d after observation exists, want 1", verified)
	}
}

func TestAccuracy_AggregatesVerifiedRows(t *testing.T) {
	st := setupTestStore(t)
	d1 := testToday.AddDate(0, 0, -2)
	d2 := testToday.AddDate(0, 0, -1)
	seedPrediction(t, st, "Hà Nội", d1, 30.0)
	seedPrediction(t, st, "Hà Nội", d2, 30.0)
	// Absolute max-temp errors of 2.0 and 1.0 should average to 1.5.
	seedObservation(t, st, "Hà Nội", d1, 28.0, 21.0)
	seedObservation(t, st, "Hà Nội", d2, 29.0, 21.0)

	v := newTestVerifier(st)
	if _, verified := v.VerifyDue(); verified != 2 {
		t.Fatalf("verified = %d, want 2", verified)
	}

	stats, err := v.Accuracy("Hà Nội")
	if err != nil {
		t.Fatalf("Accuracy: %v", err)
	}
	if stats.SampleSize != 2 {
		t.Errorf("SampleSize = %d, want 2", stats.SampleSize)
	}
	if !stats.MAEMaxTemp.Valid || stats.MAEMaxTemp.Float64 != 1.5 {
		t.Errorf("MAEMaxTemp = %+v, want 1.5", stats.MAEMaxTemp)
	}
}
