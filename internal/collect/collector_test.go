package collect

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"provincecast/internal/openmeteo"
	"provincecast/internal/store"
)

var testToday = time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)

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

// providerStub serves geocoding, archive and forecast responses. Provinces in
// failGeocode get an empty geocoding result.
type providerStub struct {
	failGeocode  map[string]bool
	archiveJSON  string
	forecastJSON string
}

func (p *providerStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if p.failGeocode[r.URL.Query().Get("name")] {
			w.Write([]byte(`{"results":[]}`))
			return
		}
		w.Write([]byte(`{"results":[{"latitude":21.03,"longitude":105.85}]}`))
	})
	mux.HandleFunc("/archive", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(p.archiveJSON))
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(p.forecastJSON))
	})
	return mux
}

func newTestCollector(t *testing.T, stub *providerStub, provinces []string) (*Collector, *store.Store) {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	client := openmeteo.NewClient()
	client.SetBaseURLs(srv.URL, srv.URL, srv.URL)

	st := setupTestStore(t)
	collector := New(client, st, provinces)
	collector.SetClock(clockwork.NewFakeClockAt(testToday))
	return collector, st
}

func archiveDays(days int) string {
	times := ""
	for i := 0; i < days; i++ {
		if i > 0 {
			times += ","
		}
		d := testToday.AddDate(0, 0, -(days - i))
		times += fmt.Sprintf("%q", d.Format("2006-01-02"))
	}
	return fmt.Sprintf(`{
		"daily": {
			"time": [%s],
			"temperature_2m_max": [30.0, 31.0, 29.0],
			"temperature_2m_min": [20.0, 21.0, 19.0],
			"precipitation_sum": [0.0, 0.05, 3.2],
			"weather_code": [0, 1, 61],
			"wind_speed_10m_max": [10.0, 12.0, 14.0]
		}
	}`, times)
}

func TestCollectHistorical_DerivedFields(t *testing.T) {
	stub := &providerStub{archiveJSON: archiveDays(3)}
	collector, st := newTestCollector(t, stub, nil)

	saved, err := collector.CollectHistorical(context.Background(), "Hà Nội")
	if err != nil {
		t.Fatalf("CollectHistorical: %v", err)
	}
	if saved != 3 {
		t.Fatalf("saved = %d, want 3", saved)
	}

	// Day with 0.05mm precipitation: below the 0.1mm threshold, probability 0.
	obs, err := st.GetObservation("Hà Nội", testToday.AddDate(0, 0, -2).Truncate(24*time.Hour))
	if err != nil || obs == nil {
		t.Fatalf("GetObservation: %v, obs=%v", err, obs)
	}
	if obs.PrecipProbability.Float64 != 0.0 {
		t.Errorf("PrecipProbability = %v, want 0.0 for 0.05mm", obs.PrecipProbability.Float64)
	}
	if obs.TempCurrent.Float64 != 26.0 {
		t.Errorf("TempCurrent = %v, want mean of max and min (26.0)", obs.TempCurrent.Float64)
	}

	// Day with 3.2mm precipitation: above threshold, probability 1.
	obs, err = st.GetObservation("Hà Nội", testToday.AddDate(0, 0, -1).Truncate(24*time.Hour))
	if err != nil || obs == nil {
		t.Fatalf("GetObservation: %v, obs=%v", err, obs)
	}
	if obs.PrecipProbability.Float64 != 1.0 {
		t.Errorf("PrecipProbability = %v, want 1.0 for 3.2mm", obs.PrecipProbability.Float64)
	}
}

func TestCollectHistorical_SkipsExisting(t *testing.T) {
	stub := &providerStub{archiveJSON: archiveDays(3)}
	collector, _ := newTestCollector(t, stub, nil)

	saved, err := collector.CollectHistorical(context.Background(), "Hà Nội")
	if err != nil {
		t.Fatalf("CollectHistorical: %v", err)
	}
	if saved != 3 {
		t.Fatalf("first run saved = %d, want 3", saved)
	}

	saved, err = collector.CollectHistorical(context.Background(), "Hà Nội")
	if err != nil {
		t.Fatalf("CollectHistorical second: %v", err)
	}
	if saved != 0 {
		t.Errorf("second run saved = %d, want 0", saved)
	}
}

const todayForecastJSON = `{
	"current": {"temperature_2m": 29.4, "relative_humidity_2m": 75, "weather_code": 2, "surface_pressure": 1008.0, "wind_speed_10m": 9.0, "cloud_cover": 40},
	"daily": {
		"time": ["2024-06-15"],
		"weather_code": [2],
		"temperature_2m_max": [33.0],
		"temperature_2m_min": [25.5],
		"precipitation_sum": [0.4],
		"precipitation_probability_max": [40],
		"wind_speed_10m_max": [14.0]
	}
}`

func TestCollectToday_Idempotent(t *testing.T) {
	stub := &providerStub{forecastJSON: todayForecastJSON}
	collector, st := newTestCollector(t, stub, nil)

	inserted, err := collector.CollectToday(context.Background(), "Hà Nội")
	if err != nil {
		t.Fatalf("CollectToday: %v", err)
	}
	if !inserted {
		t.Fatal("first CollectToday did not insert")
	}

	inserted, err = collector.CollectToday(context.Background(), "Hà Nội")
	if err != nil {
		t.Fatalf("CollectToday second: %v", err)
	}
	if inserted {
		t.Error("second CollectToday on same day inserted again")
	}

	count, err := st.ObservationCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("ObservationCount = %d, want 1", count)
	}

	obs, err := st.GetObservation("Hà Nội", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC))
	if err != nil || obs == nil {
		t.Fatalf("GetObservation: %v, obs=%v", err, obs)
	}
	if obs.TempCurrent.Float64 != 29.4 {
		t.Errorf("TempCurrent = %v, want 29.4 from current block", obs.TempCurrent.Float64)
	}
	if obs.TempMax.Float64 != 33.0 {
		t.Errorf("TempMax = %v, want 33.0 from daily[0]", obs.TempMax.Float64)
	}
	if obs.PrecipProbability.Float64 != 0.4 {
		t.Errorf("PrecipProbability = %v, want 0.4 (40%% converted)", obs.PrecipProbability.Float64)
	}
}

func TestCollectAllToday_ToleratesFailures(t *testing.T) {
	stub := &providerStub{
		forecastJSON: todayForecastJSON,
		failGeocode:  map[string]bool{"Nowhere": true},
	}
	collector, _ := newTestCollector(t, stub, []string{"Hà Nội", "Nowhere", "Đà Nẵng"})

	summary := collector.CollectAllToday(context.Background())
	if summary.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", summary.Succeeded)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	if summary.Saved != 2 {
		t.Errorf("Saved = %d, want 2", summary.Saved)
	}
}
