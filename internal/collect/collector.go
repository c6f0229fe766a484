package collect

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"provincecast/internal/metrics"
	"provincecast/internal/models"
	"provincecast/internal/openmeteo"
	"provincecast/internal/store"
)

const (
	// Trailing window served by the archive endpoint. The archive never
	// includes the current day, so the window ends at yesterday.
	historicalDays = 30

	// Precipitation above this many millimetres counts as a rain day when
	// deriving the probability from archive data, which has no probability
	// field of its own.
	rainThresholdMM = 0.1

	historicalDelay = 200 * time.Millisecond
	todayDelay      = 100 * time.Millisecond
)

// Collector populates the observation store from the Open-Meteo provider, one
// daily record per (province, date).
type Collector struct {
	client    *openmeteo.Client
	store     *store.Store
	provinces []string
	clock     clockwork.Clock
}

func New(client *openmeteo.Client, st *store.Store, provinces []string) *Collector {
	return &Collector{
		client:    client,
		store:     st,
		provinces: provinces,
		clock:     clockwork.NewRealClock(),
	}
}

// SetClock swaps the time source, used by tests to pin "today".
func (c *Collector) SetClock(clock clockwork.Clock) {
	c.clock = clock
}

func (c *Collector) today() time.Time {
	now := c.clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// CollectHistorical fetches the trailing archive window for one province and
// stores every day not already present. Returns the count of new records.
func (c *Collector) CollectHistorical(ctx context.Context, province string) (int, error) {
	lat, lon, err := c.client.Geocode(ctx, province)
	if err != nil {
		return 0, err
	}

	end := c.today().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(historicalDays - 1))

	archive, err := c.client.Archive(ctx, lat, lon, start, end)
	if err != nil {
		return 0, err
	}

	daily := archive.Daily
	saved := 0
	for i, dateStr := range daily.Time {
		recordDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			log.Printf("collect: %s: bad archive date %q: %v", province, dateStr, err)
			continue
		}

		obs := models.Observation{
			Province:   province,
			Latitude:   lat,
			Longitude:  lon,
			RecordDate: recordDate,
			RecordTime: sql.NullString{String: "12:00", Valid: true},
		}

		if v := at(daily.TempMax, i); v != nil {
			obs.TempMax = sql.NullFloat64{Float64: *v, Valid: true}
		}
		if v := at(daily.TempMin, i); v != nil {
			obs.TempMin = sql.NullFloat64{Float64: *v, Valid: true}
		}
		if v := at(daily.PrecipSum, i); v != nil {
			obs.Precipitation = sql.NullFloat64{Float64: *v, Valid: true}
			prob := 0.0
			if *v > rainThresholdMM {
				prob = 1.0
			}
			obs.PrecipProbability = sql.NullFloat64{Float64: prob, Valid: true}
		}
		if v := at(daily.WeatherCode, i); v != nil {
			obs.WeatherCode = sql.NullInt64{Int64: int64(*v), Valid: true}
		}
		if v := at(daily.WindSpeedMax, i); v != nil {
			obs.WindSpeed = sql.NullFloat64{Float64: *v, Valid: true}
		}
		if obs.TempMax.Valid && obs.TempMin.Valid {
			obs.TempCurrent = sql.NullFloat64{
				Float64: (obs.TempMax.Float64 + obs.TempMin.Float64) / 2,
				Valid:   true,
			}
		}

		inserted, err := c.store.InsertObservation(obs)
		if err != nil {
			return saved, fmt.Errorf("insert %s %s: %w", province, dateStr, err)
		}
		if inserted {
			saved++
			metrics.ObservationsIngested.WithLabelValues("historical").Inc()
		}
	}

	log.Printf("collect: %s: saved %d new historical records", province, saved)
	return saved, nil
}

// CollectToday records today's observation for one province from the live
// forecast payload. A second call on the same day is a no-op.
func (c *Collector) CollectToday(ctx context.Context, province string) (bool, error) {
	lat, lon, err := c.client.Geocode(ctx, province)
	if err != nil {
		return false, err
	}

	today := c.today()
	exists, err := c.store.HasObservation(province, today)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	report, err := c.client.Forecast(ctx, lat, lon)
	if err != nil {
		return false, err
	}

	obs := models.Observation{
		Province:   province,
		Latitude:   lat,
		Longitude:  lon,
		RecordDate: today,
		RecordTime: sql.NullString{String: c.clock.Now().UTC().Format("15:04"), Valid: true},
	}

	current := report.Current
	if current.Temperature != nil {
		obs.TempCurrent = sql.NullFloat64{Float64: *current.Temperature, Valid: true}
	}
	if current.Humidity != nil {
		obs.Humidity = sql.NullFloat64{Float64: *current.Humidity, Valid: true}
	}
	if current.WindSpeed != nil {
		obs.WindSpeed = sql.NullFloat64{Float64: *current.WindSpeed, Valid: true}
	}
	if current.Pressure != nil {
		obs.Pressure = sql.NullFloat64{Float64: *current.Pressure, Valid: true}
	}
	if current.CloudCover != nil {
		obs.CloudCover = sql.NullFloat64{Float64: *current.CloudCover, Valid: true}
	}
	if current.WeatherCode != nil {
		obs.WeatherCode = sql.NullInt64{Int64: int64(*current.WeatherCode), Valid: true}
	}

	// Day 0 of the daily block carries today's max/min and rain probability.
	daily := report.Daily
	if v := at(daily.TempMax, 0); v != nil {
		obs.TempMax = sql.NullFloat64{Float64: *v, Valid: true}
	}
	if v := at(daily.TempMin, 0); v != nil {
		obs.TempMin = sql.NullFloat64{Float64: *v, Valid: true}
	}
	if v := at(daily.PrecipProb, 0); v != nil {
		obs.PrecipProbability = sql.NullFloat64{Float64: float64(*v) / 100.0, Valid: true}
	}
	if v := at(daily.PrecipSum, 0); v != nil {
		obs.Precipitation = sql.NullFloat64{Float64: *v, Valid: true}
	}

	inserted, err := c.store.InsertObservation(obs)
	if err != nil {
		return false, fmt.Errorf("insert %s today: %w", province, err)
	}
	if inserted {
		metrics.ObservationsIngested.WithLabelValues("today").Inc()
		log.Printf("collect: %s: saved today's observation", province)
	}
	return inserted, nil
}

// Summary aggregates the outcome of a batch over the province list.
type Summary struct {
	Succeeded int
	Failed    int
	Saved     int
}

// CollectAllHistorical runs CollectHistorical over every province. Individual
// failures are logged and counted; the batch always runs to completion. The
// rate limiter spaces provider calls out to respect rate limits.
func (c *Collector) CollectAllHistorical(ctx context.Context) Summary {
	return c.collectAll(ctx, historicalDelay, func(ctx context.Context, province string) (int, error) {
		return c.CollectHistorical(ctx, province)
	})
}

// CollectAllToday runs CollectToday over every province.
func (c *Collector) CollectAllToday(ctx context.Context) Summary {
	return c.collectAll(ctx, todayDelay, func(ctx context.Context, province string) (int, error) {
		inserted, err := c.CollectToday(ctx, province)
		if err != nil {
			return 0, err
		}
		if inserted {
			return 1, nil
		}
		return 0, nil
	})
}

func (c *Collector) collectAll(ctx context.Context, delay time.Duration, fn func(context.Context, string) (int, error)) Summary {
	limiter := rate.NewLimiter(rate.Every(delay), 1)

	var summary Summary
	for _, province := range c.provinces {
		if err := limiter.Wait(ctx); err != nil {
			log.Printf("collect: batch interrupted: %v", err)
			break
		}

		saved, err := fn(ctx, province)
		if err != nil {
			log.Printf("collect: %s: %v", province, err)
			summary.Failed++
			continue
		}
		summary.Succeeded++
		summary.Saved += saved
	}

	log.Printf("collect: batch complete: %d succeeded, %d failed, %d new records",
		summary.Succeeded, summary.Failed, summary.Saved)
	return summary
}

func at[T any](s []*T, i int) *T {
	if i < len(s) {
		return s[i]
	}
	return nil
}
