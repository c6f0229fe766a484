package store

import (
	"database/sql"
	"fmt"
	"time"

	"provincecast/internal/models"
)

const dateLayout = "2006-01-02"

// Dates are stored as bare YYYY-MM-DD strings so the (province, record_date)
// uniqueness constraint is not defeated by timezone or sub-day noise.
func dateString(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	// Tolerate full timestamps written by older snapshots.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	return time.Parse(dateLayout, s)
}

// InsertObservation stores a daily observation unless one already exists for
// (province, record date). Returns true when a new row was written.
func (s *Store) InsertObservation(obs models.Observation) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO observations (
			province, latitude, longitude, record_date, record_time,
			temp_max, temp_min, temp_current, humidity, wind_speed,
			precipitation, precip_probability, pressure, cloud_cover, weather_code, recorded_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(province, record_date) DO NOTHING
	`, obs.Province, obs.Latitude, obs.Longitude, dateString(obs.RecordDate), obs.RecordTime,
		obs.TempMax, obs.TempMin, obs.TempCurrent, obs.Humidity, obs.WindSpeed,
		obs.Precipitation, obs.PrecipProbability, obs.Pressure, obs.CloudCover, obs.WeatherCode,
		time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasObservation reports whether an observation exists for (province, date).
func (s *Store) HasObservation(province string, date time.Time) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM observations WHERE province = ? AND record_date = ?`,
		province, dateString(date),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetObservation returns the observation for (province, date), or nil.
func (s *Store) GetObservation(province string, date time.Time) (*models.Observation, error) {
	row := s.db.QueryRow(observationSelect+` WHERE province = ? AND record_date = ?`,
		province, dateString(date))
	obs, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// RecentObservations returns up to n observations for a province, newest first.
func (s *Store) RecentObservations(province string, n int) ([]models.Observation, error) {
	rows, err := s.db.Query(observationSelect+`
		WHERE province = ?
		ORDER BY record_date DESC
		LIMIT ?
	`, province, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, *obs)
	}
	return observations, rows.Err()
}

// Provinces returns the distinct provinces present in the observation table.
func (s *Store) Provinces() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT province FROM observations ORDER BY province`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var provinces []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		provinces = append(provinces, p)
	}
	return provinces, rows.Err()
}

// ObservationCount returns the total number of stored observations.
func (s *Store) ObservationCount() (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM observations`).Scan(&count)
	return count, err
}

const observationSelect = `
	SELECT id, province, latitude, longitude, record_date, record_time,
	       temp_max, temp_min, temp_current, humidity, wind_speed,
	       precipitation, precip_probability, pressure, cloud_cover, weather_code, recorded_at
	FROM observations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (*models.Observation, error) {
	var obs models.Observation
	var recordDate string
	err := row.Scan(&obs.ID, &obs.Province, &obs.Latitude, &obs.Longitude, &recordDate, &obs.RecordTime,
		&obs.TempMax, &obs.TempMin, &obs.TempCurrent, &obs.Humidity, &obs.WindSpeed,
		&obs.Precipitation, &obs.PrecipProbability, &obs.Pressure, &obs.CloudCover, &obs.WeatherCode,
		&obs.RecordedAt)
	if err != nil {
		return nil, err
	}
	obs.RecordDate, err = parseDate(recordDate)
	if err != nil {
		return nil, fmt.Errorf("parse record_date %q: %w", recordDate, err)
	}
	return &obs, nil
}
