package store

import (
	"database/sql"
	"fmt"
	"time"

	"provincecast/internal/models"
)

// InsertPrediction stores a prediction unless one already exists for
// (province, target date). First write wins; the duplicate is silently dropped
// so the earliest prediction made for a date is the one graded.
func (s *Store) InsertPrediction(p models.Prediction) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO predictions (
			province, target_date, predicted_max_temp, predicted_min_temp,
			predicted_rain_prob, predicted_weather_code, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(province, target_date) DO NOTHING
	`, p.Province, dateString(p.TargetDate), p.PredictedMaxTemp, p.PredictedMinTemp,
		p.PredictedRainProb, p.PredictedWeatherCode, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UnverifiedPredictionsBefore returns unverified predictions whose target date
// is strictly before the given date.
func (s *Store) UnverifiedPredictionsBefore(date time.Time) ([]models.Prediction, error) {
	rows, err := s.db.Query(predictionSelect+`
		WHERE verified = FALSE AND target_date < ?
		ORDER BY province, target_date
	`, dateString(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPredictions(rows)
}

// GetPrediction returns the prediction for (province, target date), or nil.
func (s *Store) GetPrediction(province string, date time.Time) (*models.Prediction, error) {
	row := s.db.QueryRow(predictionSelect+` WHERE province = ? AND target_date = ?`,
		province, dateString(date))
	p, err := scanPrediction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RecentPredictions returns up to n predictions for a province, newest target date first.
func (s *Store) RecentPredictions(province string, n int) ([]models.Prediction, error) {
	rows, err := s.db.Query(predictionSelect+`
		WHERE province = ?
		ORDER BY target_date DESC
		LIMIT ?
	`, province, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPredictions(rows)
}

// MarkVerified writes the actual values and error metrics computed by the
// verifier onto a prediction. This is the only mutation predictions ever see.
func (s *Store) MarkVerified(p models.Prediction) error {
	_, err := s.db.Exec(`
		UPDATE predictions
		SET actual_max_temp = ?, actual_min_temp = ?, actual_rain_prob = ?, actual_weather_code = ?,
		    mae_max_temp = ?, mae_min_temp = ?, verified = TRUE, verified_at = ?
		WHERE id = ?
	`, p.ActualMaxTemp, p.ActualMinTemp, p.ActualRainProb, p.ActualWeatherCode,
		p.MAEMaxTemp, p.MAEMinTemp, time.Now().UTC(), p.ID)
	return err
}

// AccuracyStats returns mean absolute error over verified predictions,
// optionally filtered to one province (empty string means all).
func (s *Store) AccuracyStats(province string) (models.AccuracyStats, error) {
	query := `
		SELECT AVG(mae_max_temp), AVG(mae_min_temp), COUNT(*)
		FROM predictions
		WHERE verified = TRUE`
	args := []any{}
	if province != "" {
		query += ` AND province = ?`
		args = append(args, province)
	}

	var stats models.AccuracyStats
	err := s.db.QueryRow(query, args...).Scan(&stats.MAEMaxTemp, &stats.MAEMinTemp, &stats.SampleSize)
	if err != nil {
		return models.AccuracyStats{}, err
	}
	return stats, nil
}

const predictionSelect = `
	SELECT id, province, target_date, predicted_max_temp, predicted_min_temp,
	       predicted_rain_prob, predicted_weather_code,
	       actual_max_temp, actual_min_temp, actual_rain_prob, actual_weather_code,
	       mae_max_temp, mae_min_temp, verified, created_at, verified_at
	FROM predictions`

func scanPrediction(row rowScanner) (*models.Prediction, error) {
	var p models.Prediction
	var targetDate string
	err := row.Scan(&p.ID, &p.Province, &targetDate, &p.PredictedMaxTemp, &p.PredictedMinTemp,
		&p.PredictedRainProb, &p.PredictedWeatherCode,
		&p.ActualMaxTemp, &p.ActualMinTemp, &p.ActualRainProb, &p.ActualWeatherCode,
		&p.MAEMaxTemp, &p.MAEMinTemp, &p.Verified, &p.CreatedAt, &p.VerifiedAt)
	if err != nil {
		return nil, err
	}
	p.TargetDate, err = parseDate(targetDate)
	if err != nil {
		return nil, fmt.Errorf("parse target_date %q: %w", targetDate, err)
	}
	return &p, nil
}

func collectPredictions(rows *sql.Rows) ([]models.Prediction, error) {
	var predictions []models.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, *p)
	}
	return predictions, rows.Err()
}
