package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"provincecast/internal/models"
	"provincecast/internal/sched"
	"provincecast/internal/store"
	"provincecast/internal/verify"
	"provincecast/internal/weather"
)

// Server exposes the pipeline to HTTP collaborators: forecasts, accuracy
// metrics, scheduler status and a manual collection trigger.
type Server struct {
	store     *store.Store
	service   *weather.Service
	verifier  *verify.Verifier
	scheduler *sched.Scheduler
	provinces []string
	addr      string
}

func NewServer(st *store.Store, service *weather.Service, verifier *verify.Verifier, scheduler *sched.Scheduler, provinces []string, addr string) *Server {
	return &Server{
		store:     st,
		service:   service,
		verifier:  verifier,
		scheduler: scheduler,
		provinces: provinces,
		addr:      addr,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/forecast", s.handleForecast)
	mux.HandleFunc("/api/accuracy", s.handleAccuracy)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/provinces", s.handleProvinces)
	mux.HandleFunc("/api/predictions", s.handlePredictions)
	mux.HandleFunc("/api/collect", s.handleCollect)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

type forecastDay struct {
	Date            string  `json:"date"`
	TempMax         float64 `json:"tempMax"`
	TempMin         float64 `json:"tempMin"`
	RainProbability float64 `json:"rainProbability"`
	WeatherCode     int     `json:"weatherCode"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	province := r.URL.Query().Get("province")
	if province == "" {
		http.Error(w, "province parameter required", http.StatusBadRequest)
		return
	}

	// days counts forecast days beyond today; the response includes today.
	horizon := weather.DefaultHorizonDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > weather.DefaultHorizonDays {
			http.Error(w, fmt.Sprintf("days must be between 1 and %d", weather.DefaultHorizonDays), http.StatusBadRequest)
			return
		}
		horizon = n
	}

	forecasts := s.service.Forecast(r.Context(), province, horizon)

	days := make([]forecastDay, 0, len(forecasts))
	for _, fc := range forecasts {
		days = append(days, forecastDay{
			Date:            fc.Date.Format("2006-01-02"),
			TempMax:         fc.TempMax,
			TempMin:         fc.TempMin,
			RainProbability: fc.RainProbability,
			WeatherCode:     fc.WeatherCode,
		})
	}
	writeJSON(w, map[string]any{"province": province, "days": days})
}

func (s *Server) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	province := r.URL.Query().Get("province")

	stats, err := s.verifier.Accuracy(province)
	if err != nil {
		log.Printf("api: accuracy stats: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{"sampleSize": stats.SampleSize}
	if province != "" {
		resp["province"] = province
	}
	if stats.MAEMaxTemp.Valid {
		resp["maeMaxTemp"] = stats.MAEMaxTemp.Float64
	}
	if stats.MAEMinTemp.Valid {
		resp["maeMinTemp"] = stats.MAEMinTemp.Float64
	}
	writeJSON(w, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.scheduler.Status()
	count, err := s.store.ObservationCount()
	if err != nil {
		log.Printf("api: observation count: %v", err)
	}

	resp := map[string]any{
		"status":            status.Status,
		"recordCount":       status.RecordCount,
		"schedulerEnabled":  status.Enabled,
		"nextRun":           status.NextRun.Format(time.RFC3339),
		"totalObservations": count,
	}
	if !status.LastRun.IsZero() {
		resp["lastRun"] = status.LastRun.Format(time.RFC3339)
	}
	writeJSON(w, resp)
}

func (s *Server) handleProvinces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"provinces": s.provinces})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	province := r.URL.Query().Get("province")
	if province == "" {
		http.Error(w, "province parameter required", http.StatusBadRequest)
		return
	}

	n := 7
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			n = parsed
		}
	}

	predictions, err := s.store.RecentPredictions(province, n)
	if err != nil {
		log.Printf("api: recent predictions: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"province": province, "predictions": predictionViews(predictions)})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := s.scheduler.TriggerManual()
	writeJSON(w, map[string]string{"status": status})
}

type predictionView struct {
	TargetDate       string   `json:"targetDate"`
	PredictedMaxTemp float64  `json:"predictedMaxTemp"`
	PredictedMinTemp float64  `json:"predictedMinTemp"`
	PredictedRain    float64  `json:"predictedRainProbability"`
	WeatherCode      int      `json:"weatherCode"`
	Verified         bool     `json:"verified"`
	ActualMaxTemp    *float64 `json:"actualMaxTemp,omitempty"`
	ActualMinTemp    *float64 `json:"actualMinTemp,omitempty"`
	MAEMaxTemp       *float64 `json:"maeMaxTemp,omitempty"`
	MAEMinTemp       *float64 `json:"maeMinTemp,omitempty"`
}

func predictionViews(predictions []models.Prediction) []predictionView {
	views := make([]predictionView, 0, len(predictions))
	for _, p := range predictions {
		view := predictionView{
			TargetDate:       p.TargetDate.Format("2006-01-02"),
			PredictedMaxTemp: p.PredictedMaxTemp,
			PredictedMinTemp: p.PredictedMinTemp,
			PredictedRain:    p.PredictedRainProb,
			WeatherCode:      p.PredictedWeatherCode,
			Verified:         p.Verified,
		}
		if p.ActualMaxTemp.Valid {
			view.ActualMaxTemp = &p.ActualMaxTemp.Float64
		}
		if p.ActualMinTemp.Valid {
			view.ActualMinTemp = &p.ActualMinTemp.Float64
		}
		if p.MAEMaxTemp.Valid {
			view.MAEMaxTemp = &p.MAEMaxTemp.Float64
		}
		if p.MAEMinTemp.Valid {
			view.MAEMinTemp = &p.MAEMinTemp.Float64
		}
		views = append(views, view)
	}
	return views
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}
