package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provincecast_provider_calls_total",
			Help: "Total Open-Meteo API calls",
		},
		[]string{"endpoint", "status"},
	)

	ProviderCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provincecast_provider_call_latency_seconds",
			Help:    "Open-Meteo API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ObservationsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provincecast_observations_ingested_total",
			Help: "Total observations successfully ingested",
		},
		[]string{"mode"},
	)

	PredictionsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provincecast_predictions_recorded_total",
			Help: "Total model predictions persisted",
		},
	)

	PredictionsVerified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provincecast_predictions_verified_total",
			Help: "Total predictions verified against observations",
		},
	)

	ModelFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provincecast_model_fallbacks_total",
			Help: "Forecast requests that fell back to the provider forecast",
		},
	)

	LastCollectionTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "provincecast_last_collection_timestamp_seconds",
			Help: "Unix time of the last completed collection run",
		},
	)
)
