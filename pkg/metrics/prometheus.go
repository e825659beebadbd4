package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions  *prometheus.CounterVec
	trainingRuns *prometheus.CounterVec
	trainingTime *prometheus.HistogramVec
	clampedSteps *prometheus.CounterVec
	cacheResults *prometheus.CounterVec
	confidence   *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		predictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_predictions_total",
				Help: "Total number of predictions served, by degradation tier",
			},
			[]string{"symbol", "tier"},
		),
		trainingRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_training_runs_total",
				Help: "Total number of training runs by outcome",
			},
			[]string{"symbol", "status"},
		),
		trainingTime: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockcast_training_duration_seconds",
				Help:    "Duration of training runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"symbol"},
		),
		clampedSteps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_clamped_steps_total",
				Help: "Prediction steps clamped by the volatility constraint",
			},
			[]string{"symbol"},
		),
		cacheResults: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_prediction_cache_total",
				Help: "Prediction cache lookups by result",
			},
			[]string{"result"},
		),
		confidence: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_forecast_confidence",
				Help: "Overall confidence of the latest forecast per symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordPrediction records a served prediction and its tier.
func (r *Recorder) RecordPrediction(symbol, tier string) {
	r.predictions.WithLabelValues(symbol, tier).Inc()
}

// RecordTraining records a training run outcome and duration.
func (r *Recorder) RecordTraining(symbol, status string, seconds float64) {
	r.trainingRuns.WithLabelValues(symbol, status).Inc()
	r.trainingTime.WithLabelValues(symbol).Observe(seconds)
}

// RecordClampedSteps records constrained prediction steps.
func (r *Recorder) RecordClampedSteps(symbol string, n int) {
	r.clampedSteps.WithLabelValues(symbol).Add(float64(n))
}

// RecordCache records a prediction cache hit or miss.
func (r *Recorder) RecordCache(result string) {
	r.cacheResults.WithLabelValues(result).Inc()
}

// RecordConfidence records the overall confidence of the latest forecast.
func (r *Recorder) RecordConfidence(symbol string, score float64) {
	r.confidence.WithLabelValues(symbol).Set(score)
}
