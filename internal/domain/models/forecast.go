package models

import "time"

// PredictionPoint is a single forecast step.
type PredictionPoint struct {
	Date       time.Time `json:"date"`
	Price      float64   `json:"predicted_price"`
	Confidence float64   `json:"confidence"`
	Lower      float64   `json:"lower_bound"`
	Upper      float64   `json:"upper_bound"`
}

// PredictionResult is the full forecast for one symbol, as returned to the
// API layer and published for downstream fan-out.
type PredictionResult struct {
	Symbol            string            `json:"symbol"`
	Points            []PredictionPoint `json:"points"`
	ModelVersion      string            `json:"model_version"`
	ModelType         string            `json:"model_type"`
	OverallConfidence float64           `json:"overall_confidence"`
	CurrentPrice      float64           `json:"current_price"`
}

// ValidationMetrics summarizes model quality on the held-out split.
type ValidationMetrics struct {
	MSE                 float64 `json:"mse"`
	MAE                 float64 `json:"mae"`
	RMSE                float64 `json:"rmse"`
	R2                  float64 `json:"r2_score"`
	DirectionalAccuracy float64 `json:"directional_accuracy"`
	PercentageError     float64 `json:"percentage_error"`
}

// TrainingSummary reports the outcome of one training run.
type TrainingSummary struct {
	Symbol         string            `json:"symbol"`
	Epochs         int               `json:"epochs_trained"`
	TrainLoss      []float64         `json:"training_loss"`
	ValidationLoss []float64         `json:"validation_loss"`
	Metrics        ValidationMetrics `json:"validation_metrics"`
	Features       []string          `json:"features_used"`
	TrainedAt      time.Time         `json:"trained_at"`
}

// ArtifactInfo is the persisted model metadata exposed over the API.
type ArtifactInfo struct {
	Symbol         string            `json:"symbol"`
	ModelVersion   string            `json:"model_version"`
	TrainedAt      time.Time         `json:"trained_at"`
	SequenceLength int               `json:"sequence_length"`
	Horizon        int               `json:"prediction_horizon"`
	Features       []string          `json:"features"`
	Metrics        ValidationMetrics `json:"validation_metrics"`
}
