package service

import (
	"context"
	"time"

	"StockCast/internal/domain/models"
)

// Forecaster is the contract the API layer consumes. Implementations own
// model lifecycle per symbol and never surface raw training or model
// internals across this boundary.
type Forecaster interface {
	// Forecast returns a constrained prediction path for symbol.
	Forecast(ctx context.Context, symbol string, horizon int, refresh bool) (*models.PredictionResult, error)

	// Train runs a full training cycle and persists a new artifact on success.
	Train(ctx context.Context, symbol string, req *models.TrainRequest) (*models.TrainingSummary, error)

	// ModelInfo reports persisted artifact metadata for symbol.
	ModelInfo(ctx context.Context, symbol string) (*models.ArtifactInfo, error)

	// History returns stored bars for symbol. Zero from/to means the
	// latest bars up to limit.
	History(ctx context.Context, symbol string, from, to time.Time, timeframe string, limit int) (*models.HistoryResult, error)
}
