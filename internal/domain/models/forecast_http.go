package models

// ForecastRequest is the query contract for GET /api/forecast.
type ForecastRequest struct {
	Symbol  string `query:"symbol" validate:"required,min=1,max=16"`
	Horizon int    `query:"horizon" default:"7" validate:"gte=1,lte=30"`
	Refresh bool   `query:"refresh"`
}

// TrainRequest is the body contract for POST /api/train.
type TrainRequest struct {
	Symbol          string  `json:"symbol" validate:"required,min=1,max=16"`
	Epochs          int     `json:"epochs" default:"50" validate:"gte=1,lte=500"`
	BatchSize       int     `json:"batch_size" default:"32" validate:"gte=1,lte=1024"`
	ValidationSplit float64 `json:"validation_split" default:"0.2" validate:"gt=0,lt=0.5"`
	Patience        int     `json:"early_stopping_patience" default:"10" validate:"gte=1,lte=100"`
}

// ModelInfoRequest is the query contract for GET /api/model.
type ModelInfoRequest struct {
	Symbol string `query:"symbol" validate:"required,min=1,max=16"`
}

// HistoryRequest is the query contract for GET /api/history. From and To
// accept RFC3339 or unix seconds; both optional.
type HistoryRequest struct {
	Symbol    string `query:"symbol" validate:"required,min=1,max=16"`
	From      string `query:"from"`
	To        string `query:"to"`
	Timeframe string `query:"timeframe" default:"1d" validate:"oneof=1m 1h 1d"`
	Limit     int    `query:"limit" default:"500" validate:"gte=1,lte=5000"`
}

// HistoryResult wraps a bar range response.
type HistoryResult struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Count     int    `json:"count"`
	Bars      []Bar  `json:"bars"`
}
