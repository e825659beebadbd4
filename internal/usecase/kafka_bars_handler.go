package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	pkgkafka "StockCast/pkg/kafka"
	applogger "StockCast/pkg/logger"
)

// KafkaBarsHandler consumes OHLCV bar messages and writes them to the
// bar store. Bars failing the OHLC sanity check are dropped, not
// retried, so a malformed producer cannot wedge the partition.
type KafkaBarsHandler struct {
	topic string
	bars  domrepo.BarStore
	log   *applogger.Logger
}

func NewKafkaBarsHandler(topic string, bars domrepo.BarStore, log *applogger.Logger) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, bars: bars, log: log}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, ts, open, high, low, close, volume}
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		TS     int64   `json:"ts"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume float64 `json:"volume"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.log.Warn("dropping unparseable bar message", applogger.Error(err))
		return nil
	}
	if m.Symbol == "" {
		h.log.Warn("dropping bar message without symbol")
		return nil
	}
	if m.TS > 1e11 { // ms
		m.TS = m.TS / 1000
	}

	bar := models.Bar{
		Timestamp: time.Unix(m.TS, 0).UTC(),
		Open:      m.Open,
		High:      m.High,
		Low:       m.Low,
		Close:     m.Close,
		Volume:    m.Volume,
	}
	if !bar.Consistent() {
		h.log.Warn("dropping inconsistent bar",
			applogger.String("symbol", m.Symbol),
			applogger.Int64("ts", m.TS),
		)
		return nil
	}

	if err := h.bars.InsertBars(ctx, normalizeSymbol(m.Symbol), domrepo.TF1d, []models.Bar{bar}); err != nil {
		return fmt.Errorf("store bar: %w", err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
