package features

import (
	"math"
	"strings"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func syntheticBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := range bars {
		drift := math.Sin(float64(i)/9) * 2
		price = price + drift + 0.05
		bars[i] = models.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      price - 0.5,
			High:      price + 1.2,
			Low:       price - 1.3,
			Close:     price,
			Volume:    1000 + float64(i%70)*13,
		}
	}
	return bars
}

func TestCalculateChainedFeatures(t *testing.T) {
	table, bad := NewTable(syntheticBars(120))
	if bad != 0 {
		t.Fatalf("unexpected inconsistent bars: %d", bad)
	}
	engine := NewEngine(NewRegistry(), testLogger(t))

	out, err := engine.Calculate(table, []string{"MACD_Signal", "MACD", "EMA_12", "EMA_26", "BB_Width", "BB_Upper", "BB_Lower", "SMA_20"})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	for _, name := range []string{"EMA_12", "EMA_26", "MACD", "MACD_Signal", "BB_Upper", "BB_Lower", "BB_Width"} {
		col, ok := out.Column(name)
		if !ok {
			t.Fatalf("column %s missing", name)
		}
		if len(col) != table.Len() {
			t.Fatalf("column %s length %d, want %d", name, len(col), table.Len())
		}
		for i, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("column %s has non-finite value at %d", name, i)
			}
		}
	}
}

func TestCalculateIdempotent(t *testing.T) {
	table, _ := NewTable(syntheticBars(80))
	engine := NewEngine(NewRegistry(), testLogger(t))

	once, err := engine.Calculate(table, []string{"RSI", "SMA_10"})
	if err != nil {
		t.Fatalf("first calculate: %v", err)
	}
	first, _ := once.Column("RSI")

	twice, err := engine.Calculate(once, []string{"RSI", "SMA_10"})
	if err != nil {
		t.Fatalf("second calculate: %v", err)
	}
	second, _ := twice.Column("RSI")

	if len(first) != len(second) {
		t.Fatalf("length changed across runs")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("RSI value changed at %d: %v != %v", i, first[i], second[i])
		}
	}
}

func TestCalculateSkipsUnknownFeature(t *testing.T) {
	table, _ := NewTable(syntheticBars(40))
	engine := NewEngine(NewRegistry(), testLogger(t))

	out, err := engine.Calculate(table, []string{"SMA_10", "No_Such_Feature"})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if !out.Has("SMA_10") {
		t.Fatalf("valid feature dropped alongside unknown one")
	}
	if out.Has("No_Such_Feature") {
		t.Fatalf("unknown feature materialized")
	}
}

func TestCalculateSkipsMissingDependency(t *testing.T) {
	table, _ := NewTable(syntheticBars(40))
	engine := NewEngine(NewRegistry(), testLogger(t))

	// MACD alone: its EMA deps are neither present nor requested.
	out, err := engine.Calculate(table, []string{"MACD"})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if out.Has("MACD") {
		t.Fatalf("MACD computed without its dependencies")
	}
}

func TestValidateReportsReasons(t *testing.T) {
	table, _ := NewTable(syntheticBars(40))
	engine := NewEngine(NewRegistry(), testLogger(t))

	ok, missing := engine.Validate(table, []string{"SMA_10", "Ghost"})
	if ok {
		t.Fatalf("expected validation failure")
	}
	if len(missing) != 1 || !strings.Contains(missing[0], "Ghost") || !strings.Contains(missing[0], "not registered") {
		t.Fatalf("unexpected missing report %v", missing)
	}
}

func TestValidateAcceptsDerivableChain(t *testing.T) {
	table, _ := NewTable(syntheticBars(40))
	engine := NewEngine(NewRegistry(), testLogger(t))

	// MACD_Signal needs MACD which needs EMAs; all registered, all
	// derivable from raw columns.
	ok, missing := engine.Validate(table, []string{"MACD_Signal", "BB_Width"})
	if !ok {
		t.Fatalf("expected chain to validate, missing %v", missing)
	}
}

func TestValidateFollowsChainToBaseColumns(t *testing.T) {
	table, _ := NewTable(syntheticBars(40))
	reg := NewRegistry()
	// Mid is registered but bottoms out in a column that does not exist,
	// so anything built on it is not derivable either.
	reg.Register("Mid", []string{"Micro"}, Params{}, nil)
	reg.Register("Spread", []string{"Mid"}, Params{}, nil)
	engine := NewEngine(reg, testLogger(t))

	ok, missing := engine.Validate(table, []string{"Spread"})
	if ok {
		t.Fatalf("expected validation failure for a broken chain")
	}
	if len(missing) != 1 || !strings.Contains(missing[0], "Spread") || !strings.Contains(missing[0], "Mid") {
		t.Fatalf("unexpected missing report %v", missing)
	}
}

func TestValidateRejectsCyclicChain(t *testing.T) {
	table, _ := NewTable(syntheticBars(40))
	reg := NewRegistry()
	reg.Register("A", []string{"B"}, Params{}, nil)
	reg.Register("B", []string{"A"}, Params{}, nil)
	engine := NewEngine(reg, testLogger(t))

	ok, missing := engine.Validate(table, []string{"A"})
	if ok {
		t.Fatalf("expected validation failure for a cyclic chain")
	}
	if len(missing) != 1 || !strings.Contains(missing[0], "missing deps") {
		t.Fatalf("unexpected missing report %v", missing)
	}
}
