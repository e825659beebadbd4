package features

import (
	"math"
	"testing"
	"time"

	"StockCast/internal/domain/models"
)

func flatBars(n int, price, volume float64) []models.Bar {
	bars := make([]models.Bar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = models.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    volume,
		}
	}
	return bars
}

func TestRollingMeanPartialWindow(t *testing.T) {
	got := rollingMean([]float64{2, 4, 6, 8}, 3)
	want := []float64{2, 3, 4, 6}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("rollingMean[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRollingStdShortWindowIsZero(t *testing.T) {
	got := rollingStd([]float64{5, 7, 9}, 2)
	if got[0] != 0 {
		t.Fatalf("first element should be zero, got %v", got[0])
	}
	if math.Abs(got[1]-math.Sqrt(2)) > 1e-9 {
		t.Fatalf("sample std of {5,7} = %v, want sqrt(2)", got[1])
	}
}

func TestEwmaSeededWithFirstValue(t *testing.T) {
	got := ewma([]float64{10, 10, 10}, 5)
	for i, v := range got {
		if v != 10 {
			t.Fatalf("ewma of constant series drifted at %d: %v", i, v)
		}
	}
}

func TestRSINeutralOnMonotonicRise(t *testing.T) {
	bars := make([]models.Bar, 30)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		p := 100.0 + float64(i)
		bars[i] = models.Bar{Timestamp: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p, Volume: 100}
	}
	table, _ := NewTable(bars)
	rsi, err := calcRSI(table, Params{Window: 14})
	if err != nil {
		t.Fatalf("rsi: %v", err)
	}
	// avgLoss stays zero for the whole series, so every row takes the
	// neutral midpoint instead of a division artifact.
	for i, v := range rsi {
		if v != 50 {
			t.Fatalf("rsi[%d] = %v, want neutral 50 with zero losses", i, v)
		}
	}
}

func TestStochKNeutralOnFlatRange(t *testing.T) {
	table, _ := NewTable(flatBars(20, 42, 100))
	k, err := calcStochK(table, Params{Window: 14})
	if err != nil {
		t.Fatalf("stoch_k: %v", err)
	}
	for i, v := range k {
		if v != 50 {
			t.Fatalf("stoch_k[%d] = %v, want 50 on flat range", i, v)
		}
	}
}

func TestMFINeutralWithoutNegativeFlow(t *testing.T) {
	table, _ := NewTable(flatBars(20, 42, 100))
	mfi, err := calcMFI(table, Params{Window: 14})
	if err != nil {
		t.Fatalf("mfi: %v", err)
	}
	for i, v := range mfi {
		if v != 50 {
			t.Fatalf("mfi[%d] = %v, want 50 without negative flow", i, v)
		}
	}
}

func TestBollingerBandsBracketMean(t *testing.T) {
	table, _ := NewTable(syntheticBars(60))
	upper, err := calcBBUpper(table, Params{Window: 20, Mult: 2})
	if err != nil {
		t.Fatalf("bb upper: %v", err)
	}
	lower, err := calcBBLower(table, Params{Window: 20, Mult: 2})
	if err != nil {
		t.Fatalf("bb lower: %v", err)
	}
	cls, _ := table.Column(ColClose)
	sma := rollingMean(cls, 20)
	for i := range sma {
		if upper[i] < sma[i] || lower[i] > sma[i] {
			t.Fatalf("bands do not bracket mean at %d: %v %v %v", i, lower[i], sma[i], upper[i])
		}
	}
}

func TestReturnsFirstRowZero(t *testing.T) {
	table, _ := NewTable(syntheticBars(10))
	r, err := calcReturns(table, Params{})
	if err != nil {
		t.Fatalf("returns: %v", err)
	}
	if r[0] != 0 {
		t.Fatalf("first return = %v, want 0", r[0])
	}
}

func TestTrueRangeUsesPreviousClose(t *testing.T) {
	high := []float64{10, 12}
	low := []float64{9, 11}
	cls := []float64{9.5, 11.5}
	tr := trueRange(high, low, cls)
	if tr[0] != 1 {
		t.Fatalf("tr[0] = %v, want high-low", tr[0])
	}
	// max(12-11, |12-9.5|, |11-9.5|) = 2.5
	if tr[1] != 2.5 {
		t.Fatalf("tr[1] = %v, want 2.5", tr[1])
	}
}
