package features

import (
	"fmt"
	"math"
)

// Rolling helpers. All windows are trailing and tolerate short history
// (a partial window at the head of the series, matching min-periods-1
// semantics), so every indicator yields a value from the first row.

func rollingMean(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	sum := 0.0
	for i := range x {
		sum += x[i]
		if i >= w {
			sum -= x[i-w]
		}
		n := i + 1
		if n > w {
			n = w
		}
		out[i] = sum / float64(n)
	}
	return out
}

func rollingSum(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	sum := 0.0
	for i := range x {
		sum += x[i]
		if i >= w {
			sum -= x[i-w]
		}
		out[i] = sum
	}
	return out
}

// rollingStd is the sample standard deviation over a trailing window.
// Windows with fewer than two observations report zero.
func rollingStd(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		lo := i - w + 1
		if lo < 0 {
			lo = 0
		}
		n := i - lo + 1
		if n < 2 {
			out[i] = 0
			continue
		}
		mean := 0.0
		for j := lo; j <= i; j++ {
			mean += x[j]
		}
		mean /= float64(n)
		ss := 0.0
		for j := lo; j <= i; j++ {
			d := x[j] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(n-1))
	}
	return out
}

func rollingMin(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		lo := i - w + 1
		if lo < 0 {
			lo = 0
		}
		m := x[lo]
		for j := lo + 1; j <= i; j++ {
			if x[j] < m {
				m = x[j]
			}
		}
		out[i] = m
	}
	return out
}

func rollingMax(x []float64, w int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		lo := i - w + 1
		if lo < 0 {
			lo = 0
		}
		m := x[lo]
		for j := lo + 1; j <= i; j++ {
			if x[j] > m {
				m = x[j]
			}
		}
		out[i] = m
	}
	return out
}

// ewma is an exponential moving average with span-style smoothing,
// seeded with the first observation.
func ewma(x []float64, span int) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = alpha*x[i] + (1-alpha)*out[i-1]
	}
	return out
}

func column(t *Table, name string) ([]float64, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %s not present", name)
	}
	return c, nil
}

// calcReturns is the simple percentage change of Close; the first row is
// zero by definition.
func calcReturns(t *Table, _ Params) ([]float64, error) {
	cls, err := column(t, ColClose)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cls))
	for i := 1; i < len(cls); i++ {
		if cls[i-1] != 0 {
			out[i] = (cls[i] - cls[i-1]) / cls[i-1]
		}
	}
	return out, nil
}

func calcLogReturns(t *Table, _ Params) ([]float64, error) {
	cls, err := column(t, ColClose)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cls))
	for i := 1; i < len(cls); i++ {
		if cls[i-1] > 0 && cls[i] > 0 {
			out[i] = math.Log(cls[i] / cls[i-1])
		}
	}
	return out, nil
}

func calcSMA(t *Table, p Params) ([]float64, error) {
	cls, err := column(t, ColClose)
	if err != nil {
		return nil, err
	}
	return rollingMean(cls, p.Window), nil
}

func calcEMA(t *Table, p Params) ([]float64, error) {
	cls, err := column(t, ColClose)
	if err != nil {
		return nil, err
	}
	return ewma(cls, p.Window), nil
}

// calcRSI computes the relative strength index. A window with no losses
// would divide by zero; per policy the neutral midpoint 50 is substituted
// instead of propagating infinities.
func calcRSI(t *Table, p Params) ([]float64, error) {
	cls, err := column(t, ColClose)
	if err != nil {
		return nil, err
	}
	n := len(cls)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := cls[i] - cls[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	avgGain := rollingMean(gains, p.Window)
	avgLoss := rollingMean(losses, p.Window)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if avgLoss[i] == 0 {
			out[i] = 50
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out, nil
}

func calcMACD(t *Table, _ Params) ([]float64, error) {
	fast, err := column(t, "EMA_12")
	if err != nil {
		return nil, err
	}
	slow, err := column(t, "EMA_26")
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(fast))
	for i := range out {
		out[i] = fast[i] - slow[i]
	}
	return out, nil
}

func calcMACDSignal(t *Table, p Params) ([]float64, error) {
	macd, err := column(t, "MACD")
	if err != nil {
		return nil, err
	}
	return ewma(macd, p.Window), nil
}

func calcBBUpper(t *Table, p Params) ([]float64, error) {
	return bollinger(t, p, +1)
}

func calcBBLower(t *Table, p Params) ([]float64, error) {
	return bollinger(t, p, -1)
}

func bollinger(t *Table, p Params, sign float64) ([]float64, error) {
	cls, err := column(t, ColClose)
	if err != nil {
		return nil, err
	}
	sma := rollingMean(cls, p.Window)
	std := rollingStd(cls, p.Window)
	out := make([]float64, len(cls))
	for i := range out {
		out[i] = sma[i] + sign*p.Mult*std[i]
	}
	return out, nil
}

func calcBBWidth(t *Table, _ Params) ([]float64, error) {
	upper, err := column(t, "BB_Upper")
	if err != nil {
		return nil, err
	}
	lower, err := column(t, "BB_Lower")
	if err != nil {
		return nil, err
	}
	mid, err := column(t, "SMA_20")
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(upper))
	for i := range out {
		if mid[i] != 0 {
			out[i] = (upper[i] - lower[i]) / mid[i]
		}
	}
	return out, nil
}

func calcVolumeSMA(t *Table, p Params) ([]float64, error) {
	vol, err := column(t, ColVolume)
	if err != nil {
		return nil, err
	}
	return rollingMean(vol, p.Window), nil
}

func calcPriceVolumeRatio(t *Table, _ Params) ([]float64, error) {
	cls, err := column(t, ColClose)
	if err != nil {
		return nil, err
	}
	vol, err := column(t, ColVolume)
	if err != nil {
		return nil, err
	}
	vsma, err := column(t, "Volume_SMA_10")
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cls))
	for i := range out {
		if vsma[i] != 0 {
			out[i] = cls[i] * vol[i] / vsma[i]
		}
	}
	return out, nil
}

func trueRange(high, low, cls []float64) []float64 {
	n := len(high)
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		hl := high[i] - low[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(high[i] - cls[i-1])
		lc := math.Abs(low[i] - cls[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

func calcATR(t *Table, p Params) ([]float64, error) {
	high, err := column(t, ColHigh)
	if err != nil {
		return nil, err
	}
	low, err := column(t, ColLow)
	if err != nil {
		return nil, err
	}
	cls, err := column(t, ColClose)
	if err != nil {
		return nil, err
	}
	return rollingMean(trueRange(high, low, cls), p.Window), nil
}

// calcADX computes the average directional index. Steps with zero
// directional movement report zero rather than a division artifact.
func calcADX(t *Table, p Params) ([]float64, error) {
	high, err := column(t, ColHigh)
	if err != nil {
		return nil, err
	}
	low, err := column(t, ColLow)
	if err != nil {
		return nil, err
	}
	cls, err := column(t, ColClose)
	if err != nil {
		return nil, err
	}
	n := len(high)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > 0 && up > down {
			plusDM[i] = up
		}
		if down > 0 && down > up {
			minusDM[i] = down
		}
	}
	atr := rollingMean(trueRange(high, low, cls), p.Window)
	plusSm := rollingMean(plusDM, p.Window)
	minusSm := rollingMean(minusDM, p.Window)

	dx := make([]float64, n)
	for i := 0; i < n; i++ {
		if atr[i] == 0 {
			continue
		}
		plusDI := 100 * plusSm[i] / atr[i]
		minusDI := 100 * minusSm[i] / atr[i]
		sum := plusDI + minusDI
		if sum == 0 {
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / sum
	}
	return rollingMean(dx, p.Window), nil
}

// calcStochK substitutes the midpoint 50 when the rolling range is flat.
func calcStochK(t *Table, p Params) ([]float64, error) {
	high, err := column(t, ColHigh)
	if err != nil {
		return nil, err
	}
	low, err := column(t, ColLow)
	if err != nil {
		return nil, err
	}
	cls, err := column(t, ColClose)
	if err != nil {
		return nil, err
	}
	lowest := rollingMin(low, p.Window)
	highest := rollingMax(high, p.Window)
	out := make([]float64, len(cls))
	for i := range out {
		span := highest[i] - lowest[i]
		if span == 0 {
			out[i] = 50
			continue
		}
		out[i] = 100 * (cls[i] - lowest[i]) / span
	}
	return out, nil
}

func calcStochD(t *Table, p Params) ([]float64, error) {
	k, err := column(t, "Stoch_K")
	if err != nil {
		return nil, err
	}
	return rollingMean(k, p.Window), nil
}

// calcMFI substitutes the midpoint 50 when the negative flow is zero.
func calcMFI(t *Table, p Params) ([]float64, error) {
	high, err := column(t, ColHigh)
	if err != nil {
		return nil, err
	}
	low, err := column(t, ColLow)
	if err != nil {
		return nil, err
	}
	cls, err := column(t, ColClose)
	if err != nil {
		return nil, err
	}
	vol, err := column(t, ColVolume)
	if err != nil {
		return nil, err
	}
	n := len(cls)
	typical := make([]float64, n)
	for i := 0; i < n; i++ {
		typical[i] = (high[i] + low[i] + cls[i]) / 3
	}
	posFlow := make([]float64, n)
	negFlow := make([]float64, n)
	for i := 1; i < n; i++ {
		mf := typical[i] * vol[i]
		if typical[i] > typical[i-1] {
			posFlow[i] = mf
		} else if typical[i] < typical[i-1] {
			negFlow[i] = mf
		}
	}
	posSum := rollingSum(posFlow, p.Window)
	negSum := rollingSum(negFlow, p.Window)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if negSum[i] == 0 {
			out[i] = 50
			continue
		}
		ratio := posSum[i] / negSum[i]
		out[i] = 100 - 100/(1+ratio)
	}
	return out, nil
}
