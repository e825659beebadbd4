package features

import (
	"sort"
	"sync"
)

// Params carries the numeric parameters of a feature calculation.
type Params struct {
	Window int     `json:"window,omitempty"`
	Mult   float64 `json:"mult,omitempty"`
}

// CalcFunc computes one feature column from a table. Implementations read
// dependency columns from the table and return a column of equal length.
type CalcFunc func(t *Table, p Params) ([]float64, error)

// Definition describes a registered feature: its inputs, parameters and
// calculation rule. Definitions are immutable once stored; re-registering
// a name replaces the whole definition (last write wins).
type Definition struct {
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies"`
	Params       Params   `json:"params"`
	calc         CalcFunc
}

// Registry holds named feature definitions. Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry returns a registry pre-loaded with the default feature set.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]Definition)}
	r.registerDefaults()
	return r
}

// Register stores a feature definition under name. Last write wins, which
// lets callers override the defaults with configured variants.
func (r *Registry) Register(name string, deps []string, p Params, calc CalcFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := make([]string, len(deps))
	copy(d, deps)
	r.defs[name] = Definition{Name: name, Dependencies: d, Params: p, calc: calc}
}

// Definition returns the registered definition for name.
func (r *Registry) Definition(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// Names returns all registered feature names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.defs))
	for name := range r.defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns definitions for the named features, for persisting
// alongside a trained model's feature configuration.
func (r *Registry) Snapshot(names []string) map[string]Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Definition, len(names))
	for _, name := range names {
		if d, ok := r.defs[name]; ok {
			out[name] = d
		}
	}
	return out
}

func (r *Registry) registerDefaults() {
	reg := func(name string, deps []string, p Params, calc CalcFunc) {
		r.defs[name] = Definition{Name: name, Dependencies: deps, Params: p, calc: calc}
	}

	reg("Returns", []string{ColClose}, Params{}, calcReturns)
	reg("Log_Returns", []string{ColClose}, Params{}, calcLogReturns)

	reg("SMA_10", []string{ColClose}, Params{Window: 10}, calcSMA)
	reg("SMA_20", []string{ColClose}, Params{Window: 20}, calcSMA)
	reg("EMA_12", []string{ColClose}, Params{Window: 12}, calcEMA)
	reg("EMA_26", []string{ColClose}, Params{Window: 26}, calcEMA)

	reg("RSI", []string{ColClose}, Params{Window: 14}, calcRSI)
	reg("MACD", []string{"EMA_12", "EMA_26"}, Params{}, calcMACD)
	reg("MACD_Signal", []string{"MACD"}, Params{Window: 9}, calcMACDSignal)

	reg("BB_Upper", []string{ColClose}, Params{Window: 20, Mult: 2}, calcBBUpper)
	reg("BB_Lower", []string{ColClose}, Params{Window: 20, Mult: 2}, calcBBLower)
	reg("BB_Width", []string{"BB_Upper", "BB_Lower", "SMA_20"}, Params{}, calcBBWidth)

	reg("Volume_SMA_10", []string{ColVolume}, Params{Window: 10}, calcVolumeSMA)
	reg("Price_Volume_Ratio", []string{ColClose, ColVolume, "Volume_SMA_10"}, Params{}, calcPriceVolumeRatio)

	reg("ATR", []string{ColHigh, ColLow, ColClose}, Params{Window: 14}, calcATR)
	reg("ADX", []string{ColHigh, ColLow, ColClose}, Params{Window: 14}, calcADX)

	reg("Stoch_K", []string{ColHigh, ColLow, ColClose}, Params{Window: 14}, calcStochK)
	reg("Stoch_D", []string{"Stoch_K"}, Params{Window: 3}, calcStochD)
	reg("MFI", []string{ColHigh, ColLow, ColClose, ColVolume}, Params{Window: 14}, calcMFI)
}
