package features

import (
	"errors"
	"testing"
)

func TestResolveOrderDependenciesFirst(t *testing.T) {
	reg := NewRegistry()
	order, err := reg.ResolveOrder([]string{"MACD_Signal", "MACD", "EMA_26", "EMA_12"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	if pos["EMA_12"] > pos["MACD"] || pos["EMA_26"] > pos["MACD"] {
		t.Fatalf("EMA must come before MACD, got %v", order)
	}
	if pos["MACD"] > pos["MACD_Signal"] {
		t.Fatalf("MACD must come before MACD_Signal, got %v", order)
	}
}

func TestResolveOrderIgnoresUnrequestedDeps(t *testing.T) {
	reg := NewRegistry()
	// MACD depends on EMA_12/EMA_26, which are not in the request and
	// must be assumed present rather than pulled into the order.
	order, err := reg.ResolveOrder([]string{"MACD"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(order) != 1 || order[0] != "MACD" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestResolveOrderDetectsCycle(t *testing.T) {
	reg := NewRegistry()
	reg.Register("A", []string{"B"}, Params{}, nil)
	reg.Register("B", []string{"A"}, Params{}, nil)

	_, err := reg.ResolveOrder([]string{"A", "B"})
	var cde *CircularDependencyError
	if !errors.As(err, &cde) {
		t.Fatalf("expected CircularDependencyError, got %v", err)
	}
}

func TestResolveOrderSelfDependency(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Echoed", []string{"Echoed"}, Params{}, nil)

	_, err := reg.ResolveOrder([]string{"Echoed"})
	var cde *CircularDependencyError
	if !errors.As(err, &cde) {
		t.Fatalf("expected CircularDependencyError, got %v", err)
	}
	if cde.Feature != "Echoed" {
		t.Fatalf("unexpected feature %q", cde.Feature)
	}
}

func TestRegistryLastWriteWins(t *testing.T) {
	reg := NewRegistry()
	reg.Register("RSI", []string{ColClose}, Params{Window: 7}, calcRSI)

	def, ok := reg.Definition("RSI")
	if !ok {
		t.Fatalf("RSI missing after override")
	}
	if def.Params.Window != 7 {
		t.Fatalf("expected window 7, got %d", def.Params.Window)
	}
}
