package features

import (
	"fmt"
	"strings"

	"StockCast/pkg/logger"
)

// Engine executes feature calculations over a table in dependency order.
// Individual feature failures are logged and skipped; a single bad
// feature never aborts a batch. Unresolvable orderings (cycles) do.
type Engine struct {
	reg *Registry
	log *logger.Logger
}

// NewEngine creates a calculation engine over the given registry.
func NewEngine(reg *Registry, log *logger.Logger) *Engine {
	return &Engine{reg: reg, log: log}
}

// Registry exposes the engine's registry.
func (e *Engine) Registry() *Registry { return e.reg }

// Calculate returns a new table enriched with the requested features.
// Features already present as columns are left untouched, which makes
// repeated calls with the same inputs idempotent.
func (e *Engine) Calculate(t *Table, featureList []string) (*Table, error) {
	ordered, err := e.reg.ResolveOrder(featureList)
	if err != nil {
		return nil, err
	}

	out := t
	for _, name := range ordered {
		if out.Has(name) {
			continue
		}

		def, ok := e.reg.Definition(name)
		if !ok {
			e.log.Warn("feature not registered, skipping", logger.String("feature", name))
			continue
		}

		var missing []string
		for _, dep := range def.Dependencies {
			if !out.Has(dep) {
				missing = append(missing, dep)
			}
		}
		if len(missing) > 0 {
			mde := &MissingDependencyError{Feature: name, Missing: missing}
			e.log.Error("feature dependency missing, skipping", logger.String("feature", name), logger.Error(mde))
			continue
		}

		col, err := def.calc(out, def.Params)
		if err != nil {
			e.log.Error("feature calculation failed, skipping", logger.String("feature", name), logger.Error(err))
			continue
		}
		next, err := out.WithColumn(name, col)
		if err != nil {
			e.log.Error("feature column rejected, skipping", logger.String("feature", name), logger.Error(err))
			continue
		}
		out = next
	}
	return out, nil
}

// Validate reports whether every required feature is either present as a
// column or derivable from the table, without mutating anything. A
// feature is derivable only if its whole dependency chain bottoms out in
// table columns; a registered intermediate does not count when its own
// inputs are absent. Each missing entry carries its reason.
func (e *Engine) Validate(t *Table, required []string) (bool, []string) {
	var missing []string
	for _, name := range required {
		if t.Has(name) {
			continue
		}
		def, ok := e.reg.Definition(name)
		if !ok {
			missing = append(missing, fmt.Sprintf("%s (not registered)", name))
			continue
		}
		var absent []string
		for _, dep := range def.Dependencies {
			if !e.derivable(t, dep, map[string]bool{name: true}) {
				absent = append(absent, dep)
			}
		}
		if len(absent) > 0 {
			missing = append(missing, fmt.Sprintf("%s (missing deps: %s)", name, strings.Join(absent, ", ")))
		}
	}
	return len(missing) == 0, missing
}

// derivable walks the dependency chain of name down to table columns.
// The seen set breaks cycles; a cyclic chain is not derivable.
func (e *Engine) derivable(t *Table, name string, seen map[string]bool) bool {
	if t.Has(name) {
		return true
	}
	if seen[name] {
		return false
	}
	def, ok := e.reg.Definition(name)
	if !ok {
		return false
	}
	seen[name] = true
	for _, dep := range def.Dependencies {
		if !e.derivable(t, dep, seen) {
			return false
		}
	}
	return true
}
