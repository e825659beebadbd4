package features

// ResolveOrder topologically orders the requested feature list so that
// every feature appears after all of its dependencies that are also in
// the request. Dependencies outside the request are assumed to already
// exist as raw columns and are not reordered. A cycle among requested
// features yields a CircularDependencyError naming the feature on which
// it was detected.
func (r *Registry) ResolveOrder(requested []string) ([]string, error) {
	inRequest := make(map[string]bool, len(requested))
	for _, f := range requested {
		inRequest[f] = true
	}

	ordered := make([]string, 0, len(requested))
	visited := make(map[string]bool, len(requested))
	visiting := make(map[string]bool, len(requested))

	var visit func(name string) error
	visit = func(name string) error {
		if visiting[name] {
			return &CircularDependencyError{Feature: name}
		}
		if visited[name] {
			return nil
		}
		visiting[name] = true

		if def, ok := r.Definition(name); ok {
			for _, dep := range def.Dependencies {
				if inRequest[dep] {
					if err := visit(dep); err != nil {
						return err
					}
				}
			}
		}

		delete(visiting, name)
		visited[name] = true
		ordered = append(ordered, name)
		return nil
	}

	for _, f := range requested {
		if !visited[f] {
			if err := visit(f); err != nil {
				return nil, err
			}
		}
	}
	return ordered, nil
}
