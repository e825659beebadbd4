package features

import (
	"fmt"
	"strings"
)

// CircularDependencyError reports a dependency cycle discovered while
// ordering a feature list. Feature names the member on which the cycle
// was detected.
type CircularDependencyError struct {
	Feature string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular feature dependency involving %q", e.Feature)
}

// MissingDependencyError reports that a feature could not be calculated
// because one or more of its inputs were absent from the table.
type MissingDependencyError struct {
	Feature string
	Missing []string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("cannot calculate %q: missing dependencies [%s]", e.Feature, strings.Join(e.Missing, ", "))
}
