package forecast

import (
	"errors"
	"fmt"
	"strings"
)

// InsufficientDataError reports too few bars for the requested window.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d rows, need at least %d", e.Have, e.Need)
}

// ModelNotTrainedError reports that no usable artifact exists for a symbol.
type ModelNotTrainedError struct {
	Symbol string
}

func (e *ModelNotTrainedError) Error() string {
	return fmt.Sprintf("no trained model for %s", e.Symbol)
}

// FeatureMismatchError reports that live data can no longer produce the
// feature set the artifact was trained with.
type FeatureMismatchError struct {
	Symbol  string
	Missing []string
	Total   int
}

func (e *FeatureMismatchError) Error() string {
	return fmt.Sprintf("feature mismatch for %s: %d of %d trained features unavailable [%s]",
		e.Symbol, len(e.Missing), e.Total, strings.Join(e.Missing, ", "))
}

// TrainingFailedError reports a non-convergent or invalid training run.
// An existing persisted artifact is never touched by a failed run.
type TrainingFailedError struct {
	Symbol string
	Reason string
}

func (e *TrainingFailedError) Error() string {
	return fmt.Sprintf("training failed for %s: %s", e.Symbol, e.Reason)
}

// ArtifactIOError reports a persistence layer failure.
type ArtifactIOError struct {
	Symbol string
	Op     string
	Err    error
}

func (e *ArtifactIOError) Error() string {
	return fmt.Sprintf("artifact %s for %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *ArtifactIOError) Unwrap() error { return e.Err }

// ErrArtifactMissing marks a complete absence of persisted artifacts.
// Partial presence of the artifact file set is reported the same way.
var ErrArtifactMissing = errors.New("artifact not found")
