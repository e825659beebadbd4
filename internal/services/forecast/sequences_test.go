package forecast

import (
	"errors"
	"testing"
)

func rowsOf(n int) ([][]float64, []float64) {
	rows := make([][]float64, n)
	targets := make([]float64, n)
	for i := range rows {
		rows[i] = []float64{float64(i)}
		targets[i] = float64(i)
	}
	return rows, targets
}

func TestTrainingSequenceCount(t *testing.T) {
	rows, targets := rowsOf(100)
	b := SequenceBuilder{SequenceLength: 10, Horizon: 5}
	seqs := b.Training(rows, targets)
	// i runs over [10, 95]
	if len(seqs) != 86 {
		t.Fatalf("got %d sequences, want 86", len(seqs))
	}
}

func TestTrainingSequenceAlignment(t *testing.T) {
	rows, targets := rowsOf(30)
	b := SequenceBuilder{SequenceLength: 10, Horizon: 5}
	seqs := b.Training(rows, targets)

	first := seqs[0]
	if len(first.Input) != 10 {
		t.Fatalf("window length %d, want 10", len(first.Input))
	}
	if first.Input[0][0] != 0 || first.Input[9][0] != 9 {
		t.Fatalf("first window covers [%v, %v], want [0, 9]", first.Input[0][0], first.Input[9][0])
	}
	// Window ends at row 9; the target sits Horizon steps past it.
	if first.Target != 14 {
		t.Fatalf("first target %v, want 14", first.Target)
	}

	last := seqs[len(seqs)-1]
	if last.Target != 29 {
		t.Fatalf("last target %v, want 29", last.Target)
	}
}

func TestTrainingTooShort(t *testing.T) {
	rows, targets := rowsOf(14)
	b := SequenceBuilder{SequenceLength: 10, Horizon: 5}
	if seqs := b.Training(rows, targets); seqs != nil {
		t.Fatalf("expected nil for short history, got %d sequences", len(seqs))
	}
}

func TestInferenceWindow(t *testing.T) {
	rows, _ := rowsOf(25)
	b := SequenceBuilder{SequenceLength: 10, Horizon: 5}
	w, err := b.Inference(rows)
	if err != nil {
		t.Fatalf("inference: %v", err)
	}
	if len(w) != 10 || w[0][0] != 15 || w[9][0] != 24 {
		t.Fatalf("window covers [%v, %v], want [15, 24]", w[0][0], w[9][0])
	}
}

func TestInferenceInsufficient(t *testing.T) {
	rows, _ := rowsOf(5)
	b := SequenceBuilder{SequenceLength: 10, Horizon: 5}
	_, err := b.Inference(rows)
	var ide *InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if ide.Have != 5 || ide.Need != 10 {
		t.Fatalf("unexpected error detail %+v", ide)
	}
}
