package forecast

// Sequence is one model input window plus, for training, its target: the
// scaled close at Horizon steps beyond the window's end.
type Sequence struct {
	Input  [][]float64 // SequenceLength rows of feature values
	Target float64
}

// SequenceBuilder slices scaled feature rows into fixed-length windows.
type SequenceBuilder struct {
	SequenceLength int
	Horizon        int
}

// Training emits one sequence per index i in [L, N-H]: input rows
// [i-L, i) and the target at row i+H-1. Feature rows and targets must be
// aligned on the same index; the target column is never part of the
// feature rows.
func (b SequenceBuilder) Training(rows [][]float64, targets []float64) []Sequence {
	n := len(rows)
	l, h := b.SequenceLength, b.Horizon
	if n < l+h {
		return nil
	}
	out := make([]Sequence, 0, n-l-h+1)
	for i := l; i <= n-h; i++ {
		out = append(out, Sequence{
			Input:  rows[i-l : i],
			Target: targets[i+h-1],
		})
	}
	return out
}

// Inference emits exactly one window covering the last SequenceLength
// rows, or an InsufficientDataError when fewer rows exist.
func (b SequenceBuilder) Inference(rows [][]float64) ([][]float64, error) {
	if len(rows) < b.SequenceLength {
		return nil, &InsufficientDataError{Have: len(rows), Need: b.SequenceLength}
	}
	return rows[len(rows)-b.SequenceLength:], nil
}
