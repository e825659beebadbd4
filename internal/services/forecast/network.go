package forecast

import (
	"fmt"
	"math"
	"math/rand"
)

// Network is a small feed-forward regression model over the flattened
// input window: one ReLU hidden layer, a single linear output unit,
// trained by stochastic gradient descent on squared error. Weights are
// plain slices so the whole model serializes as JSON.
type Network struct {
	InputSize    int         `json:"input_size"`
	HiddenSize   int         `json:"hidden_size"`
	InputHidden  [][]float64 `json:"input_hidden"`
	HiddenOut    []float64   `json:"hidden_out"`
	HiddenBias   []float64   `json:"hidden_bias"`
	OutBias      float64     `json:"out_bias"`
	LearningRate float64     `json:"learning_rate"`
}

// NewNetwork initializes weights with small random values from the given
// seed, so training runs are reproducible.
func NewNetwork(inputSize, hiddenSize int, seed int64) *Network {
	rng := rand.New(rand.NewSource(seed))
	ih := make([][]float64, inputSize)
	for i := range ih {
		ih[i] = make([]float64, hiddenSize)
		for j := range ih[i] {
			ih[i][j] = (rng.Float64() - 0.5) * 0.1
		}
	}
	ho := make([]float64, hiddenSize)
	hb := make([]float64, hiddenSize)
	for j := 0; j < hiddenSize; j++ {
		ho[j] = (rng.Float64() - 0.5) * 0.1
		hb[j] = (rng.Float64() - 0.5) * 0.1
	}
	return &Network{
		InputSize:    inputSize,
		HiddenSize:   hiddenSize,
		InputHidden:  ih,
		HiddenOut:    ho,
		HiddenBias:   hb,
		OutBias:      (rng.Float64() - 0.5) * 0.1,
		LearningRate: 0.01,
	}
}

// ShapeValid checks serialized weight dimensions after a load.
func (n *Network) ShapeValid() bool {
	if len(n.InputHidden) != n.InputSize || len(n.HiddenOut) != n.HiddenSize || len(n.HiddenBias) != n.HiddenSize {
		return false
	}
	for _, row := range n.InputHidden {
		if len(row) != n.HiddenSize {
			return false
		}
	}
	return true
}

// Flatten lays a window out row-major as one input vector.
func Flatten(window [][]float64) []float64 {
	if len(window) == 0 {
		return nil
	}
	out := make([]float64, 0, len(window)*len(window[0]))
	for _, row := range window {
		out = append(out, row...)
	}
	return out
}

func (n *Network) hidden(input []float64) []float64 {
	h := make([]float64, n.HiddenSize)
	for j := 0; j < n.HiddenSize; j++ {
		sum := n.HiddenBias[j]
		for i, v := range input {
			sum += v * n.InputHidden[i][j]
		}
		if sum > 0 {
			h[j] = sum
		}
	}
	return h
}

// Forward runs one inference pass and returns the scaled prediction.
func (n *Network) Forward(input []float64) (float64, error) {
	if len(input) != n.InputSize {
		return 0, fmt.Errorf("network: got %d inputs, expected %d", len(input), n.InputSize)
	}
	h := n.hidden(input)
	out := n.OutBias
	for j, v := range h {
		out += v * n.HiddenOut[j]
	}
	return out, nil
}

// TrainStep performs one SGD update and returns the squared error before
// the update.
func (n *Network) TrainStep(input []float64, target float64) (float64, error) {
	if len(input) != n.InputSize {
		return 0, fmt.Errorf("network: got %d inputs, expected %d", len(input), n.InputSize)
	}
	h := n.hidden(input)
	out := n.OutBias
	for j, v := range h {
		out += v * n.HiddenOut[j]
	}

	err := out - target
	loss := err * err

	// Hidden deltas use the output weights from before this step's
	// update; both layers see gradients of the same forward pass.
	deltas := make([]float64, n.HiddenSize)
	for j := 0; j < n.HiddenSize; j++ {
		if h[j] > 0 {
			deltas[j] = err * n.HiddenOut[j]
		}
	}

	// Output layer gradients.
	for j := 0; j < n.HiddenSize; j++ {
		grad := err * h[j]
		n.HiddenOut[j] -= n.LearningRate * grad
	}
	n.OutBias -= n.LearningRate * err

	// Hidden layer gradients through the ReLU gate.
	for j := 0; j < n.HiddenSize; j++ {
		if h[j] <= 0 {
			continue
		}
		for i, v := range input {
			n.InputHidden[i][j] -= n.LearningRate * deltas[j] * v
		}
		n.HiddenBias[j] -= n.LearningRate * deltas[j]
	}

	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return loss, fmt.Errorf("network: loss diverged")
	}
	return loss, nil
}

// Clone deep-copies the network, used to keep the best weights during
// early stopping.
func (n *Network) Clone() *Network {
	ih := make([][]float64, len(n.InputHidden))
	for i, row := range n.InputHidden {
		ih[i] = append([]float64(nil), row...)
	}
	return &Network{
		InputSize:    n.InputSize,
		HiddenSize:   n.HiddenSize,
		InputHidden:  ih,
		HiddenOut:    append([]float64(nil), n.HiddenOut...),
		HiddenBias:   append([]float64(nil), n.HiddenBias...),
		OutBias:      n.OutBias,
		LearningRate: n.LearningRate,
	}
}
