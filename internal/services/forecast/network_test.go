package forecast

import (
	"math"
	"testing"
)

func TestForwardRejectsWrongWidth(t *testing.T) {
	net := NewNetwork(4, 3, 1)
	if _, err := net.Forward([]float64{1, 2}); err == nil {
		t.Fatalf("expected error for short input")
	}
	if _, err := net.TrainStep([]float64{1, 2, 3, 4, 5}, 0.5); err == nil {
		t.Fatalf("expected error for long input")
	}
}

func TestTrainStepReducesLoss(t *testing.T) {
	net := NewNetwork(2, 8, 3)
	// One fixed sample; repeated SGD steps must drive the error down.
	input := []float64{0.5, -0.25}
	target := 0.7

	first, err := net.TrainStep(input, target)
	if err != nil {
		t.Fatalf("TrainStep: %v", err)
	}
	var last float64
	for i := 0; i < 200; i++ {
		last, err = net.TrainStep(input, target)
		if err != nil {
			t.Fatalf("TrainStep %d: %v", i, err)
		}
	}
	if last >= first {
		t.Fatalf("loss did not decrease: first %v, last %v", first, last)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	net := NewNetwork(2, 2, 5)
	clone := net.Clone()
	before := net.OutBias

	if _, err := net.TrainStep([]float64{0.3, 0.6}, 1.0); err != nil {
		t.Fatalf("TrainStep: %v", err)
	}
	if net.OutBias == before {
		t.Fatalf("training did not update the output bias")
	}
	if clone.OutBias != before {
		t.Fatalf("training the original mutated the clone")
	}
}

func TestFlatten(t *testing.T) {
	got := Flatten([][]float64{{1, 2}, {3, 4}, {5, 6}})
	want := []float64{1, 2, 3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("at %d: %v, want %v", i, got[i], want[i])
		}
	}
	if Flatten(nil) != nil {
		t.Fatalf("empty window must flatten to nil")
	}
}

func TestTrainStepGradientsByHand(t *testing.T) {
	// Single input, single hidden unit, every weight set by hand so each
	// update can be checked against the arithmetic.
	net := &Network{
		InputSize:    1,
		HiddenSize:   1,
		InputHidden:  [][]float64{{0.5}},
		HiddenOut:    []float64{0.8},
		HiddenBias:   []float64{0.1},
		OutBias:      0.2,
		LearningRate: 0.1,
	}

	// Forward: h = 0.1 + 1.0*0.5 = 0.6, out = 0.2 + 0.6*0.8 = 0.68,
	// err = -0.32, loss = 0.1024.
	loss, err := net.TrainStep([]float64{1.0}, 1.0)
	if err != nil {
		t.Fatalf("TrainStep: %v", err)
	}
	if math.Abs(loss-0.1024) > 1e-12 {
		t.Fatalf("loss = %v, want 0.1024", loss)
	}

	// Output layer: w2 = 0.8 - 0.1*(-0.32*0.6) = 0.8192,
	// out bias = 0.2 - 0.1*(-0.32) = 0.232.
	if math.Abs(net.HiddenOut[0]-0.8192) > 1e-12 {
		t.Fatalf("HiddenOut = %v, want 0.8192", net.HiddenOut[0])
	}
	if math.Abs(net.OutBias-0.232) > 1e-12 {
		t.Fatalf("OutBias = %v, want 0.232", net.OutBias)
	}

	// Hidden layer delta uses the output weight from before the update:
	// delta = -0.32*0.8 = -0.256, so w1 = 0.5 + 0.1*0.256 = 0.5256 and
	// hidden bias = 0.1 + 0.1*0.256 = 0.1256. Using the already-updated
	// output weight would give 0.5262144 instead.
	if math.Abs(net.InputHidden[0][0]-0.5256) > 1e-12 {
		t.Fatalf("InputHidden = %v, want 0.5256", net.InputHidden[0][0])
	}
	if math.Abs(net.HiddenBias[0]-0.1256) > 1e-12 {
		t.Fatalf("HiddenBias = %v, want 0.1256", net.HiddenBias[0])
	}
}
