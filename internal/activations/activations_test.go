package activations

import (
	"math"
	"testing"
)

// TestReLU tests ReLU activation.
func TestReLU(t *testing.T) {
	relu := ReLU{}

	tests := []struct {
		input    float64
		expected float64
	}{
		{-1.0, 0.0}, // Negative -> 0
		{0.0, 0.0},  // Zero -> 0
		{1.0, 1.0},  // Positive -> identity
		{2.5, 2.5},
		{-0.1, 0.0},
	}

	for _, tt := range tests {
		if output := relu.Activate(tt.input); output != tt.expected {
			t.Errorf("ReLU(%v) = %v, want %v", tt.input, output, tt.expected)
		}
	}
}

// TestReLUDerivative tests that the gradient is blocked at exactly zero.
func TestReLUDerivative(t *testing.T) {
	relu := ReLU{}

	tests := []struct {
		input    float64
		expected float64
	}{
		{-1.0, 0.0},
		{0.0, 0.0}, // x must be > 0
		{1e-12, 1.0},
		{2.5, 1.0},
	}

	for _, tt := range tests {
		if output := relu.Derivative(tt.input); output != tt.expected {
			t.Errorf("ReLU.Derivative(%v) = %v, want %v", tt.input, output, tt.expected)
		}
	}
}

// TestDerivativesMatchFiniteDifferences checks every smooth activation
// against a central difference away from its kink.
func TestDerivativesMatchFiniteDifferences(t *testing.T) {
	tests := []struct {
		name string
		act  Activation
	}{
		{"Sigmoid", Sigmoid{}},
		{"Tanh", Tanh{}},
		{"LeakyReLU", NewLeakyReLU(0.01)},
		{"ReLU", ReLU{}},
	}

	const h = 1e-6
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, x := range []float64{-2.3, -0.7, 0.4, 1.9} {
				numeric := (tt.act.Activate(x+h) - tt.act.Activate(x-h)) / (2 * h)
				if math.Abs(numeric-tt.act.Derivative(x)) > 1e-6 {
					t.Errorf("%s'(%v) = %v, finite difference %v", tt.name, x, tt.act.Derivative(x), numeric)
				}
			}
		})
	}
}

func TestApplyAndBackprop(t *testing.T) {
	x := []float64{-1, 2, 0, 3}
	out := make([]float64, len(x))
	Apply(ReLU{}, out, x)

	want := []float64{0, 2, 0, 3}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("Apply[%d] = %v, want %v", i, out[i], want[i])
		}
	}

	grad := []float64{5, 5, 5, 5}
	dx := make([]float64, len(x))
	Backprop(ReLU{}, dx, grad, x)
	wantGrad := []float64{0, 5, 0, 5}
	for i := range wantGrad {
		if dx[i] != wantGrad[i] {
			t.Errorf("Backprop[%d] = %v, want %v", i, dx[i], wantGrad[i])
		}
	}
}

func TestApplyLengthMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for length mismatch")
		}
	}()

	Apply(Tanh{}, make([]float64, 2), make([]float64, 3))
}
