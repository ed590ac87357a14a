// Package activations provides pointwise activation functions and their
// derivatives.
package activations

import "math"

// Activation is an activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x) from the pre-activation input x
	Derivative(x float64) float64
}

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (r ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0.
// An input of exactly 0 counts as inactive.
func (r ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// LeakyReLU lets a small slope through for x <= 0.
type LeakyReLU struct {
	Alpha float64 // Slope for x <= 0
}

// NewLeakyReLU creates a LeakyReLU with the given alpha value.
func NewLeakyReLU(alpha float64) *LeakyReLU {
	return &LeakyReLU{Alpha: alpha}
}

// Activate computes x if x > 0, else alpha*x
func (l *LeakyReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return l.Alpha * x
}

// Derivative returns 1 if x > 0, else alpha
func (l *LeakyReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return l.Alpha
}

// Sigmoid activation function.
type Sigmoid struct{}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Activate computes sigmoid(x)
func (s Sigmoid) Activate(x float64) float64 {
	return sigmoid(x)
}

// Derivative computes sigmoid(x) * (1 - sigmoid(x))
func (s Sigmoid) Derivative(x float64) float64 {
	sigma := sigmoid(x)
	return sigma * (1 - sigma)
}

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (t Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - tanh(x)^2
func (t Tanh) Derivative(x float64) float64 {
	tanhX := math.Tanh(x)
	return 1 - tanhX*tanhX
}

// Apply writes act(src[i]) into dst[i]. dst and src must have the same
// length and may alias.
func Apply(act Activation, dst, src []float64) {
	if len(dst) != len(src) {
		panic("activations.Apply: dst and src must have same length")
	}
	for i, v := range src {
		dst[i] = act.Activate(v)
	}
}

// Backprop writes grad[i] * act'(x[i]) into dst[i]. Where the derivative is
// zero the gradient is blocked outright, even if grad[i] is not finite.
func Backprop(act Activation, dst, grad, x []float64) {
	if len(dst) != len(grad) || len(grad) != len(x) {
		panic("activations.Backprop: slices must have same length")
	}
	for i, g := range grad {
		d := act.Derivative(x[i])
		if d == 0 {
			dst[i] = 0
			continue
		}
		dst[i] = g * d
	}
}
