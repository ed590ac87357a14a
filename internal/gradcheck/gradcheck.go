// Package gradcheck estimates gradients numerically so analytic backward
// passes can be verified against them.
package gradcheck

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/goneuron-layers/internal/tensor"
)

// DefaultStep is the finite-difference step used when h <= 0.
const DefaultStep = 1e-5

func settings(h float64) *fd.Settings {
	if h <= 0 {
		h = DefaultStep
	}
	return &fd.Settings{Formula: fd.Central, Step: h}
}

// NumericalGradient estimates the gradient of a scalar function f at x with
// central differences of step h. f must not modify its argument.
func NumericalGradient(f func(x []float64) float64, x []float64, h float64) []float64 {
	return fd.Gradient(nil, f, x, settings(h))
}

// NumericalGradientArray estimates the gradient of sum(f(x) * dout) with
// respect to x, which is what a layer's backward pass returns for the
// upstream gradient dout.
//
// f receives a fresh tensor of x's shape for every evaluation. A panic
// from f, such as a shape error surfaced by a layer, is returned as an error.
func NumericalGradientArray(f func(x *tensor.Tensor) (*tensor.Tensor, error), x, dout *tensor.Tensor, h float64) (grad *tensor.Tensor, err error) {
	shape := x.Shape()
	scalar := func(v []float64) float64 {
		out, ferr := f(tensor.MustFromSlice(v, shape...))
		if ferr != nil {
			panic(ferr)
		}
		if out.Len() != dout.Len() {
			panic(fmt.Errorf("%w: output %v does not match dout %v", tensor.ErrShape, out.Shape(), dout.Shape()))
		}
		return floats.Dot(out.Data(), dout.Data())
	}

	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				panic(r)
			}
			grad, err = nil, e
		}
	}()

	g := NumericalGradient(scalar, x.Data(), h)
	return tensor.MustFromSlice(g, shape...), nil
}

// RelError returns max_i |a_i - b_i| / max(1e-8, |a_i| + |b_i|).
func RelError(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("gradcheck.RelError: slices must have same length")
	}
	var worst float64
	for i := range a {
		denom := math.Max(1e-8, math.Abs(a[i])+math.Abs(b[i]))
		worst = math.Max(worst, math.Abs(a[i]-b[i])/denom)
	}
	return worst
}

// Close reports whether every |a_i - b_i| <= atol + rtol*max(|a_i|, |b_i|).
// Unlike RelError it tolerates tiny absolute differences on entries whose
// true gradient is near zero.
func Close(a, b []float64, rtol, atol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > atol+rtol*math.Max(math.Abs(a[i]), math.Abs(b[i])) {
			return false
		}
	}
	return true
}
