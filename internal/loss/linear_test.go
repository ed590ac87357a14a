package loss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/goneuron-layers/internal/gradcheck"
	"github.com/FlavioCFOliveira/goneuron-layers/internal/tensor"
)

// linearProblem builds a small random classifier with deterministic data.
func linearProblem(seed uint64, n, d, c int) (w, x *tensor.Tensor, y []int) {
	rng := tensor.NewRNG(seed)
	w = tensor.Randn(rng, d, c)
	floats.Scale(0.01, w.Data())
	x = tensor.Randn(rng, n, d)
	y = make([]int, n)
	for i := range y {
		y[i] = rng.IntN(c)
	}
	return w, x, y
}

func TestSoftmaxNaiveMatchesVectorized(t *testing.T) {
	w, x, y := linearProblem(1, 20, 8, 4)

	for _, reg := range []float64{0, 0.5, 5} {
		naiveLoss, naiveGrad, err := SoftmaxLossNaive(w, x, y, reg)
		require.NoError(t, err)
		vecLoss, vecGrad, err := SoftmaxLossVectorized(w, x, y, reg)
		require.NoError(t, err)

		assert.InDelta(t, naiveLoss, vecLoss, 1e-10, "reg=%v", reg)
		assert.InDeltaSlice(t, naiveGrad.Data(), vecGrad.Data(), 1e-10, "reg=%v", reg)
	}
}

func TestSVMNaiveMatchesVectorized(t *testing.T) {
	w, x, y := linearProblem(2, 20, 8, 4)

	for _, reg := range []float64{0, 0.5} {
		naiveLoss, naiveGrad, err := SVMLossNaive(w, x, y, reg)
		require.NoError(t, err)
		vecLoss, vecGrad, err := SVMLossVectorized(w, x, y, reg)
		require.NoError(t, err)

		assert.InDelta(t, naiveLoss, vecLoss, 1e-10, "reg=%v", reg)
		assert.InDeltaSlice(t, naiveGrad.Data(), vecGrad.Data(), 1e-10, "reg=%v", reg)
	}
}

// TestSoftmaxSmallWeights: with near-zero weights every class is equally
// likely, so the loss approaches log(C).
func TestSoftmaxSmallWeights(t *testing.T) {
	w, x, y := linearProblem(3, 50, 10, 10)
	floats.Scale(1e-4, w.Data())

	loss, _, err := SoftmaxLossNaive(w, x, y, 0)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(10), loss, 1e-3)
}

func TestLinearLossGradients(t *testing.T) {
	w, x, y := linearProblem(4, 10, 6, 3)
	d, c := 6, 3

	tests := []struct {
		name string
		f    LinearLossFunc
	}{
		{"SoftmaxNaive", SoftmaxLossNaive},
		{"SoftmaxVectorized", SoftmaxLossVectorized},
		{"SVMNaive", SVMLossNaive},
		{"SVMVectorized", SVMLossVectorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := 0.1
			_, grad, err := tt.f(w, x, y, reg)
			require.NoError(t, err)

			numeric := gradcheck.NumericalGradient(func(v []float64) float64 {
				l, _, err := tt.f(tensor.MustFromSlice(v, d, c), x, y, reg)
				require.NoError(t, err)
				return l
			}, w.Data(), 1e-6)

			t.Logf("%s dW relative error: %g", tt.name, gradcheck.RelError(numeric, grad.Data()))
			assert.True(t, gradcheck.Close(numeric, grad.Data(), 1e-6, 1e-8))
		})
	}
}

func TestLinearLossShapeErrors(t *testing.T) {
	w := tensor.New(4, 3)
	x := tensor.New(5, 6)
	y := []int{0, 1, 2, 0, 1}

	for _, f := range []LinearLossFunc{SoftmaxLossNaive, SoftmaxLossVectorized, SVMLossNaive, SVMLossVectorized} {
		_, _, err := f(w, x, y, 0)
		assert.ErrorIs(t, err, tensor.ErrShape)

		_, _, err = f(w, tensor.New(5, 4), []int{0, 1, 2, 0, 3}, 0)
		assert.ErrorIs(t, err, ErrLabel)
	}
}
