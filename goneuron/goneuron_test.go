package goneuron

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTwoLayerNet wires affine-relu, affine and softmax loss together and
// checks the first layer's weight gradient numerically.
func TestTwoLayerNet(t *testing.T) {
	rng := NewRNG(17)
	x := NewTensor(5, 4)
	w1 := NewTensor(4, 6)
	w2 := NewTensor(6, 3)
	for _, tt := range []*Tensor{x, w1, w2} {
		for i := range tt.Data() {
			tt.Data()[i] = rng.NormFloat64()
		}
	}
	b1, b2 := NewTensor(6), NewTensor(3)
	y := []int{0, 2, 1, 1, 0}

	lossAt := func(w1 *Tensor) (float64, *Tensor) {
		h, c1, err := AffineReLUForward(x, w1, b1)
		require.NoError(t, err)
		scores, c2, err := AffineForward(h, w2, b2)
		require.NoError(t, err)
		l, dscores, err := SoftmaxLoss(scores, y)
		require.NoError(t, err)

		dh, _, _, err := AffineBackward(dscores, c2)
		require.NoError(t, err)
		_, dw1, _, err := AffineReLUBackward(dh, c1)
		require.NoError(t, err)
		return l, dw1
	}

	_, dw1 := lossAt(w1)
	numeric := NumericalGradient(func(v []float64) float64 {
		w, err := FromSlice(v, 4, 6)
		require.NoError(t, err)
		l, _ := lossAt(w)
		return l
	}, w1.Data(), 0)

	t.Logf("dW1 relative error: %g", RelError(numeric, dw1.Data()))
	assert.InDeltaSlice(t, numeric, dw1.Data(), 1e-7)
}

func TestFacadeErrors(t *testing.T) {
	_, err := NewBatchNormParam("eval")
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = NewPoolParam(2, 2, 0)
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, _, err = SoftmaxLoss(NewTensor(2, 3), []int{0, 3})
	assert.ErrorIs(t, err, ErrLabel)

	_, _, _, err = ConvBackwardNaive(NewTensor(1, 1, 1, 1), nil)
	assert.ErrorIs(t, err, ErrNoCache)

	_, _, err = AffineForward(NewTensor(2, 3), NewTensor(4, 2), NewTensor(2))
	assert.ErrorIs(t, err, ErrShape)
}
