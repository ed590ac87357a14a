package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/goneuron-layers/internal/tensor"
)

func TestConvForwardKnownValues(t *testing.T) {
	x := tensor.Linspace(-0.1, 0.5, 2, 3, 4, 4)
	w := tensor.Linspace(-0.2, 0.3, 3, 3, 4, 4)
	b := tensor.Linspace(-0.1, 0.2, 3)

	out, _, err := ConvForwardNaive(x, w, b, ConvParam{Stride: 2, Pad: 1})
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{2, 3, 2, 2}, out.Shape())

	want := []float64{
		-0.08759809, -0.10987781,
		-0.18387192, -0.21092160,

		0.21027089, 0.21661097,
		0.22847626, 0.23004637,

		0.50813986, 0.54309974,
		0.64082444, 0.67101435,

		-0.98053589, -1.03143541,
		-1.19128892, -1.24695841,

		0.69108355, 0.66880383,
		0.59480972, 0.56776003,

		2.36270298, 2.36904306,
		2.38090835, 2.38247847,
	}
	assert.InDeltaSlice(t, want, out.Data(), 1e-7)
}

func TestConvForwardZeroPadding(t *testing.T) {
	x := tensor.MustFromSlice([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1}, 1, 1, 3, 3)
	w := tensor.MustFromSlice([]float64{1, 1, 1, 1, 1, 1, 1, 1, 1}, 1, 1, 3, 3)
	b := tensor.MustFromSlice([]float64{0.5}, 1)

	out, _, err := ConvForwardNaive(x, w, b, ConvParam{Stride: 1, Pad: 1})
	require.NoError(t, err)

	// Each output counts the real pixels under the kernel
	want := []float64{
		4.5, 6.5, 4.5,
		6.5, 9.5, 6.5,
		4.5, 6.5, 4.5,
	}
	assert.Equal(t, want, out.Data())
}

func TestConvBackward(t *testing.T) {
	tests := []struct {
		name   string
		x      tensor.Shape
		w      tensor.Shape
		stride int
		pad    int
	}{
		{"stride1 pad1", tensor.Shape{2, 3, 5, 5}, tensor.Shape{3, 3, 3, 3}, 1, 1},
		{"stride2 pad1 overlapping", tensor.Shape{2, 3, 5, 5}, tensor.Shape{2, 3, 3, 3}, 2, 1},
		{"stride1 no pad rectangular", tensor.Shape{1, 2, 4, 6}, tensor.Shape{2, 2, 3, 2}, 1, 0},
		{"stride3 pad2", tensor.Shape{2, 1, 4, 4}, tensor.Shape{2, 1, 2, 2}, 3, 2},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := tensor.NewRNG(uint64(10 + i))
			x := tensor.Randn(rng, tt.x...)
			w := tensor.Randn(rng, tt.w...)
			b := tensor.Randn(rng, tt.w[0])
			param := ConvParam{Stride: tt.stride, Pad: tt.pad}

			out, cache, err := ConvForwardNaive(x, w, b, param)
			require.NoError(t, err)
			dout := tensor.Randn(rng, out.Shape()...)

			dx, dw, db, err := ConvBackwardNaive(dout, cache)
			require.NoError(t, err)

			forward := func(x, w, b *tensor.Tensor) (*tensor.Tensor, error) {
				out, _, err := ConvForwardNaive(x, w, b, param)
				return out, err
			}
			assertGrad(t, "dx", numericGrad(t, func(v *tensor.Tensor) (*tensor.Tensor, error) { return forward(v, w, b) }, x, dout), dx)
			assertGrad(t, "dw", numericGrad(t, func(v *tensor.Tensor) (*tensor.Tensor, error) { return forward(x, v, b) }, w, dout), dw)
			assertGrad(t, "db", numericGrad(t, func(v *tensor.Tensor) (*tensor.Tensor, error) { return forward(x, w, v) }, b, dout), db)
		})
	}
}

// TestConvBackwardRelError uses strictly positive inputs, filters and
// upstream gradients so every gradient entry is well away from zero.
func TestConvBackwardRelError(t *testing.T) {
	x := tensor.Linspace(0.5, 1.5, 1, 2, 4, 4)
	w := tensor.Linspace(0.2, 0.7, 2, 2, 3, 3)
	b := tensor.Linspace(0.1, 0.2, 2)
	param := ConvParam{Stride: 1, Pad: 1}

	out, cache, err := ConvForwardNaive(x, w, b, param)
	require.NoError(t, err)
	dout := tensor.Linspace(1, 2, out.Shape()...)

	dx, dw, db, err := ConvBackwardNaive(dout, cache)
	require.NoError(t, err)

	forward := func(x, w, b *tensor.Tensor) (*tensor.Tensor, error) {
		out, _, err := ConvForwardNaive(x, w, b, param)
		return out, err
	}
	assertRelError(t, "dx", numericGrad(t, func(v *tensor.Tensor) (*tensor.Tensor, error) { return forward(v, w, b) }, x, dout), dx)
	assertRelError(t, "dw", numericGrad(t, func(v *tensor.Tensor) (*tensor.Tensor, error) { return forward(x, v, b) }, w, dout), dw)
	assertRelError(t, "db", numericGrad(t, func(v *tensor.Tensor) (*tensor.Tensor, error) { return forward(x, w, v) }, b, dout), db)
}

func TestConvBackwardShapeIdentity(t *testing.T) {
	tests := []struct {
		h, w, kh, kw, stride, pad int
	}{
		{4, 4, 3, 3, 1, 1},
		{5, 5, 3, 3, 2, 1},
		{7, 5, 3, 1, 2, 0},
		{6, 6, 2, 2, 2, 0},
		{3, 3, 5, 5, 1, 1},
		{4, 6, 1, 1, 1, 3},
	}
	for _, tt := range tests {
		x := tensor.Linspace(-1, 1, 2, 2, tt.h, tt.w)
		w := tensor.Linspace(-0.5, 0.5, 3, 2, tt.kh, tt.kw)
		b := tensor.New(3)

		out, cache, err := ConvForwardNaive(x, w, b, ConvParam{Stride: tt.stride, Pad: tt.pad})
		require.NoError(t, err, "%+v", tt)

		wantH := 1 + (tt.h+2*tt.pad-tt.kh)/tt.stride
		wantW := 1 + (tt.w+2*tt.pad-tt.kw)/tt.stride
		assert.Equal(t, tensor.Shape{2, 3, wantH, wantW}, out.Shape(), "%+v", tt)

		dx, dw, db, err := ConvBackwardNaive(tensor.ZerosLike(out), cache)
		require.NoError(t, err, "%+v", tt)
		assert.Equal(t, x.Shape(), dx.Shape(), "%+v", tt)
		assert.Equal(t, w.Shape(), dw.Shape(), "%+v", tt)
		assert.Equal(t, tensor.Shape{3}, db.Shape(), "%+v", tt)
	}
}

func TestConvBackwardAccumulatesOverlap(t *testing.T) {
	// A 1x1 input padded to 3x3 sits under all four 2x2 windows at stride 1
	x := tensor.MustFromSlice([]float64{2}, 1, 1, 1, 1)
	w := tensor.MustFromSlice([]float64{1, 2, 3, 4}, 1, 1, 2, 2)
	b := tensor.New(1)

	out, cache, err := ConvForwardNaive(x, w, b, ConvParam{Stride: 1, Pad: 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{8, 6, 4, 2}, out.Data())

	dx, _, db, err := ConvBackwardNaive(tensor.MustFromSlice([]float64{1, 1, 1, 1}, 1, 1, 2, 2), cache)
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, dx.Data())
	assert.Equal(t, []float64{4}, db.Data())
}

func TestConvErrors(t *testing.T) {
	x := tensor.New(1, 2, 5, 5)
	b := tensor.New(1)

	tests := []struct {
		name  string
		w     *tensor.Tensor
		b     *tensor.Tensor
		param ConvParam
		want  error
	}{
		{"non-integral output", tensor.New(1, 2, 2, 2), b, ConvParam{Stride: 2}, tensor.ErrShape},
		{"kernel larger than input", tensor.New(1, 2, 7, 7), b, ConvParam{Stride: 1}, tensor.ErrShape},
		{"channel mismatch", tensor.New(1, 3, 3, 3), b, ConvParam{Stride: 1}, tensor.ErrShape},
		{"bias mismatch", tensor.New(1, 2, 3, 3), tensor.New(2), ConvParam{Stride: 1}, tensor.ErrShape},
		{"zero stride", tensor.New(1, 2, 3, 3), b, ConvParam{}, ErrInvalidParam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ConvForwardNaive(x, tt.w, tt.b, tt.param)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, cache, err := ConvForwardNaive(x, tensor.New(1, 2, 3, 3), b, DefaultConvParam())
	require.NoError(t, err)
	_, _, _, err = ConvBackwardNaive(tensor.New(1, 1, 2, 2), cache)
	assert.ErrorIs(t, err, tensor.ErrShape)
	_, _, _, err = ConvBackwardNaive(tensor.New(1, 1, 3, 3), nil)
	assert.ErrorIs(t, err, ErrNoCache)
}
