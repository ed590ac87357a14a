package layer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/goneuron-layers/internal/tensor"
)

// AffineCache holds the inputs of AffineForward.
type AffineCache struct {
	X *tensor.Tensor // Original input, before flattening
	W *tensor.Tensor
	B *tensor.Tensor
}

// AffineForward computes a fully connected layer.
// x: (N, d_1, ..., d_k), flattened to (N, D) with D = d_1 * ... * d_k
// w: (D, M)
// b: (M)
// Returns out (N, M) = x_flat . w + b.
func AffineForward(x, w, b *tensor.Tensor) (*tensor.Tensor, *AffineCache, error) {
	if x.Dims() < 2 || w.Dims() != 2 || b.Dims() != 1 {
		return nil, nil, fmt.Errorf("affine forward: %w: x %v, w %v, b %v", tensor.ErrShape, x.Shape(), w.Shape(), b.Shape())
	}
	n := x.Dim(0)
	d, m := w.Dim(0), w.Dim(1)
	if x.Len() != n*d || b.Dim(0) != m {
		return nil, nil, fmt.Errorf("affine forward: %w: x %v does not flatten to (%d, %d) for w %v, b %v",
			tensor.ErrShape, x.Shape(), n, d, w.Shape(), b.Shape())
	}

	out := mat.NewDense(n, m, nil)
	out.Mul(x.Matrix(), w.Matrix())

	// Add the bias to every row
	bias := b.Data()
	for i := 0; i < n; i++ {
		floats.Add(out.RawRowView(i), bias)
	}

	return tensor.FromDense(out), &AffineCache{X: x, W: w, B: b}, nil
}

// AffineBackward computes the gradients of a fully connected layer.
// dout: (N, M)
// Returns dx with the shape of the cached x, dw (D, M) and db (M).
func AffineBackward(dout *tensor.Tensor, cache *AffineCache) (dx, dw, db *tensor.Tensor, err error) {
	if cache == nil {
		return nil, nil, nil, fmt.Errorf("affine backward: %w", ErrNoCache)
	}
	n := cache.X.Dim(0)
	d, m := cache.W.Dim(0), cache.W.Dim(1)
	if dout.Dims() != 2 || dout.Dim(0) != n || dout.Dim(1) != m {
		return nil, nil, nil, fmt.Errorf("affine backward: %w: dout %v, want (%d, %d)", tensor.ErrShape, dout.Shape(), n, m)
	}

	g := dout.Matrix()

	// dx = dout . w^T, reshaped back to x's shape
	dxm := mat.NewDense(n, d, nil)
	dxm.Mul(g, cache.W.Matrix().T())
	dx, err = tensor.FromDense(dxm).Reshape(cache.X.Shape()...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("affine backward: %w", err)
	}

	// dw = x_flat^T . dout
	dwm := mat.NewDense(d, m, nil)
	dwm.Mul(cache.X.Matrix().T(), g)
	dw = tensor.FromDense(dwm)

	// db = column sums of dout
	db = tensor.New(m)
	for i := 0; i < n; i++ {
		floats.Add(db.Data(), g.RawRowView(i))
	}

	return dx, dw, db, nil
}
