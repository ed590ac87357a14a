package layer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/goneuron-layers/internal/tensor"
)

// PoolCache holds the pooled input and, for every output element, the flat
// index into X of the value that won its window.
type PoolCache struct {
	X      *tensor.Tensor
	Param  PoolParam
	Argmax []int
}

func poolDims(op string, x *tensor.Tensor, param PoolParam) (hOut, wOut int, err error) {
	if err := param.Validate(); err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	if x.Dims() != 4 {
		return 0, 0, fmt.Errorf("%s: %w: x %v must be rank 4", op, tensor.ErrShape, x.Shape())
	}
	if hOut, err = windowOutputSize(op, x.Dim(2), param.PoolHeight, param.Stride); err != nil {
		return 0, 0, err
	}
	if wOut, err = windowOutputSize(op, x.Dim(3), param.PoolWidth, param.Stride); err != nil {
		return 0, 0, err
	}
	return hOut, wOut, nil
}

// MaxPoolForwardNaive takes the maximum over each (PoolHeight, PoolWidth)
// window of x (N, C, H, W), moving by Stride. Output is (N, C, H', W') with
//
//	H' = 1 + (H - PoolHeight) / stride
//	W' = 1 + (W - PoolWidth) / stride
//
// Both divisions must be exact. On ties the first position in row-major
// window order wins.
func MaxPoolForwardNaive(x *tensor.Tensor, param PoolParam) (*tensor.Tensor, *PoolCache, error) {
	const op = "max pool forward"
	hOut, wOut, err := poolDims(op, x, param)
	if err != nil {
		return nil, nil, err
	}
	n, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	ph, pw, stride := param.PoolHeight, param.PoolWidth, param.Stride

	out := tensor.New(n, c, hOut, wOut)
	argmax := make([]int, out.Len())
	xd, od := x.Data(), out.Data()
	window := make([]float64, ph*pw)

	for plane := 0; plane < n*c; plane++ {
		src := xd[plane*h*w : (plane+1)*h*w]
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				top, left := oh*stride, ow*stride
				gatherWindow(window, src, 1, h, w, top, left, ph, pw)

				// MaxIdx returns the lowest index among equal maxima
				best := floats.MaxIdx(window)
				o := (plane*hOut+oh)*wOut + ow
				od[o] = window[best]
				argmax[o] = plane*h*w + (top+best/pw)*w + left + best%pw
			}
		}
	}

	return out, &PoolCache{X: x, Param: param, Argmax: argmax}, nil
}

// MaxPoolBackwardNaive routes each element of dout (N, C, H', W') to the
// input position that produced it. Positions that won more than one
// overlapping window receive the sum of those gradients.
func MaxPoolBackwardNaive(dout *tensor.Tensor, cache *PoolCache) (*tensor.Tensor, error) {
	const op = "max pool backward"
	if cache == nil || cache.Argmax == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoCache)
	}
	hOut, wOut, err := poolDims(op, cache.X, cache.Param)
	if err != nil {
		return nil, err
	}
	x := cache.X
	want := tensor.Shape{x.Dim(0), x.Dim(1), hOut, wOut}
	if !dout.Shape().Equal(want) || len(cache.Argmax) != dout.Len() {
		return nil, fmt.Errorf("%s: %w: dout %v, want %v", op, tensor.ErrShape, dout.Shape(), want)
	}

	dx := tensor.ZerosLike(x)
	dxd := dx.Data()
	for o, g := range dout.Data() {
		dxd[cache.Argmax[o]] += g
	}
	return dx, nil
}
