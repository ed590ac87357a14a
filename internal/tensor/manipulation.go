package tensor

import "fmt"

// Permute returns a copy of t with its axes reordered: dimension i of the
// result is dimension axes[i] of t.
func (t *Tensor) Permute(axes ...int) (*Tensor, error) {
	n := len(t.shape)
	if len(axes) != n {
		return nil, fmt.Errorf("%w: permute axes %v for rank-%d tensor", ErrShape, axes, n)
	}
	seen := make([]bool, n)
	for _, ax := range axes {
		if ax < 0 || ax >= n || seen[ax] {
			return nil, fmt.Errorf("%w: permute axes %v are not a permutation of 0..%d", ErrShape, axes, n-1)
		}
		seen[ax] = true
	}

	newShape := make([]int, n)
	srcStrides := t.shape.Strides()
	strides := make([]int, n)
	for i, ax := range axes {
		newShape[i] = t.shape[ax]
		strides[i] = srcStrides[ax]
	}

	out := New(newShape...)
	idx := make([]int, n)
	for o := range out.data {
		src := 0
		for i, v := range idx {
			src += v * strides[i]
		}
		out.data[o] = t.data[src]

		// Advance the output multi-index, last axis fastest
		for i := n - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < newShape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}

// PadSpatial zero-pads the last two axes of a rank-4 (N, C, H, W) tensor by
// pad on each side.
func PadSpatial(x *Tensor, pad int) (*Tensor, error) {
	if x.Dims() != 4 {
		return nil, fmt.Errorf("%w: pad expects a rank-4 tensor, got %v", ErrShape, x.shape)
	}
	if pad < 0 {
		return nil, fmt.Errorf("%w: negative padding %d", ErrShape, pad)
	}
	if pad == 0 {
		return x.Clone(), nil
	}

	n, c, h, w := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	ph, pw := h+2*pad, w+2*pad
	out := New(n, c, ph, pw)
	for plane := 0; plane < n*c; plane++ {
		src := x.data[plane*h*w : (plane+1)*h*w]
		dst := out.data[plane*ph*pw : (plane+1)*ph*pw]
		for row := 0; row < h; row++ {
			start := (row+pad)*pw + pad
			copy(dst[start:start+w], src[row*w:(row+1)*w])
		}
	}
	return out, nil
}

// CropSpatial removes pad rows and columns from each side of the last two
// axes of a rank-4 tensor. It is the inverse of PadSpatial.
func CropSpatial(x *Tensor, pad int) (*Tensor, error) {
	if x.Dims() != 4 {
		return nil, fmt.Errorf("%w: crop expects a rank-4 tensor, got %v", ErrShape, x.shape)
	}
	if pad < 0 {
		return nil, fmt.Errorf("%w: negative padding %d", ErrShape, pad)
	}
	if pad == 0 {
		return x.Clone(), nil
	}

	n, c, ph, pw := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	h, w := ph-2*pad, pw-2*pad
	if h <= 0 || w <= 0 {
		return nil, fmt.Errorf("%w: cannot crop %d from %v", ErrShape, pad, x.shape)
	}
	out := New(n, c, h, w)
	for plane := 0; plane < n*c; plane++ {
		src := x.data[plane*ph*pw : (plane+1)*ph*pw]
		dst := out.data[plane*h*w : (plane+1)*h*w]
		for row := 0; row < h; row++ {
			start := (row+pad)*pw + pad
			copy(dst[row*w:(row+1)*w], src[start:start+w])
		}
	}
	return out, nil
}
