package layer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/goneuron-layers/internal/tensor"
)

// ConvCache holds the inputs of ConvForwardNaive.
type ConvCache struct {
	X     *tensor.Tensor
	W     *tensor.Tensor
	B     *tensor.Tensor
	Param ConvParam
}

// windowOutputSize returns 1 + (in - window)/stride for an input that has
// already been padded, failing unless the windows tile it exactly.
func windowOutputSize(op string, in, window, stride int) (int, error) {
	span := in - window
	if span < 0 || span%stride != 0 {
		return 0, fmt.Errorf("%s: %w: window %d at stride %d does not tile extent %d", op, tensor.ErrShape, window, stride, in)
	}
	return 1 + span/stride, nil
}

// gatherWindow copies the (c, hh, ww) window of one example whose top-left
// corner sits at (top, left) into dst. src holds (C, H, W) planes.
func gatherWindow(dst, src []float64, c, h, w, top, left, hh, ww int) {
	idx := 0
	for ch := 0; ch < c; ch++ {
		plane := ch * h * w
		for kh := 0; kh < hh; kh++ {
			rowStart := plane + (top+kh)*w + left
			copy(dst[idx:idx+ww], src[rowStart:rowStart+ww])
			idx += ww
		}
	}
}

// scatterWindow adds alpha * kernel into the (c, hh, ww) window of dst at
// (top, left). Overlapping windows accumulate.
func scatterWindow(dst, kernel []float64, alpha float64, c, h, w, top, left, hh, ww int) {
	idx := 0
	for ch := 0; ch < c; ch++ {
		plane := ch * h * w
		for kh := 0; kh < hh; kh++ {
			rowStart := plane + (top+kh)*w + left
			floats.AddScaled(dst[rowStart:rowStart+ww], alpha, kernel[idx:idx+ww])
			idx += ww
		}
	}
}

// convDims validates convolution inputs and returns the padded input height
// and width together with the output size.
func convDims(op string, x, w *tensor.Tensor, param ConvParam) (ph, pw, hOut, wOut int, err error) {
	if err := param.Validate(); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	if x.Dims() != 4 || w.Dims() != 4 {
		return 0, 0, 0, 0, fmt.Errorf("%s: %w: x %v and w %v must be rank 4", op, tensor.ErrShape, x.Shape(), w.Shape())
	}
	if x.Dim(1) != w.Dim(1) {
		return 0, 0, 0, 0, fmt.Errorf("%s: %w: x has %d channels, w expects %d", op, tensor.ErrShape, x.Dim(1), w.Dim(1))
	}

	ph = x.Dim(2) + 2*param.Pad
	pw = x.Dim(3) + 2*param.Pad
	if hOut, err = windowOutputSize(op, ph, w.Dim(2), param.Stride); err != nil {
		return 0, 0, 0, 0, err
	}
	if wOut, err = windowOutputSize(op, pw, w.Dim(3), param.Stride); err != nil {
		return 0, 0, 0, 0, err
	}
	return ph, pw, hOut, wOut, nil
}

// ConvForwardNaive convolves x (N, C, H, W) with filters w (F, C, HH, WW)
// and adds b (F). The input is zero-padded by param.Pad on every spatial
// edge and the filters move by param.Stride. Output is (N, F, H', W') with
//
//	H' = 1 + (H + 2*pad - HH) / stride
//	W' = 1 + (W + 2*pad - WW) / stride
//
// Both divisions must be exact.
func ConvForwardNaive(x, w, b *tensor.Tensor, param ConvParam) (*tensor.Tensor, *ConvCache, error) {
	const op = "conv forward"
	ph, pw, hOut, wOut, err := convDims(op, x, w, param)
	if err != nil {
		return nil, nil, err
	}
	n, c := x.Dim(0), x.Dim(1)
	f, hh, ww := w.Dim(0), w.Dim(2), w.Dim(3)
	if b.Dims() != 1 || b.Dim(0) != f {
		return nil, nil, fmt.Errorf("%s: %w: b %v, want (%d)", op, tensor.ErrShape, b.Shape(), f)
	}

	xp, err := tensor.PadSpatial(x, param.Pad)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	out := tensor.New(n, f, hOut, wOut)
	xpd, wd, bd, od := xp.Data(), w.Data(), b.Data(), out.Data()
	stride := param.Stride
	kernelSize := c * hh * ww
	examplePadded := c * ph * pw
	patch := make([]float64, kernelSize)

	for in := 0; in < n; in++ {
		example := xpd[in*examplePadded : (in+1)*examplePadded]
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				gatherWindow(patch, example, c, ph, pw, oh*stride, ow*stride, hh, ww)

				// One dot product per filter over channels and kernel positions
				for fi := 0; fi < f; fi++ {
					kernel := wd[fi*kernelSize : (fi+1)*kernelSize]
					od[((in*f+fi)*hOut+oh)*wOut+ow] = floats.Dot(kernel, patch) + bd[fi]
				}
			}
		}
	}

	return out, &ConvCache{X: x, W: w, B: b, Param: param}, nil
}

// ConvBackwardNaive returns dx (N, C, H, W), dw (F, C, HH, WW) and db (F)
// for upstream gradient dout (N, F, H', W').
//
// Every output position adds w[f] * dout into its receptive field of a
// padded dx; the padding is cropped off at the end so dx has the shape of
// the unpadded input.
func ConvBackwardNaive(dout *tensor.Tensor, cache *ConvCache) (dx, dw, db *tensor.Tensor, err error) {
	const op = "conv backward"
	if cache == nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", op, ErrNoCache)
	}
	x, w, param := cache.X, cache.W, cache.Param
	ph, pw, hOut, wOut, err := convDims(op, x, w, param)
	if err != nil {
		return nil, nil, nil, err
	}
	n, c := x.Dim(0), x.Dim(1)
	f, hh, ww := w.Dim(0), w.Dim(2), w.Dim(3)
	if !dout.Shape().Equal(tensor.Shape{n, f, hOut, wOut}) {
		return nil, nil, nil, fmt.Errorf("%s: %w: dout %v, want (%d, %d, %d, %d)", op, tensor.ErrShape, dout.Shape(), n, f, hOut, wOut)
	}

	xp, err := tensor.PadSpatial(x, param.Pad)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	dxp := tensor.ZerosLike(xp)
	dw = tensor.ZerosLike(w)
	db = tensor.New(f)

	xpd, dxpd, wd, dwd, dbd, gd := xp.Data(), dxp.Data(), w.Data(), dw.Data(), db.Data(), dout.Data()
	stride := param.Stride
	kernelSize := c * hh * ww
	examplePadded := c * ph * pw
	patch := make([]float64, kernelSize)

	for in := 0; in < n; in++ {
		example := xpd[in*examplePadded : (in+1)*examplePadded]
		exampleGrad := dxpd[in*examplePadded : (in+1)*examplePadded]
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				top, left := oh*stride, ow*stride
				gatherWindow(patch, example, c, ph, pw, top, left, hh, ww)

				for fi := 0; fi < f; fi++ {
					g := gd[((in*f+fi)*hOut+oh)*wOut+ow]
					kernel := wd[fi*kernelSize : (fi+1)*kernelSize]

					scatterWindow(exampleGrad, kernel, g, c, ph, pw, top, left, hh, ww)
					floats.AddScaled(dwd[fi*kernelSize:(fi+1)*kernelSize], g, patch)
					dbd[fi] += g
				}
			}
		}
	}

	dx, err = tensor.CropSpatial(dxp, param.Pad)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return dx, dw, db, nil
}
