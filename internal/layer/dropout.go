package layer

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/FlavioCFOliveira/goneuron-layers/internal/tensor"
)

// NewSource returns a deterministic random source for dropout masks.
// The same seed always yields the same masks.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x5851f42d4c957f2d)
}

// DropoutCache holds the configuration and, in train mode, the scaled mask.
type DropoutCache struct {
	Param DropoutParam
	Mask  *tensor.Tensor // nil in test mode
}

// DropoutForward performs inverted dropout on x of any shape.
// In ModeTrain each unit is kept with probability param.P, drawn from src,
// and kept units are scaled by 1/P so the expected activation is unchanged.
// In ModeTest x passes through and src may be nil.
func DropoutForward(x *tensor.Tensor, param DropoutParam, src rand.Source) (*tensor.Tensor, *DropoutCache, error) {
	if err := param.Validate(); err != nil {
		return nil, nil, fmt.Errorf("dropout forward: %w", err)
	}
	if param.Mode == ModeTest {
		return x.Clone(), &DropoutCache{Param: param}, nil
	}
	if src == nil {
		return nil, nil, fmt.Errorf("dropout forward: %w: train mode needs a random source", ErrInvalidParam)
	}

	keep := distuv.Bernoulli{P: param.P, Src: src}
	scale := 1 / param.P

	mask := tensor.ZerosLike(x)
	md := mask.Data()
	for i := range md {
		md[i] = keep.Rand() * scale
	}

	out := tensor.ZerosLike(x)
	floats.MulTo(out.Data(), x.Data(), md)
	return out, &DropoutCache{Param: param, Mask: mask}, nil
}

// DropoutBackward multiplies dout by the cached mask in train mode and
// passes it through in test mode.
func DropoutBackward(dout *tensor.Tensor, cache *DropoutCache) (*tensor.Tensor, error) {
	if cache == nil {
		return nil, fmt.Errorf("dropout backward: %w", ErrNoCache)
	}
	switch cache.Param.Mode {
	case ModeTest:
		return dout.Clone(), nil
	case ModeTrain:
		if cache.Mask == nil {
			return nil, fmt.Errorf("dropout backward: %w: train mode cache has no mask", ErrNoCache)
		}
		if !dout.Shape().Equal(cache.Mask.Shape()) {
			return nil, fmt.Errorf("dropout backward: %w: dout %v, mask %v", tensor.ErrShape, dout.Shape(), cache.Mask.Shape())
		}
		dx := tensor.ZerosLike(dout)
		floats.MulTo(dx.Data(), dout.Data(), cache.Mask.Data())
		return dx, nil
	default:
		return nil, fmt.Errorf("dropout backward: %w", cache.Param.Mode.Validate())
	}
}
