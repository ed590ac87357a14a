package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/goneuron-layers/internal/activations"
	"github.com/FlavioCFOliveira/goneuron-layers/internal/tensor"
)

// ActivationCache holds the pre-activation input and the function applied.
type ActivationCache struct {
	X   *tensor.Tensor
	Act activations.Activation
}

func activate(x *tensor.Tensor, act activations.Activation) (*tensor.Tensor, *ActivationCache) {
	out := tensor.ZerosLike(x)
	activations.Apply(act, out.Data(), x.Data())
	return out, &ActivationCache{X: x, Act: act}
}

// ActivationForward applies act elementwise to x of any shape.
func ActivationForward(x *tensor.Tensor, act activations.Activation) (*tensor.Tensor, *ActivationCache, error) {
	if act == nil {
		return nil, nil, fmt.Errorf("activation forward: %w: nil activation", ErrInvalidParam)
	}
	out, cache := activate(x, act)
	return out, cache, nil
}

// ActivationBackward returns dout * act'(x) for the cached input x.
func ActivationBackward(dout *tensor.Tensor, cache *ActivationCache) (*tensor.Tensor, error) {
	if cache == nil || cache.Act == nil {
		return nil, fmt.Errorf("activation backward: %w", ErrNoCache)
	}
	if !dout.Shape().Equal(cache.X.Shape()) {
		return nil, fmt.Errorf("activation backward: %w: dout %v, x %v", tensor.ErrShape, dout.Shape(), cache.X.Shape())
	}
	dx := tensor.ZerosLike(dout)
	activations.Backprop(cache.Act, dx.Data(), dout.Data(), cache.X.Data())
	return dx, nil
}

// ReLUForward computes max(0, x) elementwise.
func ReLUForward(x *tensor.Tensor) (*tensor.Tensor, *ActivationCache) {
	return activate(x, activations.ReLU{})
}

// ReLUBackward passes dout through where the cached input was > 0 and
// blocks it elsewhere, including inputs of exactly 0.
func ReLUBackward(dout *tensor.Tensor, cache *ActivationCache) (*tensor.Tensor, error) {
	return ActivationBackward(dout, cache)
}
