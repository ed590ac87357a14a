package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/goneuron-layers/internal/tensor"
)

// AffineReLUCache chains an affine cache and a ReLU cache.
type AffineReLUCache struct {
	Affine *AffineCache
	ReLU   *ActivationCache
}

// AffineReLUForward computes relu(x . w + b).
func AffineReLUForward(x, w, b *tensor.Tensor) (*tensor.Tensor, *AffineReLUCache, error) {
	a, fc, err := AffineForward(x, w, b)
	if err != nil {
		return nil, nil, err
	}
	out, rc := ReLUForward(a)
	return out, &AffineReLUCache{Affine: fc, ReLU: rc}, nil
}

// AffineReLUBackward returns dx, dw and db for AffineReLUForward.
func AffineReLUBackward(dout *tensor.Tensor, cache *AffineReLUCache) (dx, dw, db *tensor.Tensor, err error) {
	if cache == nil {
		return nil, nil, nil, fmt.Errorf("affine-relu backward: %w", ErrNoCache)
	}
	da, err := ReLUBackward(dout, cache.ReLU)
	if err != nil {
		return nil, nil, nil, err
	}
	return AffineBackward(da, cache.Affine)
}

// AffineBatchNormReLUCache chains the affine, batch norm and ReLU caches.
type AffineBatchNormReLUCache struct {
	Affine    *AffineCache
	BatchNorm *BatchNormCache
	ReLU      *ActivationCache
}

// AffineBatchNormReLUForward computes relu(batchnorm(x . w + b)) and returns
// the updated running statistics. In ModeTest the cache has no BatchNorm
// entry and cannot be used for a backward pass.
func AffineBatchNormReLUForward(x, w, b, gamma, beta *tensor.Tensor, param BatchNormParam, stats RunningStats) (*tensor.Tensor, *AffineBatchNormReLUCache, RunningStats, error) {
	a, fc, err := AffineForward(x, w, b)
	if err != nil {
		return nil, nil, RunningStats{}, err
	}
	bn, bc, stats, err := BatchNormForward(a, gamma, beta, param, stats)
	if err != nil {
		return nil, nil, RunningStats{}, err
	}
	out, rc := ReLUForward(bn)
	return out, &AffineBatchNormReLUCache{Affine: fc, BatchNorm: bc, ReLU: rc}, stats, nil
}

// AffineBatchNormReLUBackward returns dx, dw, db, dgamma and dbeta.
func AffineBatchNormReLUBackward(dout *tensor.Tensor, cache *AffineBatchNormReLUCache) (dx, dw, db, dgamma, dbeta *tensor.Tensor, err error) {
	if cache == nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("affine-batchnorm-relu backward: %w", ErrNoCache)
	}
	dbn, err := ReLUBackward(dout, cache.ReLU)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	da, dgamma, dbeta, err := BatchNormBackward(dbn, cache.BatchNorm)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	dx, dw, db, err = AffineBackward(da, cache.Affine)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	return dx, dw, db, dgamma, dbeta, nil
}

// ConvReLUCache chains a convolution cache and a ReLU cache.
type ConvReLUCache struct {
	Conv *ConvCache
	ReLU *ActivationCache
}

// ConvReLUForward computes relu(conv(x, w, b)).
func ConvReLUForward(x, w, b *tensor.Tensor, param ConvParam) (*tensor.Tensor, *ConvReLUCache, error) {
	a, cc, err := ConvForwardNaive(x, w, b, param)
	if err != nil {
		return nil, nil, err
	}
	out, rc := ReLUForward(a)
	return out, &ConvReLUCache{Conv: cc, ReLU: rc}, nil
}

// ConvReLUBackward returns dx, dw and db for ConvReLUForward.
func ConvReLUBackward(dout *tensor.Tensor, cache *ConvReLUCache) (dx, dw, db *tensor.Tensor, err error) {
	if cache == nil {
		return nil, nil, nil, fmt.Errorf("conv-relu backward: %w", ErrNoCache)
	}
	da, err := ReLUBackward(dout, cache.ReLU)
	if err != nil {
		return nil, nil, nil, err
	}
	return ConvBackwardNaive(da, cache.Conv)
}

// ConvReLUPoolCache chains convolution, ReLU and max pooling caches.
type ConvReLUPoolCache struct {
	Conv *ConvCache
	ReLU *ActivationCache
	Pool *PoolCache
}

// ConvReLUPoolForward computes maxpool(relu(conv(x, w, b))).
func ConvReLUPoolForward(x, w, b *tensor.Tensor, conv ConvParam, pool PoolParam) (*tensor.Tensor, *ConvReLUPoolCache, error) {
	a, cc, err := ConvForwardNaive(x, w, b, conv)
	if err != nil {
		return nil, nil, err
	}
	s, rc := ReLUForward(a)
	out, pc, err := MaxPoolForwardNaive(s, pool)
	if err != nil {
		return nil, nil, err
	}
	return out, &ConvReLUPoolCache{Conv: cc, ReLU: rc, Pool: pc}, nil
}

// ConvReLUPoolBackward returns dx, dw and db for ConvReLUPoolForward.
func ConvReLUPoolBackward(dout *tensor.Tensor, cache *ConvReLUPoolCache) (dx, dw, db *tensor.Tensor, err error) {
	if cache == nil {
		return nil, nil, nil, fmt.Errorf("conv-relu-pool backward: %w", ErrNoCache)
	}
	ds, err := MaxPoolBackwardNaive(dout, cache.Pool)
	if err != nil {
		return nil, nil, nil, err
	}
	da, err := ReLUBackward(ds, cache.ReLU)
	if err != nil {
		return nil, nil, nil, err
	}
	return ConvBackwardNaive(da, cache.Conv)
}
