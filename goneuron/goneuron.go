// Package goneuron exposes the layer primitives, losses and gradient
// checking helpers under a single import.
package goneuron

import (
	"math/rand/v2"

	"github.com/FlavioCFOliveira/goneuron-layers/internal/activations"
	"github.com/FlavioCFOliveira/goneuron-layers/internal/gradcheck"
	"github.com/FlavioCFOliveira/goneuron-layers/internal/layer"
	"github.com/FlavioCFOliveira/goneuron-layers/internal/loss"
	"github.com/FlavioCFOliveira/goneuron-layers/internal/tensor"
)

// Re-export common types for easier access
type (
	Tensor     = tensor.Tensor
	Shape      = tensor.Shape
	Activation = activations.Activation
	Loss       = loss.Loss

	Mode           = layer.Mode
	BatchNormParam = layer.BatchNormParam
	RunningStats   = layer.RunningStats
	DropoutParam   = layer.DropoutParam
	ConvParam      = layer.ConvParam
	PoolParam      = layer.PoolParam

	AffineCache              = layer.AffineCache
	ActivationCache          = layer.ActivationCache
	BatchNormCache           = layer.BatchNormCache
	SpatialBatchNormCache    = layer.SpatialBatchNormCache
	DropoutCache             = layer.DropoutCache
	ConvCache                = layer.ConvCache
	PoolCache                = layer.PoolCache
	AffineReLUCache          = layer.AffineReLUCache
	AffineBatchNormReLUCache = layer.AffineBatchNormReLUCache
	ConvReLUCache            = layer.ConvReLUCache
	ConvReLUPoolCache        = layer.ConvReLUPoolCache
)

const (
	ModeTrain = layer.ModeTrain
	ModeTest  = layer.ModeTest
)

// Errors
var (
	ErrShape        = tensor.ErrShape
	ErrLabel        = loss.ErrLabel
	ErrInvalidMode  = layer.ErrInvalidMode
	ErrInvalidParam = layer.ErrInvalidParam
	ErrNoCache      = layer.ErrNoCache
)

// Tensors
func NewTensor(shape ...int) *Tensor {
	return tensor.New(shape...)
}

func FromSlice(data []float64, shape ...int) (*Tensor, error) {
	return tensor.FromSlice(data, shape...)
}

func NewRNG(seed uint64) *rand.Rand {
	return tensor.NewRNG(seed)
}

func NewSource(seed uint64) rand.Source {
	return layer.NewSource(seed)
}

// Activations
var (
	ReLU    = activations.ReLU{}
	Sigmoid = activations.Sigmoid{}
	Tanh    = activations.Tanh{}
)

func LeakyReLU(alpha float64) Activation {
	return activations.NewLeakyReLU(alpha)
}

// Parameters
func NewBatchNormParam(mode Mode) (BatchNormParam, error) {
	return layer.NewBatchNormParam(mode)
}

func NewRunningStats(d int) RunningStats {
	return layer.NewRunningStats(d)
}

func NewDropoutParam(p float64, mode Mode) (DropoutParam, error) {
	return layer.NewDropoutParam(p, mode)
}

func NewConvParam(stride, pad int) (ConvParam, error) {
	return layer.NewConvParam(stride, pad)
}

func NewPoolParam(height, width, stride int) (PoolParam, error) {
	return layer.NewPoolParam(height, width, stride)
}

// Layers
var (
	AffineForward  = layer.AffineForward
	AffineBackward = layer.AffineBackward

	ReLUForward        = layer.ReLUForward
	ReLUBackward       = layer.ReLUBackward
	ActivationForward  = layer.ActivationForward
	ActivationBackward = layer.ActivationBackward

	BatchNormForward         = layer.BatchNormForward
	BatchNormBackward        = layer.BatchNormBackward
	BatchNormBackwardAlt     = layer.BatchNormBackwardAlt
	SpatialBatchNormForward  = layer.SpatialBatchNormForward
	SpatialBatchNormBackward = layer.SpatialBatchNormBackward

	DropoutForward  = layer.DropoutForward
	DropoutBackward = layer.DropoutBackward

	ConvForwardNaive     = layer.ConvForwardNaive
	ConvBackwardNaive    = layer.ConvBackwardNaive
	MaxPoolForwardNaive  = layer.MaxPoolForwardNaive
	MaxPoolBackwardNaive = layer.MaxPoolBackwardNaive

	AffineReLUForward           = layer.AffineReLUForward
	AffineReLUBackward          = layer.AffineReLUBackward
	AffineBatchNormReLUForward  = layer.AffineBatchNormReLUForward
	AffineBatchNormReLUBackward = layer.AffineBatchNormReLUBackward
	ConvReLUForward             = layer.ConvReLUForward
	ConvReLUBackward            = layer.ConvReLUBackward
	ConvReLUPoolForward         = layer.ConvReLUPoolForward
	ConvReLUPoolBackward        = layer.ConvReLUPoolBackward
)

// Losses
var (
	SoftmaxLoss = loss.SoftmaxLoss
	SVMLoss     = loss.SVMLoss

	SoftmaxLossNaive      = loss.SoftmaxLossNaive
	SoftmaxLossVectorized = loss.SoftmaxLossVectorized
	SVMLossNaive          = loss.SVMLossNaive
	SVMLossVectorized     = loss.SVMLossVectorized
)

// Gradient checking
var (
	NumericalGradient      = gradcheck.NumericalGradient
	NumericalGradientArray = gradcheck.NumericalGradientArray
	RelError               = gradcheck.RelError
)
