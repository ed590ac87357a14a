package layer

import (
	"fmt"
	"math"
)

// Mode selects training or inference behavior for batch normalization and
// dropout.
type Mode string

const (
	ModeTrain Mode = "train"
	ModeTest  Mode = "test"
)

// Validate fails with ErrInvalidMode unless m is ModeTrain or ModeTest.
func (m Mode) Validate() error {
	switch m {
	case ModeTrain, ModeTest:
		return nil
	default:
		return fmt.Errorf("%w %q (want %q or %q)", ErrInvalidMode, string(m), ModeTrain, ModeTest)
	}
}

// Batch normalization defaults.
const (
	DefaultEps      = 1e-5
	DefaultMomentum = 0.9
)

// BatchNormParam configures batch normalization.
type BatchNormParam struct {
	Mode     Mode
	Eps      float64 // Added to the variance before the square root. Default 1e-5.
	Momentum float64 // Decay of the running statistics. Default 0.9.
}

// NewBatchNormParam returns a validated configuration with default Eps and
// Momentum.
func NewBatchNormParam(mode Mode) (BatchNormParam, error) {
	p := BatchNormParam{Mode: mode, Eps: DefaultEps, Momentum: DefaultMomentum}
	return p, p.Validate()
}

// Validate checks the mode, a positive Eps and a Momentum in [0, 1].
func (p BatchNormParam) Validate() error {
	if err := p.Mode.Validate(); err != nil {
		return err
	}
	if !(p.Eps > 0) {
		return fmt.Errorf("%w: eps %v must be > 0", ErrInvalidParam, p.Eps)
	}
	if !(p.Momentum >= 0 && p.Momentum <= 1) {
		return fmt.Errorf("%w: momentum %v must be in [0, 1]", ErrInvalidParam, p.Momentum)
	}
	return nil
}

// RunningStats holds the exponentially averaged per-feature mean and
// variance used by batch normalization at test time.
type RunningStats struct {
	Mean []float64
	Var  []float64
}

// NewRunningStats returns zeroed statistics for d features.
func NewRunningStats(d int) RunningStats {
	return RunningStats{Mean: make([]float64, d), Var: make([]float64, d)}
}

// Clone returns a deep copy.
func (s RunningStats) Clone() RunningStats {
	c := RunningStats{Mean: make([]float64, len(s.Mean)), Var: make([]float64, len(s.Var))}
	copy(c.Mean, s.Mean)
	copy(c.Var, s.Var)
	return c
}

// resolve returns s, or zeroed statistics when s is empty, after checking
// it has d features.
func (s RunningStats) resolve(d int) (RunningStats, error) {
	if len(s.Mean) == 0 && len(s.Var) == 0 {
		return NewRunningStats(d), nil
	}
	if len(s.Mean) != d || len(s.Var) != d {
		return RunningStats{}, fmt.Errorf("%w: running stats have %d/%d features, want %d", ErrInvalidParam, len(s.Mean), len(s.Var), d)
	}
	return s.Clone(), nil
}

// DropoutParam configures inverted dropout.
type DropoutParam struct {
	P    float64 // Probability of keeping a unit, in (0, 1].
	Mode Mode
}

// NewDropoutParam returns a validated dropout configuration.
func NewDropoutParam(p float64, mode Mode) (DropoutParam, error) {
	d := DropoutParam{P: p, Mode: mode}
	return d, d.Validate()
}

// Validate checks the mode and that P is in (0, 1].
func (p DropoutParam) Validate() error {
	if err := p.Mode.Validate(); err != nil {
		return err
	}
	if !(p.P > 0 && p.P <= 1) || math.IsNaN(p.P) {
		return fmt.Errorf("%w: keep probability %v must be in (0, 1]", ErrInvalidParam, p.P)
	}
	return nil
}

// ConvParam configures a convolution.
type ConvParam struct {
	Stride int // Pixels between adjacent receptive fields. Default 1.
	Pad    int // Zero padding on each spatial edge. Default 0.
}

// NewConvParam returns a validated convolution configuration.
func NewConvParam(stride, pad int) (ConvParam, error) {
	p := ConvParam{Stride: stride, Pad: pad}
	return p, p.Validate()
}

// DefaultConvParam is stride 1 without padding.
func DefaultConvParam() ConvParam {
	return ConvParam{Stride: 1, Pad: 0}
}

// Validate checks a positive stride and non-negative padding.
func (p ConvParam) Validate() error {
	if p.Stride <= 0 {
		return fmt.Errorf("%w: stride %d must be > 0", ErrInvalidParam, p.Stride)
	}
	if p.Pad < 0 {
		return fmt.Errorf("%w: pad %d must be >= 0", ErrInvalidParam, p.Pad)
	}
	return nil
}

// PoolParam configures max pooling.
type PoolParam struct {
	PoolHeight int
	PoolWidth  int
	Stride     int
}

// NewPoolParam returns a validated pooling configuration.
func NewPoolParam(height, width, stride int) (PoolParam, error) {
	p := PoolParam{PoolHeight: height, PoolWidth: width, Stride: stride}
	return p, p.Validate()
}

// Validate checks that every field is positive.
func (p PoolParam) Validate() error {
	if p.PoolHeight <= 0 || p.PoolWidth <= 0 {
		return fmt.Errorf("%w: pool size %dx%d must be positive", ErrInvalidParam, p.PoolHeight, p.PoolWidth)
	}
	if p.Stride <= 0 {
		return fmt.Errorf("%w: stride %d must be > 0", ErrInvalidParam, p.Stride)
	}
	return nil
}
