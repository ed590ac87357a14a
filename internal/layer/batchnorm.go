package layer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/FlavioCFOliveira/goneuron-layers/internal/tensor"
)

// BatchNormCache holds the intermediates of a training-mode BatchNormForward.
type BatchNormCache struct {
	XHat    *tensor.Tensor // (N, D) normalized input
	Gamma   []float64
	XMu     *tensor.Tensor // (N, D) input minus batch mean
	IVar    []float64      // 1 / sqrt(var + eps)
	SqrtVar []float64      // sqrt(var + eps)
	Var     []float64      // Biased batch variance
	Eps     float64
}

func checkBatchNorm(op string, x, gamma, beta *tensor.Tensor) (n, d int, err error) {
	if x.Dims() != 2 {
		return 0, 0, fmt.Errorf("%s: %w: x must be (N, D), got %v", op, tensor.ErrShape, x.Shape())
	}
	n, d = x.Dim(0), x.Dim(1)
	if gamma.Dims() != 1 || gamma.Dim(0) != d || beta.Dims() != 1 || beta.Dim(0) != d {
		return 0, 0, fmt.Errorf("%s: %w: gamma %v and beta %v must be (%d)", op, tensor.ErrShape, gamma.Shape(), beta.Shape(), d)
	}
	return n, d, nil
}

// BatchNormForward normalizes each feature of x (N, D).
//
// In ModeTrain the batch mean and biased variance normalize x, and the
// returned running statistics are
//
//	running = momentum * running + (1 - momentum) * batch
//
// In ModeTest the running statistics normalize x, are returned unchanged,
// and no cache is produced. Empty stats are treated as zeros.
func BatchNormForward(x, gamma, beta *tensor.Tensor, param BatchNormParam, stats RunningStats) (*tensor.Tensor, *BatchNormCache, RunningStats, error) {
	const op = "batchnorm forward"
	if err := param.Validate(); err != nil {
		return nil, nil, RunningStats{}, fmt.Errorf("%s: %w", op, err)
	}
	n, d, err := checkBatchNorm(op, x, gamma, beta)
	if err != nil {
		return nil, nil, RunningStats{}, err
	}
	running, err := stats.resolve(d)
	if err != nil {
		return nil, nil, RunningStats{}, fmt.Errorf("%s: %w", op, err)
	}

	xd, g, b := x.Data(), gamma.Data(), beta.Data()
	out := tensor.New(n, d)
	od := out.Data()

	if param.Mode == ModeTest {
		for j := 0; j < d; j++ {
			scale := g[j] / math.Sqrt(running.Var[j]+param.Eps)
			for i := 0; i < n; i++ {
				od[i*d+j] = (xd[i*d+j]-running.Mean[j])*scale + b[j]
			}
		}
		return out, nil, running, nil
	}

	// Per-feature batch statistics
	mean := make([]float64, d)
	variance := make([]float64, d)
	col := make([]float64, n)
	xm := x.Matrix()
	for j := 0; j < d; j++ {
		mat.Col(col, j, xm)
		mean[j], variance[j] = stat.PopMeanVariance(col, nil)
	}

	sqrtVar := make([]float64, d)
	iVar := make([]float64, d)
	for j := range variance {
		sqrtVar[j] = math.Sqrt(variance[j] + param.Eps)
		iVar[j] = 1 / sqrtVar[j]
	}

	xmu := tensor.New(n, d)
	xhat := tensor.New(n, d)
	xmud, xhd := xmu.Data(), xhat.Data()
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			idx := i*d + j
			xmud[idx] = xd[idx] - mean[j]
			xhd[idx] = xmud[idx] * iVar[j]
			od[idx] = g[j]*xhd[idx] + b[j]
		}
	}

	m := param.Momentum
	for j := 0; j < d; j++ {
		running.Mean[j] = m*running.Mean[j] + (1-m)*mean[j]
		running.Var[j] = m*running.Var[j] + (1-m)*variance[j]
	}

	gammaCopy := make([]float64, d)
	copy(gammaCopy, g)
	cache := &BatchNormCache{
		XHat:    xhat,
		Gamma:   gammaCopy,
		XMu:     xmu,
		IVar:    iVar,
		SqrtVar: sqrtVar,
		Var:     variance,
		Eps:     param.Eps,
	}
	return out, cache, running, nil
}

func checkBatchNormCache(op string, dout *tensor.Tensor, cache *BatchNormCache) (n, d int, err error) {
	if cache == nil {
		return 0, 0, fmt.Errorf("%s: %w (forward ran in test mode?)", op, ErrNoCache)
	}
	n, d = cache.XHat.Dim(0), cache.XHat.Dim(1)
	if dout.Dims() != 2 || dout.Dim(0) != n || dout.Dim(1) != d {
		return 0, 0, fmt.Errorf("%s: %w: dout %v, want (%d, %d)", op, tensor.ErrShape, dout.Shape(), n, d)
	}
	return n, d, nil
}

// columnSums returns the per-feature sums of an (n, d) row-major slice.
func columnSums(data []float64, n, d int) []float64 {
	sums := make([]float64, d)
	for i := 0; i < n; i++ {
		floats.Add(sums, data[i*d:(i+1)*d])
	}
	return sums
}

// BatchNormBackward walks the normalization graph backwards one node at a
// time: shift, scale, inverse std, sqrt, variance, square, mean, centering.
// Returns dx (N, D), dgamma (D) and dbeta (D).
func BatchNormBackward(dout *tensor.Tensor, cache *BatchNormCache) (dx, dgamma, dbeta *tensor.Tensor, err error) {
	n, d, err := checkBatchNormCache("batchnorm backward", dout, cache)
	if err != nil {
		return nil, nil, nil, err
	}
	gd, xhd, xmud := dout.Data(), cache.XHat.Data(), cache.XMu.Data()
	size := n * d
	invN := 1 / float64(n)

	// out = gammax + beta
	dbetaData := columnSums(gd, n, d)

	// gammax = gamma * xhat
	dgammaData := columnSums(floats.MulTo(make([]float64, size), gd, xhd), n, d)
	dxhat := make([]float64, size)
	for i := 0; i < n; i++ {
		floats.MulTo(dxhat[i*d:(i+1)*d], gd[i*d:(i+1)*d], cache.Gamma)
	}

	// xhat = xmu * ivar
	divar := columnSums(floats.MulTo(make([]float64, size), dxhat, xmud), n, d)
	dxmu1 := make([]float64, size)
	for i := 0; i < n; i++ {
		floats.MulTo(dxmu1[i*d:(i+1)*d], dxhat[i*d:(i+1)*d], cache.IVar)
	}

	// ivar = 1 / sqrtvar, sqrtvar = sqrt(var + eps), var = mean(sq)
	dsq := make([]float64, d)
	for j := 0; j < d; j++ {
		dsqrtvar := -1 / (cache.SqrtVar[j] * cache.SqrtVar[j]) * divar[j]
		dvar := 0.5 / math.Sqrt(cache.Var[j]+cache.Eps) * dsqrtvar
		dsq[j] = invN * dvar
	}

	// sq = xmu^2, then both paths into xmu meet
	dx1 := make([]float64, size)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			idx := i*d + j
			dx1[idx] = dxmu1[idx] + 2*xmud[idx]*dsq[j]
		}
	}

	// xmu = x - mu, mu = mean(x)
	dmu := columnSums(dx1, n, d)
	floats.Scale(-1, dmu)
	for i := 0; i < n; i++ {
		floats.AddScaled(dx1[i*d:(i+1)*d], invN, dmu)
	}

	dx = tensor.MustFromSlice(dx1, n, d)
	dgamma = tensor.MustFromSlice(dgammaData, d)
	dbeta = tensor.MustFromSlice(dbetaData, d)
	return dx, dgamma, dbeta, nil
}

// BatchNormBackwardAlt computes the same gradients as BatchNormBackward from
// the simplified closed form
//
//	dx = gamma * ivar / N * (N * dout - sum(dout) - xhat * sum(dout * xhat))
//
// where the sums run over the batch. Only XHat, Gamma and IVar of the cache
// are used.
func BatchNormBackwardAlt(dout *tensor.Tensor, cache *BatchNormCache) (dx, dgamma, dbeta *tensor.Tensor, err error) {
	n, d, err := checkBatchNormCache("batchnorm backward alt", dout, cache)
	if err != nil {
		return nil, nil, nil, err
	}
	gd, xhd := dout.Data(), cache.XHat.Data()

	dbetaData := columnSums(gd, n, d)
	dgammaData := columnSums(floats.MulTo(make([]float64, n*d), gd, xhd), n, d)

	fn := float64(n)
	dxData := make([]float64, n*d)
	for j := 0; j < d; j++ {
		k := cache.Gamma[j] * cache.IVar[j] / fn
		for i := 0; i < n; i++ {
			idx := i*d + j
			dxData[idx] = k * (fn*gd[idx] - dbetaData[j] - xhd[idx]*dgammaData[j])
		}
	}

	dx = tensor.MustFromSlice(dxData, n, d)
	dgamma = tensor.MustFromSlice(dgammaData, d)
	dbeta = tensor.MustFromSlice(dbetaData, d)
	return dx, dgamma, dbeta, nil
}

// SpatialBatchNormCache holds the vanilla cache and the original layout.
type SpatialBatchNormCache struct {
	BN    *BatchNormCache
	Shape tensor.Shape // (N, C, H, W)
}

// toChannelRows reorders (N, C, H, W) into (N*H*W, C) so every spatial
// location of every example is a row.
func toChannelRows(x *tensor.Tensor) (*tensor.Tensor, error) {
	nhwc, err := x.Permute(0, 2, 3, 1)
	if err != nil {
		return nil, err
	}
	return nhwc.Reshape(-1, x.Dim(1))
}

// fromChannelRows undoes toChannelRows for the given (N, C, H, W) shape.
func fromChannelRows(rows *tensor.Tensor, shape tensor.Shape) (*tensor.Tensor, error) {
	nhwc, err := rows.Reshape(shape[0], shape[2], shape[3], shape[1])
	if err != nil {
		return nil, err
	}
	return nhwc.Permute(0, 3, 1, 2)
}

// SpatialBatchNormForward normalizes each channel of x (N, C, H, W) over the
// batch and both spatial axes, treating every location as a sample.
// gamma and beta have shape (C).
func SpatialBatchNormForward(x, gamma, beta *tensor.Tensor, param BatchNormParam, stats RunningStats) (*tensor.Tensor, *SpatialBatchNormCache, RunningStats, error) {
	const op = "spatial batchnorm forward"
	if x.Dims() != 4 {
		return nil, nil, RunningStats{}, fmt.Errorf("%s: %w: x must be (N, C, H, W), got %v", op, tensor.ErrShape, x.Shape())
	}
	rows, err := toChannelRows(x)
	if err != nil {
		return nil, nil, RunningStats{}, fmt.Errorf("%s: %w", op, err)
	}

	out, cache, stats, err := BatchNormForward(rows, gamma, beta, param, stats)
	if err != nil {
		return nil, nil, RunningStats{}, fmt.Errorf("%s: %w", op, err)
	}

	shape := x.Shape()
	out, err = fromChannelRows(out, shape)
	if err != nil {
		return nil, nil, RunningStats{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, &SpatialBatchNormCache{BN: cache, Shape: shape}, stats, nil
}

// SpatialBatchNormBackward returns dx (N, C, H, W), dgamma (C) and dbeta (C).
func SpatialBatchNormBackward(dout *tensor.Tensor, cache *SpatialBatchNormCache) (dx, dgamma, dbeta *tensor.Tensor, err error) {
	const op = "spatial batchnorm backward"
	if cache == nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", op, ErrNoCache)
	}
	if !dout.Shape().Equal(cache.Shape) {
		return nil, nil, nil, fmt.Errorf("%s: %w: dout %v, want %v", op, tensor.ErrShape, dout.Shape(), cache.Shape)
	}

	rows, err := toChannelRows(dout)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	dxRows, dgamma, dbeta, err := BatchNormBackward(rows, cache.BN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	dx, err = fromChannelRows(dxRows, cache.Shape)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return dx, dgamma, dbeta, nil
}
