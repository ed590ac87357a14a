package loss

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/goneuron-layers/internal/tensor"
)

// LinearLossFunc computes the regularized loss of a linear classifier with
// weights W (D, C) on data X (N, D) and its gradient with respect to W.
type LinearLossFunc func(w, x *tensor.Tensor, y []int, reg float64) (float64, *tensor.Tensor, error)

var (
	_ LinearLossFunc = SoftmaxLossNaive
	_ LinearLossFunc = SoftmaxLossVectorized
	_ LinearLossFunc = SVMLossNaive
	_ LinearLossFunc = SVMLossVectorized
)

// checkLinear validates the shapes of a linear classifier problem.
func checkLinear(op string, w, x *tensor.Tensor, y []int) (n, d, c int, err error) {
	if w.Dims() != 2 || x.Dims() != 2 {
		return 0, 0, 0, fmt.Errorf("%s: %w: W %v and X %v must both be rank 2", op, tensor.ErrShape, w.Shape(), x.Shape())
	}
	n, d, c = x.Dim(0), x.Dim(1), w.Dim(1)
	if w.Dim(0) != d {
		return 0, 0, 0, fmt.Errorf("%s: %w: X %v cannot multiply W %v", op, tensor.ErrShape, x.Shape(), w.Shape())
	}
	if len(y) != n {
		return 0, 0, 0, fmt.Errorf("%s: %w: %d labels for %d rows", op, tensor.ErrShape, len(y), n)
	}
	for i, label := range y {
		if label < 0 || label >= c {
			return 0, 0, 0, fmt.Errorf("%s: %w: y[%d] = %d, want [0, %d)", op, ErrLabel, i, label, c)
		}
	}
	return n, d, c, nil
}

// regularize adds reg * sum(W*W) to the loss and 2 * reg * W to the gradient.
func regularize(loss float64, dW []float64, w []float64, reg float64) float64 {
	floats.AddScaled(dW, 2*reg, w)
	return loss + reg*floats.Dot(w, w)
}

// SoftmaxLossNaive computes the softmax classifier loss and gradient with
// explicit loops over examples and classes.
func SoftmaxLossNaive(w, x *tensor.Tensor, y []int, reg float64) (float64, *tensor.Tensor, error) {
	n, d, c, err := checkLinear("softmax loss naive", w, x, y)
	if err != nil {
		return 0, nil, err
	}

	dW := tensor.New(d, c)
	wd, xd, gd := w.Data(), x.Data(), dW.Data()
	scores := make([]float64, c)
	probs := make([]float64, c)

	var loss float64
	for i := 0; i < n; i++ {
		xi := xd[i*d : (i+1)*d]

		// scores = x_i . W
		for j := 0; j < c; j++ {
			var s float64
			for k := 0; k < d; k++ {
				s += xi[k] * wd[k*c+j]
			}
			scores[j] = s
		}

		maxScore := floats.Max(scores)
		var sum float64
		for j, s := range scores {
			probs[j] = math.Exp(s - maxScore)
			sum += probs[j]
		}
		for j := range probs {
			probs[j] /= sum
		}
		loss -= math.Log(probs[y[i]])

		// dW[:, j] += (p_j - [j == y_i]) * x_i
		for j := 0; j < c; j++ {
			coef := probs[j]
			if j == y[i] {
				coef--
			}
			for k := 0; k < d; k++ {
				gd[k*c+j] += coef * xi[k]
			}
		}
	}

	invN := 1 / float64(n)
	floats.Scale(invN, gd)
	return regularize(loss*invN, gd, wd, reg), dW, nil
}

// SVMLossNaive computes the multiclass SVM classifier loss and gradient with
// explicit loops over examples and classes.
func SVMLossNaive(w, x *tensor.Tensor, y []int, reg float64) (float64, *tensor.Tensor, error) {
	n, d, c, err := checkLinear("svm loss naive", w, x, y)
	if err != nil {
		return 0, nil, err
	}

	dW := tensor.New(d, c)
	wd, xd, gd := w.Data(), x.Data(), dW.Data()
	scores := make([]float64, c)

	var loss float64
	for i := 0; i < n; i++ {
		xi := xd[i*d : (i+1)*d]
		for j := 0; j < c; j++ {
			var s float64
			for k := 0; k < d; k++ {
				s += xi[k] * wd[k*c+j]
			}
			scores[j] = s
		}

		correct := scores[y[i]]
		for j := 0; j < c; j++ {
			if j == y[i] {
				continue
			}
			margin := scores[j] - correct + 1
			if margin <= 0 {
				continue
			}
			loss += margin
			for k := 0; k < d; k++ {
				gd[k*c+j] += xi[k]
				gd[k*c+y[i]] -= xi[k]
			}
		}
	}

	invN := 1 / float64(n)
	floats.Scale(invN, gd)
	return regularize(loss*invN, gd, wd, reg), dW, nil
}

// linearVectorized scores X with W as one matrix product, applies the score
// loss, and maps the score gradient back onto W.
func linearVectorized(op string, l Loss, w, x *tensor.Tensor, y []int, reg float64) (float64, *tensor.Tensor, error) {
	n, d, c, err := checkLinear(op, w, x, y)
	if err != nil {
		return 0, nil, err
	}

	xm := x.Matrix()
	scores := mat.NewDense(n, c, nil)
	scores.Mul(xm, w.Matrix())

	loss, dScores, err := l.Forward(tensor.FromDense(scores), y)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}

	// dW = X^T . dscores; the score gradient already carries the 1/N
	dW := mat.NewDense(d, c, nil)
	dW.Mul(xm.T(), dScores.Matrix())

	grad := tensor.FromDense(dW)
	return regularize(loss, grad.Data(), w.Data(), reg), grad, nil
}

// SoftmaxLossVectorized computes the same result as SoftmaxLossNaive with
// matrix products.
func SoftmaxLossVectorized(w, x *tensor.Tensor, y []int, reg float64) (float64, *tensor.Tensor, error) {
	return linearVectorized("softmax loss vectorized", Softmax{}, w, x, y, reg)
}

// SVMLossVectorized computes the same result as SVMLossNaive with matrix
// products.
func SVMLossVectorized(w, x *tensor.Tensor, y []int, reg float64) (float64, *tensor.Tensor, error) {
	return linearVectorized("svm loss vectorized", SVM{}, w, x, y, reg)
}
