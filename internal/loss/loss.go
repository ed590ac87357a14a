// Package loss provides classification losses over score matrices and
// linear classifiers.
package loss

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/goneuron-layers/internal/tensor"
)

// ErrLabel reports a class label outside [0, C).
var ErrLabel = errors.New("label out of range")

// Loss maps class scores and labels to a scalar loss and the gradient of
// that loss with respect to the scores.
type Loss interface {
	// Forward computes the mean loss over the batch and dL/dscores.
	// scores has shape (N, C) and y holds N labels in [0, C).
	Forward(scores *tensor.Tensor, y []int) (float64, *tensor.Tensor, error)
}

// Softmax is the cross-entropy loss of a softmax classifier.
type Softmax struct{}

// Forward computes the softmax loss. See SoftmaxLoss.
func (Softmax) Forward(scores *tensor.Tensor, y []int) (float64, *tensor.Tensor, error) {
	return SoftmaxLoss(scores, y)
}

// SVM is the multiclass hinge loss with a margin of 1.
type SVM struct{}

// Forward computes the hinge loss. See SVMLoss.
func (SVM) Forward(scores *tensor.Tensor, y []int) (float64, *tensor.Tensor, error) {
	return SVMLoss(scores, y)
}

// checkScores validates an (N, C) score matrix against its labels.
func checkScores(op string, x *tensor.Tensor, y []int) (n, c int, err error) {
	if x.Dims() != 2 {
		return 0, 0, fmt.Errorf("%s: %w: scores must be (N, C), got %v", op, tensor.ErrShape, x.Shape())
	}
	n, c = x.Dim(0), x.Dim(1)
	if len(y) != n {
		return 0, 0, fmt.Errorf("%s: %w: %d labels for %d rows", op, tensor.ErrShape, len(y), n)
	}
	for i, label := range y {
		if label < 0 || label >= c {
			return 0, 0, fmt.Errorf("%s: %w: y[%d] = %d, want [0, %d)", op, ErrLabel, i, label, c)
		}
	}
	return n, c, nil
}

// logSoftmax writes the log-probabilities of row into dst.
// The row maximum is subtracted first so exp never overflows.
func logSoftmax(dst, row []float64) {
	maxScore := floats.Max(row)
	var z float64
	for j, s := range row {
		dst[j] = s - maxScore
		z += math.Exp(dst[j])
	}
	floats.AddConst(-math.Log(z), dst)
}

// SoftmaxLoss computes the mean cross-entropy of the softmax of x against
// labels y, and its gradient (probs - onehot(y)) / N.
func SoftmaxLoss(x *tensor.Tensor, y []int) (float64, *tensor.Tensor, error) {
	n, c, err := checkScores("softmax loss", x, y)
	if err != nil {
		return 0, nil, err
	}

	dx := tensor.New(n, c)
	xd, dd := x.Data(), dx.Data()

	var loss float64
	for i := 0; i < n; i++ {
		row := dd[i*c : (i+1)*c]
		logSoftmax(row, xd[i*c:(i+1)*c])
		loss -= row[y[i]]

		// Turn log-probabilities into probabilities, then subtract the one-hot target
		for j := range row {
			row[j] = math.Exp(row[j])
		}
		row[y[i]]--
	}

	invN := 1 / float64(n)
	floats.Scale(invN, dd)
	return loss * invN, dx, nil
}

// SVMLoss computes the multiclass hinge loss
// mean_i sum_{j != y_i} max(0, x_ij - x_iy + 1) and its gradient.
func SVMLoss(x *tensor.Tensor, y []int) (float64, *tensor.Tensor, error) {
	n, c, err := checkScores("svm loss", x, y)
	if err != nil {
		return 0, nil, err
	}

	dx := tensor.New(n, c)
	xd, dd := x.Data(), dx.Data()

	var loss float64
	for i := 0; i < n; i++ {
		row := xd[i*c : (i+1)*c]
		grad := dd[i*c : (i+1)*c]
		correct := row[y[i]]

		positive := 0
		for j, s := range row {
			if j == y[i] {
				continue
			}
			margin := s - correct + 1
			if margin > 0 {
				loss += margin
				grad[j] = 1
				positive++
			}
		}
		grad[y[i]] = -float64(positive)
	}

	invN := 1 / float64(n)
	floats.Scale(invN, dd)
	return loss * invN, dx, nil
}
