package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tensor is a dense row-major float64 array with a fixed shape.
type Tensor struct {
	shape Shape
	data  []float64
}

// New creates a zero-filled tensor with the given shape.
// Panics if a dimension is not positive.
func New(shape ...int) *Tensor {
	s := Shape(shape).Clone()
	if err := s.Validate(); err != nil {
		panic(fmt.Sprintf("tensor.New: %v", err))
	}
	return &Tensor{shape: s, data: make([]float64, s.NumElements())}
}

// FromSlice creates a tensor holding a copy of data.
func FromSlice(data []float64, shape ...int) (*Tensor, error) {
	s := Shape(shape).Clone()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.NumElements() != len(data) {
		return nil, fmt.Errorf("%w: %d values do not fill shape %v", ErrShape, len(data), s)
	}
	d := make([]float64, len(data))
	copy(d, data)
	return &Tensor{shape: s, data: d}, nil
}

// MustFromSlice is like FromSlice but panics on error.
func MustFromSlice(data []float64, shape ...int) *Tensor {
	t, err := FromSlice(data, shape...)
	if err != nil {
		panic(fmt.Sprintf("tensor.MustFromSlice: %v", err))
	}
	return t
}

// ZerosLike creates a zero-filled tensor with the shape of t.
func ZerosLike(t *Tensor) *Tensor {
	return New(t.shape...)
}

// FromDense copies a gonum matrix into a rank-2 tensor.
func FromDense(m *mat.Dense) *Tensor {
	r, c := m.Dims()
	out := New(r, c)
	for i := 0; i < r; i++ {
		copy(out.data[i*c:(i+1)*c], m.RawRowView(i))
	}
	return out
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Dims returns the rank of the tensor.
func (t *Tensor) Dims() int {
	return len(t.shape)
}

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int {
	return t.shape[i]
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Data returns the backing slice in row-major order.
// Writes through it modify the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	d := make([]float64, len(t.data))
	copy(d, t.data)
	return &Tensor{shape: t.shape.Clone(), data: d}
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 {
	return floats.Sum(t.data)
}

// Reshape returns a tensor sharing t's data with a new shape.
// One dimension may be -1, in which case it is inferred.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	s := Shape(shape).Clone()
	infer := -1
	known := 1
	for i, d := range s {
		if d == -1 {
			if infer >= 0 {
				return nil, fmt.Errorf("%w: reshape %v has more than one -1", ErrShape, s)
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known <= 0 || len(t.data)%known != 0 {
			return nil, fmt.Errorf("%w: cannot reshape %v into %v", ErrShape, t.shape, s)
		}
		s[infer] = len(t.data) / known
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.NumElements() != len(t.data) {
		return nil, fmt.Errorf("%w: cannot reshape %v into %v", ErrShape, t.shape, s)
	}
	return &Tensor{shape: s, data: t.data}, nil
}

// offset converts a multi-index into a position in data.
func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: index rank %d does not match tensor rank %d", len(idx), len(t.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for dimension %d of size %d", v, i, t.shape[i]))
		}
		off = off*t.shape[i] + v
	}
	return off
}

// At returns the element at the given multi-index.
func (t *Tensor) At(idx ...int) float64 {
	return t.data[t.offset(idx)]
}

// Set stores v at the given multi-index.
func (t *Tensor) Set(v float64, idx ...int) {
	t.data[t.offset(idx)] = v
}

// Matrix returns a gonum view of t as a (dim0, rest) matrix sharing t's
// data. A rank-1 tensor is viewed as a single row.
func (t *Tensor) Matrix() *mat.Dense {
	if len(t.shape) == 1 {
		return mat.NewDense(1, t.shape[0], t.data)
	}
	return mat.NewDense(t.shape[0], len(t.data)/t.shape[0], t.data)
}
