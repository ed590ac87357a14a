// Package tensor provides the dense float64 tensors consumed by the layer
// and loss functions.
package tensor

import (
	"errors"
	"fmt"
)

// ErrShape reports tensors whose shapes do not fit the operation.
var ErrShape = errors.New("shape mismatch")

// Shape holds the dimensions of a tensor, outermost first.
type Shape []int

// NumElements returns the number of elements a tensor of this shape holds.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate checks that every dimension is positive.
func (s Shape) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: empty shape", ErrShape)
	}
	for i, d := range s {
		if d <= 0 {
			return fmt.Errorf("%w: dimension %d is %d (must be > 0)", ErrShape, i, d)
		}
	}
	return nil
}

// Equal reports whether two shapes have the same dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	c := make(Shape, len(s))
	copy(c, s)
	return c
}

// Strides returns row-major strides: stride[i] is the product of all
// dimensions after i.
func (s Shape) Strides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}
	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}
