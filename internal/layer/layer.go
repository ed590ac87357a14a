// Package layer provides forward and backward passes for neural network
// layers.
//
// Every forward function returns its output together with a cache that the
// matching backward function consumes. Nothing is mutated in place: weights
// are read only, gradients come back as new tensors, and batch normalization
// running statistics are returned to the caller rather than written through
// a shared record.
package layer

import "errors"

var (
	// ErrInvalidMode reports a mode other than ModeTrain or ModeTest.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrInvalidParam reports a layer parameter outside its valid range.
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrNoCache reports a backward call without a usable forward cache.
	ErrNoCache = errors.New("missing forward cache")
)
