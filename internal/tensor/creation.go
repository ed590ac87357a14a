package tensor

import "math/rand/v2"

// NewRNG returns a deterministic generator for the given seed.
func NewRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Randn fills a new tensor with standard normal samples.
func Randn(rng *rand.Rand, shape ...int) *Tensor {
	t := New(shape...)
	for i := range t.data {
		t.data[i] = rng.NormFloat64()
	}
	return t
}

// Linspace fills a new tensor with evenly spaced values from lo to hi
// inclusive, in row-major order.
func Linspace(lo, hi float64, shape ...int) *Tensor {
	t := New(shape...)
	n := len(t.data)
	if n == 1 {
		t.data[0] = lo
		return t
	}
	step := (hi - lo) / float64(n-1)
	for i := range t.data {
		t.data[i] = lo + float64(i)*step
	}
	return t
}
