// Package testutil provides testing utilities for fluxgraph.
//
// This package is intended for use in tests and benchmarks only. It
// provides a seeded, thread-safe random number generator and helpers
// for building dense feature tensors with known contents.
package testutil

import (
	"math/rand"
	"sync"

	"gorgonia.org/tensor"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0,1).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniform fills vec with uniform values in [0, 1).
func (r *RNG) FillUniform(vec []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range vec {
		vec[i] = r.rand.Float64()
	}
}

// FillGaussian fills vec with standard normal values.
func (r *RNG) FillGaussian(vec []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range vec {
		vec[i] = r.rand.NormFloat64()
	}
}

// RandDense returns a [rows, cols] float64 tensor with uniform values
// in [0, 1).
func (r *RNG) RandDense(rows, cols int) *tensor.Dense {
	backing := make([]float64, rows*cols)
	r.FillUniform(backing)
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
}

// FilledDense returns a [rows, cols] float64 tensor with every element
// set to v.
func FilledDense(rows, cols int, v float64) *tensor.Dense {
	backing := make([]float64, rows*cols)
	for i := range backing {
		backing[i] = v
	}
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
}

// OnesDense returns a [rows, cols] float64 tensor of ones.
func OnesDense(rows, cols int) *tensor.Dense {
	return FilledDense(rows, cols, 1)
}

// RowDense returns a [rows, cols] float64 tensor where every element
// of row i equals float64(i). Handy for verifying gather and reorder
// paths.
func RowDense(rows, cols int) *tensor.Dense {
	backing := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			backing[i*cols+j] = float64(i)
		}
	}
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
}

// VecDense returns a [len(vals)] float64 vector tensor.
func VecDense(vals ...float64) *tensor.Dense {
	backing := append([]float64(nil), vals...)
	return tensor.New(tensor.WithShape(len(backing)), tensor.WithBacking(backing))
}

// MatDense returns a [rows, cols] float64 tensor backed by vals in
// row-major order. It panics when len(vals) != rows*cols; this is a
// test helper and a wrong literal is a bug in the test.
func MatDense(rows, cols int, vals ...float64) *tensor.Dense {
	if len(vals) != rows*cols {
		panic("testutil: MatDense backing length mismatch")
	}
	backing := append([]float64(nil), vals...)
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
}
