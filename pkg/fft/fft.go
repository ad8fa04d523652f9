// Package fft defines the discrete Fourier transform backend used by the
// correlators. Several third-party FFT libraries are wrapped under
// implementations/ and are interchangeable.
package fft

import (
	"fmt"
)

// Backend computes complex DFTs.
//
// Forward computes X[k] = sum_n x[n]*exp(-2*pi*i*k*n/N).
// Inverse computes x[n] = (1/N) * sum_k X[k]*exp(2*pi*i*k*n/N).
// Both return a new slice and leave the input untouched. Implementations
// are only required to support power-of-two lengths.
type Backend interface {
	fmt.Stringer
	Forward(x []complex128) ([]complex128, error)
	Inverse(x []complex128) ([]complex128, error)
}

// NextPowerOfTwo returns the smallest power of two that is >= n (1 for n <= 1).
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// RealToComplex copies the real signal into a zero-padded complex buffer of length n.
func RealToComplex(samples []float64, n int) []complex128 {
	out := make([]complex128, n)
	for i, v := range samples {
		if i >= n {
			break
		}
		out[i] = complex(v, 0)
	}
	return out
}
