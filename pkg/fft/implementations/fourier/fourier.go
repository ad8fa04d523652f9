// Package fourier wraps the in-place radix-2 transform of
// github.com/brettbuddin/fourier.
package fourier

import (
	"fmt"

	"github.com/brettbuddin/fourier"
	fftbackend "github.com/xaionaro-go/audiosync/pkg/fft"
)

type Backend struct{}

var _ fftbackend.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{}
}

func (*Backend) String() string {
	return "fourier"
}

func (*Backend) Forward(x []complex128) ([]complex128, error) {
	if !isPowerOfTwo(len(x)) {
		return nil, fmt.Errorf("the length must be a power of two: got %d", len(x))
	}
	out := make([]complex128, len(x))
	copy(out, x)
	if err := fourier.Forward(out); err != nil {
		return nil, fmt.Errorf("unable to compute the forward transform: %w", err)
	}
	return out, nil
}

// Inverse is computed through the forward transform of the conjugate,
// so the normalization does not depend on the library's conventions.
func (b *Backend) Inverse(x []complex128) ([]complex128, error) {
	if !isPowerOfTwo(len(x)) {
		return nil, fmt.Errorf("the length must be a power of two: got %d", len(x))
	}
	out := make([]complex128, len(x))
	for i, v := range x {
		out[i] = complex(real(v), -imag(v))
	}
	if err := fourier.Forward(out); err != nil {
		return nil, fmt.Errorf("unable to compute the inverse transform: %w", err)
	}
	scale := 1 / float64(len(out))
	for i, v := range out {
		out[i] = complex(real(v)*scale, -imag(v)*scale)
	}
	return out, nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
