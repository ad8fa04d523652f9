// Package godsp wraps github.com/mjibson/go-dsp/fft.
package godsp

import (
	"github.com/mjibson/go-dsp/fft"
	fftbackend "github.com/xaionaro-go/audiosync/pkg/fft"
)

type Backend struct{}

var _ fftbackend.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{}
}

func (*Backend) String() string {
	return "go-dsp"
}

func (*Backend) Forward(x []complex128) ([]complex128, error) {
	return fft.FFT(x), nil
}

func (*Backend) Inverse(x []complex128) ([]complex128, error) {
	return fft.IFFT(x), nil
}
