// Package gonum wraps gonum.org/v1/gonum/dsp/fourier. Unlike the other
// backends it supports arbitrary lengths.
package gonum

import (
	fftbackend "github.com/xaionaro-go/audiosync/pkg/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

type Backend struct{}

var _ fftbackend.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{}
}

func (*Backend) String() string {
	return "gonum"
}

// A CmplxFFT keeps work buffers, so a plan is built per call instead of being shared.

func (*Backend) Forward(x []complex128) ([]complex128, error) {
	if len(x) == 0 {
		return nil, nil
	}
	return fourier.NewCmplxFFT(len(x)).Coefficients(nil, x), nil
}

func (*Backend) Inverse(x []complex128) ([]complex128, error) {
	if len(x) == 0 {
		return nil, nil
	}
	out := fourier.NewCmplxFFT(len(x)).Sequence(nil, x)
	scale := complex(1/float64(len(x)), 0)
	for i := range out {
		out[i] *= scale
	}
	return out, nil
}
