// Package tta implements the test-time augmentation used at prediction time:
// the forward tile rotations applied to input images and the fusion that
// realigns the network outputs, sums them and reduces them to label masks.
package tta

import (
	"fmt"

	"github.com/pkg/errors"
)

// Tensor is a dense NCHW float32 batch.
type Tensor struct {
	N, C, H, W int
	Data       []float32
}

// NewTensor allocates a zeroed tensor.
func NewTensor(n, c, h, w int) *Tensor {
	return &Tensor{N: n, C: c, H: h, W: w, Data: make([]float32, n*c*h*w)}
}

// FromData wraps data without copying it.
func FromData(n, c, h, w int, data []float32) (*Tensor, error) {
	if len(data) != n*c*h*w {
		return nil, errors.Errorf("tensor data has %d values, shape %dx%dx%dx%d needs %d",
			len(data), n, c, h, w, n*c*h*w)
	}
	return &Tensor{N: n, C: c, H: h, W: w, Data: data}, nil
}

// Shape returns the dimensions as a printable string.
func (t *Tensor) Shape() string {
	return fmt.Sprintf("[%d %d %d %d]", t.N, t.C, t.H, t.W)
}

// SameShape reports whether t and o have identical dimensions.
func (t *Tensor) SameShape(o *Tensor) bool {
	return t.N == o.N && t.C == o.C && t.H == o.H && t.W == o.W
}

// Sample returns the CHW slice of sample i, sharing storage with t.
func (t *Tensor) Sample(i int) []float32 {
	size := t.C * t.H * t.W
	return t.Data[i*size : (i+1)*size]
}

// Plane returns the HW slice of channel c of sample i, sharing storage with t.
func (t *Tensor) Plane(i, c int) []float32 {
	size := t.H * t.W
	off := (i*t.C + c) * size
	return t.Data[off : off+size]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.Data))
	copy(data, t.Data)
	return &Tensor{N: t.N, C: t.C, H: t.H, W: t.W, Data: data}
}

// Add accumulates o into t elementwise.
func (t *Tensor) Add(o *Tensor) error {
	if !t.SameShape(o) {
		return errors.Errorf("cannot add tensor %s to %s", o.Shape(), t.Shape())
	}
	for i, v := range o.Data {
		t.Data[i] += v
	}
	return nil
}

// Scale multiplies every element by k.
func (t *Tensor) Scale(k float32) {
	for i := range t.Data {
		t.Data[i] *= k
	}
}

// Stack concatenates CHW samples of identical shape into one batch.
func Stack(c, h, w int, samples [][]float32) (*Tensor, error) {
	t := NewTensor(len(samples), c, h, w)
	for i, s := range samples {
		if len(s) != c*h*w {
			return nil, errors.Errorf("sample %d has %d values, want %d", i, len(s), c*h*w)
		}
		copy(t.Sample(i), s)
	}
	return t, nil
}
