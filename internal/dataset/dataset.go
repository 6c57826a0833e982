// Package dataset reads test images and prepares the augmented views the
// segmentation network is run on.
package dataset

import (
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/Brownie44l1/segtta/internal/scaler"
	"github.com/Brownie44l1/segtta/internal/tta"
)

// Sample is one source image prepared for inference.
type Sample struct {
	// Views holds one scaled CHW input per tta.Views entry.
	Views    [len(tta.Views)][]float32
	Height   int
	Width    int
	Filename string
}

// Dataset serves the samples of a list of image files.
type Dataset struct {
	paths    []string
	width    int
	height   int
	geometry tta.Geometry
	scale    scaler.Func
}

// New builds a dataset. width and height are the network input size and must
// split into square tiles of the geometry's width.
func New(paths []string, width, height int, geometry tta.Geometry, scale scaler.Func) (*Dataset, error) {
	if err := geometry.Check(height, width); err != nil {
		return nil, err
	}
	if scale == nil {
		return nil, errors.New("dataset needs a scaler")
	}
	return &Dataset{paths: paths, width: width, height: height, geometry: geometry, scale: scale}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.paths)
}

// InputSize returns the network input width and height.
func (d *Dataset) InputSize() (int, int) {
	return d.width, d.height
}

// Get decodes and prepares sample i.
func (d *Dataset) Get(i int) (*Sample, error) {
	if i < 0 || i >= len(d.paths) {
		return nil, errors.Errorf("sample %d out of range [0, %d)", i, len(d.paths))
	}
	path := d.paths[i]
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	return d.Prepare(img, filepath.Base(path))
}

// Prepare resizes img to the input size and builds its augmented views.
func (d *Dataset) Prepare(img image.Image, filename string) (*Sample, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, errors.Errorf("image %q is empty", filename)
	}
	s := &Sample{Height: b.Dy(), Width: b.Dx(), Filename: filename}

	resized := resize.Resize(uint(d.width), uint(d.height), img, resize.Bilinear)
	for k, r := range tta.Views {
		view, err := d.geometry.Augment(resized, r)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to build %d degree view of %q", r.Degrees(), filename)
		}
		s.Views[k] = d.scale(view)
	}
	return s, nil
}
