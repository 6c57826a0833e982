// Package mask resizes label masks back to the source image size and writes them.
package mask

import (
	"image"
	"io"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Resize scales a label mask to width x height. Nearest-neighbour sampling
// keeps every output value one of the input labels.
func Resize(m *image.Gray, width, height int) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid mask size %dx%d", width, height)
	}
	b := m.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return m, nil
	}
	scaled := imaging.Resize(m, width, height, imaging.NearestNeighbor)
	out := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.Pix[y*out.Stride+x] = scaled.Pix[y*scaled.Stride+x*4]
		}
	}
	return out, nil
}

// Encode writes m as a single-channel PNG.
func Encode(w io.Writer, m *image.Gray) error {
	return imaging.Encode(w, m, imaging.PNG)
}

// Writer saves masks into a directory.
type Writer struct {
	Dir string
}

// Write resizes m to the recorded source size and saves it as Dir/filename.
// The format follows the filename's extension.
func (w *Writer) Write(m *image.Gray, size image.Point, filename string) (string, error) {
	if filename == "" || filepath.Base(filename) != filename {
		return "", errors.Errorf("invalid mask filename %q", filename)
	}
	resized, err := Resize(m, size.X, size.Y)
	if err != nil {
		return "", errors.Wrapf(err, "mask %q", filename)
	}
	path := filepath.Join(w.Dir, filename)
	if err := imaging.Save(resized, path); err != nil {
		return "", errors.Wrapf(err, "failed to save mask %q", path)
	}
	return path, nil
}
