// Package scaler converts decoded images into the normalized CHW float32
// layout the segmentation networks were trained on.
package scaler

import (
	"image"
	"sort"

	"github.com/pkg/errors"
)

// ErrUnsupportedScaler is returned by Lookup for unknown names.
var ErrUnsupportedScaler = errors.New("unsupported scaler")

// Channels is the number of input channels produced by every scaler.
const Channels = 3

// Func maps an image to RGB planes in CHW order.
type Func func(img image.Image) []float32

var (
	imagenetMean = [Channels]float32{0.485, 0.456, 0.406}
	imagenetStd  = [Channels]float32{0.229, 0.224, 0.225}
)

var scalers = map[string]Func{
	"none": func(img image.Image) []float32 {
		return planes(img, func(_ int, v float32) float32 { return v })
	},
	"normalize": func(img image.Image) []float32 {
		return planes(img, func(_ int, v float32) float32 { return v / 255 })
	},
	"standardize": func(img image.Image) []float32 {
		return planes(img, func(c int, v float32) float32 {
			return (v/255 - imagenetMean[c]) / imagenetStd[c]
		})
	},
}

// Lookup returns the scaler registered under name.
func Lookup(name string) (Func, error) {
	f, ok := scalers[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedScaler, "%q (known: %v)", name, Names())
	}
	return f, nil
}

// Names lists the registered scalers.
func Names() []string {
	names := make([]string, 0, len(scalers))
	for name := range scalers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// planes extracts 8-bit RGB values and applies f per channel.
func planes(img image.Image, f func(c int, v float32) float32) []float32 {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	hw := width * height
	out := make([]float32, Channels*hw)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			p := y*width + x
			out[p] = f(0, float32(r>>8))
			out[hw+p] = f(1, float32(g>>8))
			out[2*hw+p] = f(2, float32(bl>>8))
		}
	}
	return out
}
