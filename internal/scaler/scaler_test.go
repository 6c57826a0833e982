package scaler

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestLookup(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	img.Set(1, 0, color.NRGBA{R: 0, G: 102, B: 255, A: 255})

	f, err := Lookup("normalize")
	test.That(t, err, test.ShouldBeNil)
	out := f(img)
	test.That(t, out, test.ShouldHaveLength, 6)
	// planes are R, G, B, each in row-major order
	test.That(t, out[0], test.ShouldEqual, float32(1))
	test.That(t, out[1], test.ShouldEqual, float32(0))
	test.That(t, out[3], test.ShouldAlmostEqual, 0.4, 1e-6)
	test.That(t, out[4], test.ShouldAlmostEqual, 0.2, 1e-6)
	test.That(t, out[5], test.ShouldEqual, float32(1))

	f, err = Lookup("none")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f(img)[3], test.ShouldEqual, float32(102))

	f, err = Lookup("standardize")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f(img)[0], test.ShouldAlmostEqual, (1-0.485)/0.229, 1e-5)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("clahe")
	test.That(t, errors.Is(err, ErrUnsupportedScaler), test.ShouldBeTrue)
	test.That(t, Names(), test.ShouldResemble, []string{"none", "normalize", "standardize"})
}
