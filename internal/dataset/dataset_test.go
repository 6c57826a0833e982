package dataset

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/Brownie44l1/segtta/internal/scaler"
	"github.com/Brownie44l1/segtta/internal/tta"
)

const (
	testTile   = 4
	testWidth  = 2 * testTile
	testHeight = testTile
)

// writeImages saves n solid images of varying size and returns their paths.
func writeImages(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	for i := 0; i < n; i++ {
		img := imaging.New(10+i, 6+2*i, color.NRGBA{R: uint8(10 * i), G: 128, B: 255, A: 255})
		paths[i] = filepath.Join(dir, fmt.Sprintf("img_%02d.png", i))
		test.That(t, imaging.Save(img, paths[i]), test.ShouldBeNil)
	}
	return paths
}

func newTestDataset(t *testing.T, paths []string) *Dataset {
	t.Helper()
	scale, err := scaler.Lookup("none")
	test.That(t, err, test.ShouldBeNil)
	ds, err := New(paths, testWidth, testHeight, tta.Geometry{Tile: testTile}, scale)
	test.That(t, err, test.ShouldBeNil)
	return ds
}

func TestNewRejectsIncompatibleInput(t *testing.T) {
	scale, _ := scaler.Lookup("none")
	_, err := New(nil, 10, testHeight, tta.Geometry{Tile: testTile}, scale)
	test.That(t, errors.Is(err, tta.ErrIncompatibleTile), test.ShouldBeTrue)
}

func TestGet(t *testing.T) {
	paths := writeImages(t, 2)
	ds := newTestDataset(t, paths)
	test.That(t, ds.Len(), test.ShouldEqual, 2)

	s, err := ds.Get(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Filename, test.ShouldEqual, "img_01.png")
	test.That(t, s.Width, test.ShouldEqual, 11)
	test.That(t, s.Height, test.ShouldEqual, 8)
	for _, view := range s.Views {
		test.That(t, view, test.ShouldHaveLength, scaler.Channels*testWidth*testHeight)
		// a solid image is unchanged by rotating its tiles
		test.That(t, view[0], test.ShouldEqual, float32(10))
		test.That(t, view[testWidth*testHeight], test.ShouldEqual, float32(128))
	}

	_, err = ds.Get(5)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPrepareRotatesViews(t *testing.T) {
	ds := newTestDataset(t, nil)
	img := image.NewNRGBA(image.Rect(0, 0, testWidth, testHeight))
	// top-left pixel of the first tile is bright, everything else dark
	img.Set(0, 0, color.NRGBA{R: 200, A: 255})

	s, err := ds.Prepare(img, "x.png")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Views[0][0], test.ShouldEqual, float32(200))
	// a counter-clockwise quarter turn moves the top-left corner to the bottom-left
	test.That(t, s.Views[1][0], test.ShouldEqual, float32(0))
	test.That(t, s.Views[1][(testHeight-1)*testWidth], test.ShouldEqual, float32(200))
	test.That(t, s.Views[2][(testHeight-1)*testWidth+testTile-1], test.ShouldEqual, float32(200))
	test.That(t, s.Views[3][testTile-1], test.ShouldEqual, float32(200))
}

func TestLoaderYieldsEverySampleInOrder(t *testing.T) {
	paths := writeImages(t, 5)
	ds := newTestDataset(t, paths)
	loader, err := NewLoader(ds, 2, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loader.Batches(), test.ShouldEqual, 3)

	var names []string
	var lens []int
	err = loader.Each(context.Background(), func(b *Batch) error {
		test.That(t, b.Index, test.ShouldEqual, len(lens))
		lens = append(lens, b.Len())
		names = append(names, b.Filenames...)
		for _, v := range b.Views {
			test.That(t, v.N, test.ShouldEqual, b.Len())
			test.That(t, v.C, test.ShouldEqual, scaler.Channels)
			test.That(t, v.H, test.ShouldEqual, testHeight)
			test.That(t, v.W, test.ShouldEqual, testWidth)
		}
		test.That(t, b.Sizes[0], test.ShouldResemble, image.Pt(10+2*b.Index, 6+4*b.Index))
		return nil
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lens, test.ShouldResemble, []int{2, 2, 1})
	test.That(t, names, test.ShouldResemble, []string{
		"img_00.png", "img_01.png", "img_02.png", "img_03.png", "img_04.png",
	})
}

func TestLoaderStopsOnError(t *testing.T) {
	paths := writeImages(t, 4)
	ds := newTestDataset(t, paths)
	loader, err := NewLoader(ds, 1, 0)
	test.That(t, err, test.ShouldBeNil)

	stop := errors.New("stop")
	calls := 0
	err = loader.Each(context.Background(), func(b *Batch) error {
		calls++
		return stop
	})
	test.That(t, errors.Is(err, stop), test.ShouldBeTrue)
	test.That(t, calls, test.ShouldEqual, 1)
}

func TestLoaderMissingFile(t *testing.T) {
	ds := newTestDataset(t, []string{filepath.Join(t.TempDir(), "missing.png")})
	loader, err := NewLoader(ds, 4, 2)
	test.That(t, err, test.ShouldBeNil)
	err = loader.Each(context.Background(), func(*Batch) error { return nil })
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "missing.png")

	_, err = NewLoader(ds, 0, 1)
	test.That(t, err, test.ShouldNotBeNil)
}
