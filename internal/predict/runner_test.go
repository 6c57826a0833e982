package predict

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/Brownie44l1/segtta/internal/config"
	"github.com/Brownie44l1/segtta/internal/dataset"
	"github.com/Brownie44l1/segtta/internal/logging"
	"github.com/Brownie44l1/segtta/internal/mask"
	"github.com/Brownie44l1/segtta/internal/scaler"
	"github.com/Brownie44l1/segtta/internal/tta"
)

const (
	testTile    = 4
	testWidth   = 2 * testTile
	testHeight  = testTile
	testClasses = 3
	classStep   = 50
)

// pixelModel scores class c at every pixel by how close the red value is to
// c*classStep. It works pixel by pixel, so it commutes with tile rotations.
type pixelModel struct {
	calls atomic.Int32
	err   error
}

func (m *pixelModel) Segment(_ context.Context, x *tta.Tensor) (*tta.Tensor, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := tta.NewTensor(x.N, testClasses, x.H, x.W)
	for n := 0; n < x.N; n++ {
		red := x.Plane(n, 0)
		for c := 0; c < testClasses; c++ {
			plane := out.Plane(n, c)
			for p, v := range red {
				d := v - float32(c*classStep)
				plane[p] = -d * d
			}
		}
	}
	return out, nil
}

func newTestDataset(t *testing.T, paths []string) *dataset.Dataset {
	t.Helper()
	scale, err := scaler.Lookup("none")
	test.That(t, err, test.ShouldBeNil)
	ds, err := dataset.New(paths, testWidth, testHeight, tta.Geometry{Tile: testTile}, scale)
	test.That(t, err, test.ShouldBeNil)
	return ds
}

func newTestRunner(m *pixelModel) *Runner {
	return &Runner{
		Model:    m,
		Geometry: tta.Geometry{Tile: testTile},
		Runtime:  config.Runtime{Seed: 1, Device: config.Device{GPU: -1}},
		Logger:   logging.NewNop(),
	}
}

func classOf(x, y int) int {
	return (x + 2*y) % testClasses
}

func TestMasksRecoverPattern(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, testWidth, testHeight))
	for y := 0; y < testHeight; y++ {
		for x := 0; x < testWidth; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(classOf(x, y) * classStep), A: 255})
		}
	}
	ds := newTestDataset(t, nil)
	s, err := ds.Prepare(img, "pattern.png")
	test.That(t, err, test.ShouldBeNil)
	b, err := dataset.NewBatch(0, testHeight, testWidth, []*dataset.Sample{s})
	test.That(t, err, test.ShouldBeNil)

	m := &pixelModel{}
	masks, err := newTestRunner(m).Masks(context.Background(), b)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.calls.Load(), test.ShouldEqual, int32(len(tta.Views)))
	test.That(t, masks, test.ShouldHaveLength, 1)
	for y := 0; y < testHeight; y++ {
		for x := 0; x < testWidth; x++ {
			test.That(t, masks[0].GrayAt(x, y).Y, test.ShouldEqual, uint8(classOf(x, y)))
		}
	}
}

func TestMasksPropagatesModelError(t *testing.T) {
	ds := newTestDataset(t, nil)
	s, err := ds.Prepare(image.NewNRGBA(image.Rect(0, 0, testWidth, testHeight)), "a.png")
	test.That(t, err, test.ShouldBeNil)
	b, err := dataset.NewBatch(3, testHeight, testWidth, []*dataset.Sample{s})
	test.That(t, err, test.ShouldBeNil)

	boom := errors.New("device lost")
	_, err = newTestRunner(&pixelModel{err: boom}).Masks(context.Background(), b)
	test.That(t, errors.Is(err, boom), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "batch 3")
}

func TestRunWritesMasksAtSourceSize(t *testing.T) {
	dir := t.TempDir()
	sizes := []image.Point{{20, 10}, {7, 13}, {8, 4}, {33, 17}, {5, 5}}
	paths := make([]string, len(sizes))
	for i, size := range sizes {
		solid := imaging.New(size.X, size.Y, color.NRGBA{R: uint8(i % testClasses * classStep), A: 255})
		paths[i] = filepath.Join(dir, fmt.Sprintf("TEST_%03d.png", i))
		test.That(t, imaging.Save(solid, paths[i]), test.ShouldBeNil)
	}

	loader, err := dataset.NewLoader(newTestDataset(t, paths), 2, 2)
	test.That(t, err, test.ShouldBeNil)
	out := &mask.Writer{Dir: t.TempDir()}
	runner := newTestRunner(&pixelModel{})
	runner.Progress = io.Discard

	stats, err := runner.Run(context.Background(), loader, out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats, test.ShouldResemble, Stats{Batches: 3, Masks: 5})

	for i, size := range sizes {
		f, err := os.Open(filepath.Join(out.Dir, filepath.Base(paths[i])))
		test.That(t, err, test.ShouldBeNil)
		img, err := png.Decode(f)
		f.Close()
		test.That(t, err, test.ShouldBeNil)
		gray, ok := img.(*image.Gray)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, gray.Bounds().Size(), test.ShouldResemble, size)
		for _, v := range gray.Pix {
			test.That(t, v, test.ShouldEqual, uint8(i%testClasses))
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 3)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("%d.png", i))
		test.That(t, imaging.Save(imaging.New(8, 4, color.Black), paths[i]), test.ShouldBeNil)
	}
	loader, err := dataset.NewLoader(newTestDataset(t, paths), 1, 1)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newTestRunner(&pixelModel{}).Run(ctx, loader, &mask.Writer{Dir: t.TempDir()})
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}
