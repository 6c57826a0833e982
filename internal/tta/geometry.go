package tta

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ErrIncompatibleTile is returned when an image or prediction cannot be cut
// into whole square tiles of the configured width.
var ErrIncompatibleTile = errors.New("incompatible tile width")

// Rotation is a number of counter-clockwise quarter turns.
type Rotation int

const (
	Rot0 Rotation = iota
	Rot90
	Rot180
	Rot270
)

// Views lists the rotations fed through the network for every image, identity first.
var Views = [4]Rotation{Rot0, Rot90, Rot180, Rot270}

// Inverse returns the rotation that undoes r.
func (r Rotation) Inverse() Rotation {
	return (4 - r%4) % 4
}

// Degrees returns r in degrees.
func (r Rotation) Degrees() int {
	return int(r%4) * 90
}

// Geometry describes how a view is tiled: the width is split into square
// tiles of side Tile and the height must equal Tile.
type Geometry struct {
	Tile int
}

// Check validates that an h x w map can be split into square tiles.
func (g Geometry) Check(h, w int) error {
	if g.Tile <= 0 {
		return errors.Wrapf(ErrIncompatibleTile, "tile width %d", g.Tile)
	}
	if h != g.Tile || w <= 0 || w%g.Tile != 0 {
		return errors.Wrapf(ErrIncompatibleTile, "%dx%d map with tile width %d", w, h, g.Tile)
	}
	return nil
}

// Tiles returns the number of tiles across a map of width w.
func (g Geometry) Tiles(w int) int {
	return w / g.Tile
}

// Augment builds the forward view of img: every tile is rotated by r in place.
func (g Geometry) Augment(img image.Image, r Rotation) (*image.NRGBA, error) {
	b := img.Bounds()
	if err := g.Check(b.Dy(), b.Dx()); err != nil {
		return nil, err
	}
	out := imaging.New(b.Dx(), b.Dy(), image.Transparent)
	for i := 0; i < g.Tiles(b.Dx()); i++ {
		x0 := b.Min.X + i*g.Tile
		tile := imaging.Crop(img, image.Rect(x0, b.Min.Y, x0+g.Tile, b.Min.Y+g.Tile))
		switch r % 4 {
		case Rot90:
			tile = imaging.Rotate90(tile)
		case Rot180:
			tile = imaging.Rotate180(tile)
		case Rot270:
			tile = imaging.Rotate270(tile)
		}
		out = imaging.Paste(out, tile, image.Pt(i*g.Tile, 0))
	}
	return out, nil
}

// Rotate turns every tile of every plane of t by r, in place.
func (g Geometry) Rotate(t *Tensor, r Rotation) error {
	if err := g.Check(t.H, t.W); err != nil {
		return err
	}
	if r%4 == Rot0 {
		return nil
	}
	s := g.Tile
	buf := make([]float32, s*s)
	for n := 0; n < t.N; n++ {
		for c := 0; c < t.C; c++ {
			plane := t.Plane(n, c)
			for tile := 0; tile < g.Tiles(t.W); tile++ {
				rotateTile(plane, t.W, tile*s, s, r%4, buf)
			}
		}
	}
	return nil
}

// Realign undoes the forward rotation r on a prediction, in place.
func (g Geometry) Realign(t *Tensor, r Rotation) error {
	return g.Rotate(t, r.Inverse())
}

// rotateTile rotates the s x s square at column x0 of a row-major plane of
// width stride counter-clockwise by r quarter turns.
func rotateTile(plane []float32, stride, x0, s int, r Rotation, buf []float32) {
	for y := 0; y < s; y++ {
		copy(buf[y*s:(y+1)*s], plane[y*stride+x0:y*stride+x0+s])
	}
	last := s - 1
	for y := 0; y < s; y++ {
		row := plane[y*stride+x0 : y*stride+x0+s]
		for x := 0; x < s; x++ {
			switch r {
			case Rot90:
				row[x] = buf[x*s+last-y]
			case Rot180:
				row[x] = buf[(last-y)*s+last-x]
			case Rot270:
				row[x] = buf[(last-x)*s+y]
			}
		}
	}
}
