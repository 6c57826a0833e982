package tta

import (
	"image"

	"github.com/pkg/errors"
)

// MaxClasses is the largest class count a uint8 label mask can carry.
const MaxClasses = 256

// Fuse realigns the rotated predictions and sums all of them into a new
// tensor. preds must be ordered like Views; the rotated entries are
// realigned in place. The sum is not averaged since Argmax does not depend
// on a uniform scale.
func (g Geometry) Fuse(preds [len(Views)]*Tensor) (*Tensor, error) {
	base := preds[0]
	if base == nil {
		return nil, errors.New("missing identity prediction")
	}
	if err := g.Check(base.H, base.W); err != nil {
		return nil, err
	}
	fused := base.Clone()
	for k := 1; k < len(Views); k++ {
		p := preds[k]
		if p == nil {
			return nil, errors.Errorf("missing %d degree prediction", Views[k].Degrees())
		}
		if !p.SameShape(base) {
			return nil, errors.Errorf("%d degree prediction has shape %s, identity has %s",
				Views[k].Degrees(), p.Shape(), base.Shape())
		}
		if err := g.Realign(p, Views[k]); err != nil {
			return nil, err
		}
		if err := fused.Add(p); err != nil {
			return nil, err
		}
	}
	return fused, nil
}

// Argmax reduces every sample of t over the class axis. Pixel values of the
// returned masks are class indices; ties go to the lowest index.
func Argmax(t *Tensor) ([]*image.Gray, error) {
	if t.C <= 0 || t.C > MaxClasses {
		return nil, errors.Errorf("cannot encode %d classes in a uint8 mask", t.C)
	}
	masks := make([]*image.Gray, t.N)
	hw := t.H * t.W
	for n := 0; n < t.N; n++ {
		m := image.NewGray(image.Rect(0, 0, t.W, t.H))
		sample := t.Sample(n)
		for p := 0; p < hw; p++ {
			best := 0
			bestVal := sample[p]
			for c := 1; c < t.C; c++ {
				if v := sample[c*hw+p]; v > bestVal {
					best, bestVal = c, v
				}
			}
			m.Pix[(p/t.W)*m.Stride+p%t.W] = uint8(best)
		}
		masks[n] = m
	}
	return masks, nil
}
