// Package predict drives test-time-augmented inference over a dataset.
package predict

import (
	"context"
	"image"
	"io"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/Brownie44l1/segtta/internal/config"
	"github.com/Brownie44l1/segtta/internal/dataset"
	"github.com/Brownie44l1/segtta/internal/mask"
	"github.com/Brownie44l1/segtta/internal/model"
	"github.com/Brownie44l1/segtta/internal/tta"
)

// Runner feeds every augmented view through the model, fuses the
// predictions and turns them into masks at the source resolution.
type Runner struct {
	Model    model.Segmenter
	Geometry tta.Geometry
	Runtime  config.Runtime
	Logger   *zap.SugaredLogger
	// Progress receives the progress bar; nil disables it.
	Progress io.Writer
}

// Stats summarizes a run.
type Stats struct {
	Batches int
	Masks   int
}

// Masks runs the network on every view of b and returns one label mask per
// sample, resized to the sample's original size.
func (r *Runner) Masks(ctx context.Context, b *dataset.Batch) ([]*image.Gray, error) {
	var preds [len(tta.Views)]*tta.Tensor
	for k, view := range b.Views {
		pred, err := r.Model.Segment(ctx, view)
		if err != nil {
			return nil, errors.Wrapf(err, "batch %d, %d degree view", b.Index, tta.Views[k].Degrees())
		}
		if pred.N != b.Len() {
			return nil, errors.Errorf("batch %d: model returned %d predictions for %d samples", b.Index, pred.N, b.Len())
		}
		preds[k] = pred
	}

	fused, err := r.Geometry.Fuse(preds)
	if err != nil {
		return nil, errors.Wrapf(err, "batch %d", b.Index)
	}
	labels, err := tta.Argmax(fused)
	if err != nil {
		return nil, errors.Wrapf(err, "batch %d", b.Index)
	}

	for i, m := range labels {
		size := b.Sizes[i]
		if labels[i], err = mask.Resize(m, size.X, size.Y); err != nil {
			return nil, errors.Wrapf(err, "batch %d, %q", b.Index, b.Filenames[i])
		}
	}
	return labels, nil
}

// Run predicts every batch of the loader and writes the masks with w.
func (r *Runner) Run(ctx context.Context, loader *dataset.Loader, w *mask.Writer) (Stats, error) {
	var stats Stats
	bar := r.progressBar(loader.Batches())

	r.Logger.Infof("START PREDICTION (seed %d, device %s, tile width %d)",
		r.Runtime.Seed, r.Runtime.Device, r.Geometry.Tile)
	err := loader.Each(ctx, func(b *dataset.Batch) error {
		masks, err := r.Masks(ctx, b)
		if err != nil {
			return err
		}
		for i, m := range masks {
			path, err := w.Write(m, b.Sizes[i], b.Filenames[i])
			if err != nil {
				return err
			}
			r.Logger.Debugf("Saved %s (%dx%d)", path, b.Sizes[i].X, b.Sizes[i].Y)
		}
		stats.Batches++
		stats.Masks += len(masks)
		if bar != nil {
			_ = bar.Add(1)
		}
		return nil
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return stats, err
	}
	r.Logger.Infof("END PREDICTION (%d masks in %d batches)", stats.Masks, stats.Batches)
	return stats, nil
}

func (r *Runner) progressBar(total int) *progressbar.ProgressBar {
	if r.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.Progress),
		progressbar.OptionSetDescription("predict"),
		progressbar.OptionShowCount(),
	)
}
