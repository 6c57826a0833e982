package dataset

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Brownie44l1/segtta/internal/scaler"
	"github.com/Brownie44l1/segtta/internal/tta"
)

// Batch groups consecutive samples, with one input tensor per view.
type Batch struct {
	Index     int
	Views     [len(tta.Views)]*tta.Tensor
	Sizes     []image.Point // original width, height per sample
	Filenames []string
}

// Len returns the number of samples in the batch.
func (b *Batch) Len() int {
	return len(b.Filenames)
}

// NewBatch stacks prepared samples of an h x w input size.
func NewBatch(index, h, w int, samples []*Sample) (*Batch, error) {
	b := &Batch{
		Index:     index,
		Sizes:     make([]image.Point, len(samples)),
		Filenames: make([]string, len(samples)),
	}
	for i, s := range samples {
		b.Sizes[i] = image.Pt(s.Width, s.Height)
		b.Filenames[i] = s.Filename
	}
	for k := range tta.Views {
		inputs := make([][]float32, len(samples))
		for i, s := range samples {
			inputs[i] = s.Views[k]
		}
		t, err := tta.Stack(scaler.Channels, h, w, inputs)
		if err != nil {
			return nil, errors.Wrapf(err, "batch %d", index)
		}
		b.Views[k] = t
	}
	return b, nil
}

// Loader yields the dataset in order, batchSize samples at a time, decoding
// each batch with up to workers goroutines while the previous one is consumed.
type Loader struct {
	ds        *Dataset
	batchSize int
	workers   int
}

// NewLoader creates a loader. A workers value below one loads on a single goroutine.
func NewLoader(ds *Dataset, batchSize, workers int) (*Loader, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	if workers < 1 {
		workers = 1
	}
	return &Loader{ds: ds, batchSize: batchSize, workers: workers}, nil
}

// Batches returns the number of batches, counting a short final batch.
func (l *Loader) Batches() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}

// Each calls fn with every batch in order. Loading stops at the first error
// from fn or from decoding, or when ctx is done.
func (l *Loader) Each(ctx context.Context, fn func(*Batch) error) error {
	g, ctx := errgroup.WithContext(ctx)
	ready := make(chan *Batch, 1)

	g.Go(func() error {
		defer close(ready)
		for index := 0; index < l.Batches(); index++ {
			b, err := l.load(ctx, index)
			if err != nil {
				return err
			}
			select {
			case ready <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		for b := range ready {
			if err := fn(b); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}

func (l *Loader) load(ctx context.Context, index int) (*Batch, error) {
	start := index * l.batchSize
	end := min(start+l.batchSize, l.ds.Len())
	samples := make([]*Sample, end-start)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i := start; i < end; i++ {
		i := i
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s, err := l.ds.Get(i)
			if err != nil {
				return err
			}
			samples[i-start] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewBatch(index, l.ds.height, l.ds.width, samples)
}
