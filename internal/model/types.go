// Package model wraps the exported segmentation network.
package model

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Brownie44l1/segtta/internal/config"
	"github.com/Brownie44l1/segtta/internal/scaler"
	"github.com/Brownie44l1/segtta/internal/tta"
)

// Segmenter maps an NCHW image batch to NCHW per-class score maps of the same
// spatial size.
type Segmenter interface {
	Segment(ctx context.Context, x *tta.Tensor) (*tta.Tensor, error)
}

// Metadata describes the network's tensors.
type Metadata struct {
	Architecture string `json:"architecture"`
	Encoder      string `json:"encoder,omitempty"`
	InputName    string `json:"input_name"`
	OutputName   string `json:"output_name"`
	Batch        int    `json:"batch"`
	Height       int    `json:"height"`
	Width        int    `json:"width"`
	Classes      int    `json:"classes"`
	Library      string `json:"-"`
}

// NewMetadata derives the network metadata from the run and training configuration.
func NewMetadata(p *config.PredictConfig, t *config.TrainConfig) Metadata {
	return Metadata{
		Architecture: t.Architecture,
		Encoder:      t.Encoder,
		InputName:    p.InputName,
		OutputName:   p.OutputName,
		Batch:        p.BatchSize,
		Height:       t.InputHeight,
		Width:        t.InputWidth,
		Classes:      t.NClasses,
		Library:      p.OnnxRuntimeLib,
	}
}

// Validate checks the metadata against the architecture registry.
func (m Metadata) Validate() error {
	arch, err := LookupArchitecture(m.Architecture)
	if err != nil {
		return err
	}
	if arch.NeedsEncoder && m.Encoder == "" {
		return errors.Errorf("architecture %s needs an encoder", arch.Name)
	}
	if m.Batch <= 0 || m.Height <= 0 || m.Width <= 0 || m.Classes <= 0 {
		return errors.Errorf("invalid network dimensions batch=%d height=%d width=%d classes=%d",
			m.Batch, m.Height, m.Width, m.Classes)
	}
	if m.InputName == "" || m.OutputName == "" {
		return errors.New("network input and output names are required")
	}
	return nil
}

// InputShape is [batch, channels, height, width].
func (m Metadata) InputShape() []int64 {
	return []int64{int64(m.Batch), scaler.Channels, int64(m.Height), int64(m.Width)}
}

// OutputShape is [batch, classes, height, width].
func (m Metadata) OutputShape() []int64 {
	return []int64{int64(m.Batch), int64(m.Classes), int64(m.Height), int64(m.Width)}
}

// CheckInput verifies that x fits the network input.
func (m Metadata) CheckInput(x *tta.Tensor) error {
	if x.N <= 0 || x.N > m.Batch {
		return errors.Errorf("batch of %d samples does not fit network batch size %d", x.N, m.Batch)
	}
	if x.C != scaler.Channels || x.H != m.Height || x.W != m.Width {
		return errors.Errorf("input %s does not match network input %v", x.Shape(), m.InputShape())
	}
	return nil
}
