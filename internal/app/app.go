// Package app resolves the configuration shared by the commands into the
// components they run.
package app

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Brownie44l1/segtta/internal/config"
	"github.com/Brownie44l1/segtta/internal/dataset"
	"github.com/Brownie44l1/segtta/internal/model"
	"github.com/Brownie44l1/segtta/internal/scaler"
	"github.com/Brownie44l1/segtta/internal/scheduler"
	"github.com/Brownie44l1/segtta/internal/tta"
)

// Env is a resolved prediction setup.
type Env struct {
	Layout   config.Layout
	Predict  *config.PredictConfig
	Train    *config.TrainConfig
	Runtime  config.Runtime
	Geometry tta.Geometry
	Metadata model.Metadata
	Scale    scaler.Func
}

// Load reads predict.yaml (configPath, or the layout default when empty) and
// the training config it points to, and checks that they agree.
func Load(root, configPath string) (*Env, error) {
	layout := config.Layout{Root: root}
	if configPath == "" {
		configPath = layout.PredictConfigPath()
	}
	p, err := config.LoadPredict(configPath)
	if err != nil {
		return nil, err
	}
	t, err := config.LoadTrain(layout.TrainConfigPath(p.TrainSerial))
	if err != nil {
		return nil, err
	}
	geometry := tta.Geometry{Tile: p.TileWidth}
	if err := geometry.Check(t.InputHeight, t.InputWidth); err != nil {
		return nil, errors.Wrapf(err, "training input size of %q", p.TrainSerial)
	}
	scale, err := scaler.Lookup(t.Scaler)
	if err != nil {
		return nil, err
	}
	metadata := model.NewMetadata(p, t)
	if err := metadata.Validate(); err != nil {
		return nil, err
	}
	return &Env{
		Layout:   layout,
		Predict:  p,
		Train:    t,
		Runtime:  config.NewRuntime(p, t),
		Geometry: geometry,
		Metadata: metadata,
		Scale:    scale,
	}, nil
}

// Dataset builds a dataset over paths at the training input size.
func (e *Env) Dataset(paths []string) (*dataset.Dataset, error) {
	return dataset.New(paths, e.Train.InputWidth, e.Train.InputHeight, e.Geometry, e.Scale)
}

// OpenModel loads the training run's ONNX export.
func (e *Env) OpenModel(logger *zap.SugaredLogger) (*model.Session, error) {
	logger.Infof("Load model architecture: %s", e.Train.Architecture)
	return model.NewSession(e.Layout.CheckpointPath(e.Predict.TrainSerial), e.Metadata, e.Runtime, logger)
}

// CheckScheduler reports whether the training run's scheduler is known.
// Inference never steps a schedule, so an unknown name is only logged.
func (e *Env) CheckScheduler(logger *zap.SugaredLogger) {
	if e.Train.Scheduler == "" {
		return
	}
	if _, err := scheduler.Lookup(e.Train.Scheduler); err != nil {
		logger.Warnf("Training config names %v", err)
		return
	}
	logger.Debugf("Training scheduler: %s", e.Train.Scheduler)
}
