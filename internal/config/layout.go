package config

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// SerialLayout is the timestamp format appended to the train serial to name a prediction run.
const SerialLayout = "20060102_150405"

// Layout resolves the project's directory structure from its root.
type Layout struct {
	Root string
}

// PredictConfigPath is the default location of predict.yaml.
func (l Layout) PredictConfigPath() string {
	return filepath.Join(l.Root, "config", "predict.yaml")
}

// TrainDir is the result directory of a training run.
func (l Layout) TrainDir(serial string) string {
	return filepath.Join(l.Root, "results", "train", serial)
}

// TrainConfigPath is the training run's configuration.
func (l Layout) TrainConfigPath(serial string) string {
	return filepath.Join(l.TrainDir(serial), "train.yaml")
}

// CheckpointPath is the ONNX export of the training run's weights.
func (l Layout) CheckpointPath(serial string) string {
	return filepath.Join(l.TrainDir(serial), "model.onnx")
}

// TestImages lists data/test/x/*.png in lexical order.
func (l Layout) TestImages() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(l.Root, "data", "test", "x", "*.png"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list test images")
	}
	sort.Strings(paths)
	return paths, nil
}

// Run is the output directory of one prediction run.
type Run struct {
	Serial  string
	Dir     string
	MaskDir string
}

// LogPath is the run's log file.
func (r *Run) LogPath() string {
	return filepath.Join(r.Dir, "pred.log")
}

// TrainConfigCopy is where the resolved training config is saved.
func (r *Run) TrainConfigCopy() string {
	return filepath.Join(r.Dir, "train_config.yml")
}

// PredictConfigCopy is where the resolved predict config is saved.
func (r *Run) PredictConfigCopy() string {
	return filepath.Join(r.Dir, "predict_config.yml")
}

// NewRun creates results/pred/<train serial>_<timestamp>/mask.
func (l Layout) NewRun(trainSerial string, now time.Time) (*Run, error) {
	serial := trainSerial + "_" + now.Format(SerialLayout)
	dir := filepath.Join(l.Root, "results", "pred", serial)
	run := &Run{Serial: serial, Dir: dir, MaskDir: filepath.Join(dir, "mask")}
	if err := os.MkdirAll(run.MaskDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %q", run.MaskDir)
	}
	return run, nil
}
