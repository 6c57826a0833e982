// Package config loads the prediction and training configuration files and
// resolves the project directory layout.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTileWidth  = 224
	DefaultInputName  = "input"
	DefaultOutputName = "output"
	maxClasses        = 256
)

// PredictConfig is the content of config/predict.yaml.
type PredictConfig struct {
	TrainSerial    string `yaml:"train_serial"`
	GPUNum         int    `yaml:"gpu_num"`
	BatchSize      int    `yaml:"batch_size"`
	NumWorkers     int    `yaml:"num_workers"`
	Verbose        bool   `yaml:"verbose"`
	TileWidth      int    `yaml:"tile_width,omitempty"`
	OnnxRuntimeLib string `yaml:"onnxruntime_lib,omitempty"`
	InputName      string `yaml:"input_name,omitempty"`
	OutputName     string `yaml:"output_name,omitempty"`
}

// TrainConfig is the subset of the training run's train.yaml that inference
// depends on. Other keys are kept in Extra so the copy saved next to the
// predictions is complete.
type TrainConfig struct {
	Seed          int64          `yaml:"seed"`
	InputWidth    int            `yaml:"input_width"`
	InputHeight   int            `yaml:"input_height"`
	Scaler        string         `yaml:"scaler"`
	Architecture  string         `yaml:"architecture"`
	Encoder       string         `yaml:"encoder,omitempty"`
	EncoderWeight string         `yaml:"encoder_weight,omitempty"`
	Activation    string         `yaml:"activation,omitempty"`
	NClasses      int            `yaml:"n_classes"`
	Scheduler     string         `yaml:"scheduler,omitempty"`
	Extra         map[string]any `yaml:",inline"`
}

// LoadPredict reads and validates a predict.yaml file, filling defaults.
func LoadPredict(path string) (*PredictConfig, error) {
	var cfg PredictConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid predict config %q", path)
	}
	return &cfg, nil
}

// LoadTrain reads and validates a train.yaml file.
func LoadTrain(path string) (*TrainConfig, error) {
	var cfg TrainConfig
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid train config %q", path)
	}
	return &cfg, nil
}

func (cfg *PredictConfig) setDefaults() {
	if cfg.TileWidth == 0 {
		cfg.TileWidth = DefaultTileWidth
	}
	if cfg.InputName == "" {
		cfg.InputName = DefaultInputName
	}
	if cfg.OutputName == "" {
		cfg.OutputName = DefaultOutputName
	}
}

// Validate checks the run parameters.
func (cfg *PredictConfig) Validate() error {
	if cfg.TrainSerial == "" {
		return errors.New(`expected "train_serial"`)
	}
	if cfg.BatchSize <= 0 {
		return errors.Errorf(`"batch_size" must be positive, got %d`, cfg.BatchSize)
	}
	if cfg.NumWorkers < 0 {
		return errors.Errorf(`"num_workers" must not be negative, got %d`, cfg.NumWorkers)
	}
	if cfg.TileWidth <= 0 {
		return errors.Errorf(`"tile_width" must be positive, got %d`, cfg.TileWidth)
	}
	return nil
}

// Validate checks the training parameters inference relies on.
func (cfg *TrainConfig) Validate() error {
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		return errors.Errorf("input size must be positive, got %dx%d", cfg.InputWidth, cfg.InputHeight)
	}
	if cfg.NClasses <= 0 || cfg.NClasses > maxClasses {
		return errors.Errorf(`"n_classes" must be in [1, %d], got %d`, maxClasses, cfg.NClasses)
	}
	if cfg.Architecture == "" {
		return errors.New(`expected "architecture"`)
	}
	if cfg.Scaler == "" {
		return errors.New(`expected "scaler"`)
	}
	return nil
}

// Save writes v as YAML to path.
func Save(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %q", path)
	}
	return nil
}

func load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config %q", path)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to parse config %q", path)
	}
	return nil
}
