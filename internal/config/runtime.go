package config

import "fmt"

// Device selects where the network runs. A negative GPU means CPU.
type Device struct {
	GPU int
}

// CUDA reports whether a GPU was requested.
func (d Device) CUDA() bool {
	return d.GPU >= 0
}

func (d Device) String() string {
	if d.CUDA() {
		return fmt.Sprintf("cuda:%d", d.GPU)
	}
	return "cpu"
}

// Runtime carries the reproducibility and device settings of a run. It is
// passed explicitly to the components that need it instead of being set
// process-wide.
type Runtime struct {
	Seed   int64
	Device Device
}

// NewRuntime combines the run and training configuration.
func NewRuntime(p *PredictConfig, t *TrainConfig) Runtime {
	return Runtime{Seed: t.Seed, Device: Device{GPU: p.GPUNum}}
}
