// Package scheduler provides the learning-rate schedules a training config
// may name.
package scheduler

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// ErrUnsupportedScheduler is returned by Lookup for unknown names.
var ErrUnsupportedScheduler = errors.New("unsupported scheduler")

// Params holds the hyper-parameters of every schedule; each schedule reads
// only the fields it needs.
type Params struct {
	BaseLR float64
	EtaMin float64
	// TMax is the half period of CosineAnnealingLR, in epochs.
	TMax int
	// T0 and TMult shape the restart periods of CosineAnnealingWarmRestarts.
	T0    int
	TMult int
	Gamma float64
}

// Schedule returns the learning rate for an epoch.
type Schedule interface {
	LR(epoch int) float64
}

// Constructor builds a schedule.
type Constructor func(Params) (Schedule, error)

var constructors = map[string]Constructor{
	"CosineAnnealingLR":           newCosineAnnealing,
	"CosineAnnealingWarmRestarts": newWarmRestarts,
	"ExponentialLR":               newExponential,
}

// Lookup returns the constructor registered under name.
func Lookup(name string) (Constructor, error) {
	c, ok := constructors[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedScheduler, "%q (known: %v)", name, Names())
	}
	return c, nil
}

// Names lists the registered schedules.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func cosine(base, etaMin, cur, period float64) float64 {
	return etaMin + (base-etaMin)*(1+math.Cos(math.Pi*cur/period))/2
}

type cosineAnnealing struct {
	p Params
}

func newCosineAnnealing(p Params) (Schedule, error) {
	if p.TMax <= 0 {
		return nil, errors.Errorf("CosineAnnealingLR needs a positive TMax, got %d", p.TMax)
	}
	return cosineAnnealing{p: p}, nil
}

// LR follows the closed form, which keeps oscillating past TMax.
func (s cosineAnnealing) LR(epoch int) float64 {
	return cosine(s.p.BaseLR, s.p.EtaMin, float64(epoch), float64(s.p.TMax))
}

type warmRestarts struct {
	p Params
}

func newWarmRestarts(p Params) (Schedule, error) {
	if p.T0 <= 0 {
		return nil, errors.Errorf("CosineAnnealingWarmRestarts needs a positive T0, got %d", p.T0)
	}
	if p.TMult == 0 {
		p.TMult = 1
	}
	if p.TMult < 1 {
		return nil, errors.Errorf("CosineAnnealingWarmRestarts needs TMult >= 1, got %d", p.TMult)
	}
	return warmRestarts{p: p}, nil
}

func (s warmRestarts) LR(epoch int) float64 {
	cur, period := epoch, s.p.T0
	for cur >= period {
		cur -= period
		period *= s.p.TMult
	}
	return cosine(s.p.BaseLR, s.p.EtaMin, float64(cur), float64(period))
}

type exponential struct {
	p Params
}

func newExponential(p Params) (Schedule, error) {
	if p.Gamma <= 0 {
		return nil, errors.Errorf("ExponentialLR needs a positive Gamma, got %g", p.Gamma)
	}
	return exponential{p: p}, nil
}

func (s exponential) LR(epoch int) float64 {
	return s.p.BaseLR * math.Pow(s.p.Gamma, float64(epoch))
}
