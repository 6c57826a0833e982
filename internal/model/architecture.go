package model

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrUnsupportedArchitecture is returned for architecture names with no export path.
var ErrUnsupportedArchitecture = errors.New("unsupported architecture")

// Architecture is a segmentation network family the exported models may come from.
type Architecture struct {
	Name string
	// NeedsEncoder is false for networks that carry their own backbone.
	NeedsEncoder bool
}

var architectures = map[string]Architecture{
	"Unet":          {Name: "Unet", NeedsEncoder: true},
	"UnetPlusPlus":  {Name: "UnetPlusPlus", NeedsEncoder: true},
	"MAnet":         {Name: "MAnet", NeedsEncoder: true},
	"Linknet":       {Name: "Linknet", NeedsEncoder: true},
	"FPN":           {Name: "FPN", NeedsEncoder: true},
	"PSPNet":        {Name: "PSPNet", NeedsEncoder: true},
	"PAN":           {Name: "PAN", NeedsEncoder: true},
	"DeepLabV3":     {Name: "DeepLabV3", NeedsEncoder: true},
	"DeepLabV3Plus": {Name: "DeepLabV3Plus", NeedsEncoder: true},
	"Lawin":         {Name: "Lawin"},
}

// LookupArchitecture resolves an architecture name from the training config.
func LookupArchitecture(name string) (Architecture, error) {
	arch, ok := architectures[name]
	if !ok {
		return Architecture{}, errors.Wrapf(ErrUnsupportedArchitecture, "%q (known: %v)", name, Architectures())
	}
	return arch, nil
}

// Architectures lists the supported names.
func Architectures() []string {
	names := make([]string, 0, len(architectures))
	for name := range architectures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
