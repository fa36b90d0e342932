package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/popspot/ragengine"
)

// Overlay adjusts built-in strategy descriptions and display texts from a
// config file, so operators can tune planner-visible wording and status
// messages without a rebuild. Prompts, categories, and tool policies are not
// overridable.
type Overlay struct {
	Strategies []OverlayEntry `yaml:"strategies"`
}

// OverlayEntry carries the overridable fields for one strategy. Empty fields
// leave the built-in value in place.
type OverlayEntry struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Label       string `yaml:"label"`
	InProgress  string `yaml:"in_progress"`
	Completed   string `yaml:"completed"`
}

// OverlayLoader defines an interface for loading an Overlay from a source
// (e.g., file, bytes, etc.).
type OverlayLoader interface {
	Load(source string) (*Overlay, error)
	Format() string // e.g., "yaml", "json"
}

// loaderRegistry holds registered OverlayLoaders by format name.
var loaderRegistry = make(map[string]OverlayLoader)

// RegisterOverlayLoader registers a new OverlayLoader for a given format.
func RegisterOverlayLoader(loader OverlayLoader) {
	loaderRegistry[loader.Format()] = loader
}

// GetOverlayLoader retrieves a loader by format name (e.g., "yaml").
func GetOverlayLoader(format string) (OverlayLoader, bool) {
	loader, ok := loaderRegistry[format]
	return loader, ok
}

// YAMLLoader implements OverlayLoader for YAML files.
type YAMLLoader struct{}

func (YAMLLoader) Load(path string) (*Overlay, error) {
	return LoadOverlayFile(path)
}

func (YAMLLoader) Format() string { return "yaml" }

func init() {
	RegisterOverlayLoader(YAMLLoader{})
}

// LoadOverlayFile parses a YAML overlay file and returns an Overlay struct.
func LoadOverlayFile(path string) (*Overlay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open overlay file: %w", err)
	}
	defer f.Close()
	var overlay Overlay
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&overlay); err != nil {
		return nil, fmt.Errorf("failed to parse overlay YAML: %w", err)
	}
	return &overlay, nil
}

// Validate checks the overlay for duplicate ids and entries that do not
// match any built-in strategy.
func (o *Overlay) Validate() error {
	known := make(map[string]struct{})
	for _, desc := range Builtin() {
		known[desc.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(o.Strategies))
	for _, entry := range o.Strategies {
		if entry.ID == "" {
			return fmt.Errorf("overlay entry is missing an id")
		}
		if _, dup := seen[entry.ID]; dup {
			return fmt.Errorf("duplicate overlay entry for strategy '%s'", entry.ID)
		}
		seen[entry.ID] = struct{}{}
		if _, ok := known[entry.ID]; !ok {
			return fmt.Errorf("overlay references unknown strategy '%s'", entry.ID)
		}
	}
	return nil
}

// Apply returns a copy of descriptors with the overlay's non-empty fields
// substituted in.
func (o *Overlay) Apply(descriptors []ragengine.StrategyDescriptor) []ragengine.StrategyDescriptor {
	byID := make(map[string]OverlayEntry, len(o.Strategies))
	for _, entry := range o.Strategies {
		byID[entry.ID] = entry
	}

	out := make([]ragengine.StrategyDescriptor, len(descriptors))
	copy(out, descriptors)
	for i := range out {
		entry, ok := byID[out[i].ID]
		if !ok {
			continue
		}
		if entry.Description != "" {
			out[i].Description = entry.Description
		}
		if entry.Label != "" {
			out[i].Display.Label = entry.Label
		}
		if entry.InProgress != "" {
			out[i].Display.InProgress = entry.InProgress
		}
		if entry.Completed != "" {
			out[i].Display.Completed = entry.Completed
		}
	}
	return out
}

// LoadAndValidateOverlay loads an overlay file using the default loader
// (YAML) and validates it against the built-in strategy set.
func LoadAndValidateOverlay(path string) (*Overlay, error) {
	loader, ok := GetOverlayLoader("yaml")
	if !ok {
		return nil, fmt.Errorf("no YAML overlay loader registered")
	}

	overlay, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	if err := overlay.Validate(); err != nil {
		return nil, err
	}
	return overlay, nil
}
