package resolve

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/bookmeta/internal/provider"
)

// FieldPriority names up to three providers for one field. P1 has the
// highest precedence, P3 the lowest. Empty slots are unused.
type FieldPriority struct {
	P3 provider.ID `yaml:"p3,omitempty" json:"p3,omitempty"`
	P2 provider.ID `yaml:"p2,omitempty" json:"p2,omitempty"`
	P1 provider.ID `yaml:"p1,omitempty" json:"p1,omitempty"`
}

// ascending returns the slots from lowest to highest precedence.
func (fp FieldPriority) ascending() []provider.ID {
	return []provider.ID{fp.P3, fp.P2, fp.P1}
}

// IsZero reports whether no slot is set.
func (fp FieldPriority) IsZero() bool {
	return fp.P1 == "" && fp.P2 == "" && fp.P3 == ""
}

// FieldOptions holds per-field priorities. Fields left zero fall back to the
// global cascade.
type FieldOptions struct {
	Title       FieldPriority `yaml:"title,omitempty" json:"title,omitzero"`
	Description FieldPriority `yaml:"description,omitempty" json:"description,omitzero"`
	Authors     FieldPriority `yaml:"authors,omitempty" json:"authors,omitzero"`
	Categories  FieldPriority `yaml:"categories,omitempty" json:"categories,omitzero"`
	Cover       FieldPriority `yaml:"cover,omitempty" json:"cover,omitzero"`
}

func (f FieldOptions) all() []FieldPriority {
	return []FieldPriority{f.Title, f.Description, f.Authors, f.Categories, f.Cover}
}

// RefreshOptions controls which providers feed which fields during a refresh.
type RefreshOptions struct {
	AllP3 provider.ID `yaml:"allP3,omitempty" json:"allP3,omitempty"`
	AllP2 provider.ID `yaml:"allP2,omitempty" json:"allP2,omitempty"`
	AllP1 provider.ID `yaml:"allP1" json:"allP1"`

	FieldOptions FieldOptions `yaml:"fieldOptions,omitempty" json:"fieldOptions,omitzero"`

	MergeCategories bool `yaml:"mergeCategories" json:"mergeCategories"`
	RefreshCovers   bool `yaml:"refreshCovers" json:"refreshCovers"`
}

// ErrNoFallbackProvider is returned by Validate when AllP1 is unset.
var ErrNoFallbackProvider = errors.New("refresh options: allP1 is required")

// Fallback returns the global cascade as a FieldPriority.
func (o RefreshOptions) Fallback() FieldPriority {
	return FieldPriority{P3: o.AllP3, P2: o.AllP2, P1: o.AllP1}
}

// Validate checks that the options name at least the fallback provider.
func (o RefreshOptions) Validate() error {
	if o.AllP1 == "" {
		return ErrNoFallbackProvider
	}
	return nil
}

// Providers returns every provider the options refer to, deduplicated, in
// order of first mention: the fallback cascade P1 to P3, then each field.
func (o RefreshOptions) Providers() []provider.ID {
	var out []provider.ID
	add := func(fp FieldPriority) {
		for _, id := range []provider.ID{fp.P1, fp.P2, fp.P3} {
			if id != "" && !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
	}
	add(o.Fallback())
	for _, fp := range o.FieldOptions.all() {
		add(fp)
	}
	return out
}

// Uses reports whether any slot names id.
func (o RefreshOptions) Uses(id provider.ID) bool {
	return slices.Contains(o.Providers(), id)
}

// LoadOptions reads refresh options from a YAML file and validates them.
// Unknown provider names are rejected while decoding.
func LoadOptions(path string) (RefreshOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RefreshOptions{}, fmt.Errorf("reading refresh options: %w", err)
	}
	return ParseOptions(data)
}

// ParseOptions decodes and validates YAML refresh options.
func ParseOptions(data []byte) (RefreshOptions, error) {
	var opts RefreshOptions
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return RefreshOptions{}, fmt.Errorf("parsing refresh options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return RefreshOptions{}, err
	}
	return opts, nil
}
