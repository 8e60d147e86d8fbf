package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Domain describes the values a feature may take. A nil Min or Max leaves
// that side of the range open. When Values is set, the value must be one of them.
type Domain struct {
	Min     *float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64  `json:"max,omitempty" yaml:"max,omitempty"`
	Values  []float64 `json:"values,omitempty" yaml:"values,omitempty"`
	Integer bool      `json:"integer,omitempty" yaml:"integer,omitempty"`
}

// Contains reports whether v satisfies the domain.
func (d Domain) Contains(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if len(d.Values) > 0 {
		for _, allowed := range d.Values {
			if v == allowed {
				return true
			}
		}
		return false
	}
	if d.Integer && v != math.Trunc(v) {
		return false
	}
	if d.Min != nil && v < *d.Min {
		return false
	}
	if d.Max != nil && v > *d.Max {
		return false
	}
	return true
}

// Clamp returns v moved into the range, the way a bounded form input does.
// Discrete domains return v unchanged.
func (d Domain) Clamp(v float64) float64 {
	if len(d.Values) > 0 {
		return v
	}
	if d.Min != nil && v < *d.Min {
		v = *d.Min
	}
	if d.Max != nil && v > *d.Max {
		v = *d.Max
	}
	if d.Integer {
		v = math.Round(v)
	}
	return v
}

func (d Domain) String() string {
	if len(d.Values) > 0 {
		parts := make([]string, 0, len(d.Values))
		for _, v := range d.Values {
			parts = append(parts, formatFloat(v))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}

	lo, hi := "-inf", "+inf"
	if d.Min != nil {
		lo = formatFloat(*d.Min)
	}
	if d.Max != nil {
		hi = formatFloat(*d.Max)
	}
	s := fmt.Sprintf("[%s, %s]", lo, hi)
	if d.Integer {
		s = "integer " + s
	}
	return s
}

// Feature is a single named model input.
type Feature struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Domain      Domain  `json:"domain" yaml:"domain"`
	Default     float64 `json:"default" yaml:"default"`
}

// Schema is an immutable ordered list of features. The order is the
// positional order the scoring model expects.
type Schema struct {
	features []Feature
	index    map[string]int
}

// New creates a schema from the given features. Names must be unique and non-empty.
func New(features ...Feature) (*Schema, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("schema requires at least one feature")
	}

	s := &Schema{
		features: make([]Feature, len(features)),
		index:    make(map[string]int, len(features)),
	}
	for i, f := range features {
		if f.Name == "" {
			return nil, fmt.Errorf("feature at position %d has no name", i)
		}
		if _, ok := s.index[f.Name]; ok {
			return nil, fmt.Errorf("duplicate feature name: %s", f.Name)
		}
		s.index[f.Name] = i
		s.features[i] = f
	}
	return s, nil
}

// RequiredFields returns the ordered feature names.
func (s *Schema) RequiredFields() []string {
	names := make([]string, len(s.features))
	for i, f := range s.features {
		names[i] = f.Name
	}
	return names
}

// DomainOf returns the domain of the named feature.
func (s *Schema) DomainOf(name string) (Domain, bool) {
	f, ok := s.Feature(name)
	if !ok {
		return Domain{}, false
	}
	return f.Domain, true
}

// Feature returns the named feature.
func (s *Schema) Feature(name string) (Feature, bool) {
	i, ok := s.index[name]
	if !ok {
		return Feature{}, false
	}
	return s.features[i], true
}

// Features returns a copy of the ordered features.
func (s *Schema) Features() []Feature {
	out := make([]Feature, len(s.features))
	copy(out, s.features)
	return out
}

// Defaults returns the default value of every feature keyed by name.
func (s *Schema) Defaults() map[string]float64 {
	m := make(map[string]float64, len(s.features))
	for _, f := range s.features {
		m[f.Name] = f.Default
	}
	return m
}

// Clamp returns a copy of values with every known feature moved into its
// domain. Unknown names are copied as is.
func (s *Schema) Clamp(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for name, v := range values {
		if i, ok := s.index[name]; ok {
			v = s.features[i].Domain.Clamp(v)
		}
		out[name] = v
	}
	return out
}

// Len returns the number of features.
func (s *Schema) Len() int {
	return len(s.features)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
