package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mchmarny/pricer/pkg/schema"
	"github.com/mchmarny/pricer/pkg/table"
)

// Violation is a value outside the domain of its feature. Row is 1-based
// for table checks and 0 for single records.
type Violation struct {
	Row    int     `json:"row,omitempty" yaml:"row,omitempty"`
	Name   string  `json:"name" yaml:"name"`
	Value  float64 `json:"value" yaml:"value"`
	Domain string  `json:"domain" yaml:"domain"`
}

func (v Violation) String() string {
	s := fmt.Sprintf("%s=%s not in %s", v.Name, table.FormatFloat(v.Value), v.Domain)
	if v.Row > 0 {
		s = fmt.Sprintf("row %d: %s", v.Row, s)
	}
	return s
}

// Result is the outcome of validating a record.
type Result struct {
	Missing     []string    `json:"missing,omitempty" yaml:"missing,omitempty"`
	OutOfDomain []Violation `json:"out_of_domain,omitempty" yaml:"out_of_domain,omitempty"`
}

// Valid reports whether no field is missing or out of domain.
func (r Result) Valid() bool {
	return len(r.Missing) == 0 && len(r.OutOfDomain) == 0
}

// Err returns nil for a valid result and a *SchemaError otherwise.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &SchemaError{Missing: r.Missing, Violations: r.OutOfDomain}
}

// SchemaError reports input that does not satisfy the feature schema.
type SchemaError struct {
	Missing    []string
	Violations []Violation
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Violations) > 0 {
		vs := make([]string, len(e.Violations))
		for i, v := range e.Violations {
			vs[i] = v.String()
		}
		parts = append(parts, "out of domain: "+strings.Join(vs, "; "))
	}
	return strings.Join(parts, "; ")
}

// Option configures a Validator.
type Option func(*Validator)

// WithDomainCheck turns value domain checks on or off.
func WithDomainCheck(on bool) Option {
	return func(v *Validator) {
		v.checkDomain = on
	}
}

// Validator checks records and tables against a schema.
type Validator struct {
	schema      *schema.Schema
	checkDomain bool
}

// New creates a validator for s. Domain checks are on unless disabled.
func New(s *schema.Schema, opts ...Option) *Validator {
	v := &Validator{schema: s, checkDomain: true}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate checks that rec has every schema field and, when enabled, that
// each value lies within its domain. Missing names are in schema order.
func (v *Validator) Validate(rec table.Record) Result {
	var res Result
	for _, f := range v.schema.Features() {
		val, ok := rec[f.Name]
		if !ok {
			res.Missing = append(res.Missing, f.Name)
			continue
		}
		if v.checkDomain && !f.Domain.Contains(val) {
			res.OutOfDomain = append(res.OutOfDomain, Violation{
				Name:   f.Name,
				Value:  val,
				Domain: f.Domain.String(),
			})
		}
	}
	return res
}

// ValidateTable checks the column set of t once, not per row. When domain
// checks are enabled every parseable required cell is also checked; cells that
// do not parse are left for the scorer to report.
func (v *Validator) ValidateTable(t *table.Table) error {
	if missing := MissingColumns(t.Columns, v.schema); len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}

	if !v.checkDomain {
		return nil
	}

	var violations []Violation
	for _, f := range v.schema.Features() {
		col := t.Index(f.Name)
		for r, row := range t.Rows {
			val, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			if err != nil || math.IsNaN(val) {
				continue
			}
			if !f.Domain.Contains(val) {
				violations = append(violations, Violation{
					Row:    r + 1,
					Name:   f.Name,
					Value:  val,
					Domain: f.Domain.String(),
				})
			}
		}
	}

	if len(violations) > 0 {
		return &SchemaError{Violations: violations}
	}
	return nil
}

// MissingColumns returns the schema names absent from columns, in schema order.
func MissingColumns(columns []string, s *schema.Schema) []string {
	have := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		have[c] = struct{}{}
	}

	var missing []string
	for _, name := range s.RequiredFields() {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
