package predict

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mchmarny/pricer/pkg/model"
	"github.com/mchmarny/pricer/pkg/schema"
	"github.com/mchmarny/pricer/pkg/table"
)

// ScoringError wraps a failure of the underlying scoring call.
type ScoringError struct {
	Cause error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring failed: %v", e.Cause)
}

func (e *ScoringError) Unwrap() error {
	return e.Cause
}

// Adapter feeds schema-ordered feature vectors to a loaded model.
type Adapter struct {
	model  model.Model
	schema *schema.Schema
}

// NewAdapter binds m to s. When the model lists its features they must match
// the schema names and order exactly.
func NewAdapter(m model.Model, s *schema.Schema) (*Adapter, error) {
	if m == nil {
		return nil, errors.New("model required")
	}
	if s == nil {
		return nil, errors.New("schema required")
	}

	if features := m.Info().Features; len(features) > 0 {
		want := s.RequiredFields()
		if len(features) != len(want) {
			return nil, fmt.Errorf("model expects %d features, schema has %d", len(features), len(want))
		}
		for i := range want {
			if features[i] != want[i] {
				return nil, fmt.Errorf("model feature %d is %s, schema expects %s", i, features[i], want[i])
			}
		}
	}

	return &Adapter{model: m, schema: s}, nil
}

// Model returns the identity of the bound model.
func (a *Adapter) Model() model.Info {
	return a.model.Info()
}

// Score returns one prediction per row of t in row order. Parse and model
// failures are returned as *ScoringError.
func (a *Adapter) Score(t *table.Table) ([]float64, error) {
	X, err := a.matrix(t)
	if err != nil {
		return nil, &ScoringError{Cause: err}
	}

	y, err := a.model.Predict(X)
	if err != nil {
		return nil, &ScoringError{Cause: err}
	}

	if len(y) != len(X) {
		return nil, &ScoringError{Cause: fmt.Errorf("model returned %d predictions for %d rows", len(y), len(X))}
	}
	return y, nil
}

func (a *Adapter) matrix(t *table.Table) ([][]float64, error) {
	names := a.schema.RequiredFields()
	cols := make([]int, len(names))
	for i, n := range names {
		cols[i] = t.Index(n)
		if cols[i] < 0 {
			return nil, fmt.Errorf("column %s not found", n)
		}
	}

	X := make([][]float64, len(t.Rows))
	for r, row := range t.Rows {
		vec := make([]float64, len(cols))
		for i, c := range cols {
			cell := strings.TrimSpace(row[c])
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("could not convert %q to float in column %s, row %d", cell, names[i], r+1)
			}
			vec[i] = v
		}
		X[r] = vec
	}
	return X, nil
}
