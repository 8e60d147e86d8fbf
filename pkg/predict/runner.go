package predict

import (
	"errors"

	"github.com/mchmarny/pricer/pkg/schema"
	"github.com/mchmarny/pricer/pkg/table"
	"github.com/mchmarny/pricer/pkg/validate"
)

// Result is a scored table: the input with the prediction column set, plus
// the raw predictions in row order.
type Result struct {
	Table       *table.Table `json:"table" yaml:"table"`
	Predictions []float64    `json:"predictions" yaml:"predictions"`
}

// Mean returns the average prediction, or 0 for an empty result.
func (r *Result) Mean() float64 {
	if len(r.Predictions) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range r.Predictions {
		sum += p
	}
	return sum / float64(len(r.Predictions))
}

// Option configures a Runner.
type Option func(*Runner)

// WithStrictBatch enables domain checks on every batch row.
func WithStrictBatch(on bool) Option {
	return func(r *Runner) {
		r.batch = validate.New(r.schema, validate.WithDomainCheck(on))
	}
}

// WithSingleDomainCheck turns domain checks for single records on or off.
func WithSingleDomainCheck(on bool) Option {
	return func(r *Runner) {
		r.single = validate.New(r.schema, validate.WithDomainCheck(on))
	}
}

// Runner validates input, scores it and attaches predictions.
type Runner struct {
	schema  *schema.Schema
	adapter *Adapter
	batch   *validate.Validator
	single  *validate.Validator
}

// NewRunner creates a runner. Batch input is checked for presence of columns
// only; single records are also checked against feature domains.
func NewRunner(a *Adapter, opts ...Option) (*Runner, error) {
	if a == nil {
		return nil, errors.New("adapter required")
	}

	r := &Runner{
		schema:  a.schema,
		adapter: a,
		batch:   validate.New(a.schema, validate.WithDomainCheck(false)),
		single:  validate.New(a.schema),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Adapter returns the scoring adapter used by the runner.
func (r *Runner) Adapter() *Adapter {
	return r.adapter
}

// Schema returns the feature schema used by the runner.
func (r *Runner) Schema() *schema.Schema {
	return r.schema
}

// RunBatch scores every row of t and returns a copy of t with the prediction
// column appended. The whole batch fails on the first error; t is not modified.
// A ragged table or one with repeated column names is an *table.InputFormatError.
func (r *Runner) RunBatch(t *table.Table) (*Result, error) {
	if t == nil {
		return nil, errors.New("table required")
	}

	if err := t.Check(); err != nil {
		return nil, err
	}

	if err := r.batch.ValidateTable(t); err != nil {
		return nil, err
	}

	preds := []float64{}
	if t.Len() > 0 {
		var err error
		if preds, err = r.adapter.Score(t); err != nil {
			return nil, err
		}
	}

	out := t.Clone()
	values := make([]string, len(preds))
	for i, p := range preds {
		values[i] = table.FormatFloat(p)
	}
	if err := out.SetColumn(schema.PredictionColumn, values); err != nil {
		return nil, err
	}

	return &Result{Table: out, Predictions: preds}, nil
}

// RunSingle scores one record as a one-row, schema-ordered table.
func (r *Runner) RunSingle(rec table.Record) (float64, error) {
	if err := r.single.Validate(rec).Err(); err != nil {
		return 0, err
	}

	preds, err := r.adapter.Score(table.FromRecord(rec, r.schema.RequiredFields()))
	if err != nil {
		return 0, err
	}
	return preds[0], nil
}
