package predict

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/mchmarny/pricer/pkg/model"
	"github.com/mchmarny/pricer/pkg/schema"
	"github.com/mchmarny/pricer/pkg/table"
	"github.com/mchmarny/pricer/pkg/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixedPrediction = 21.50

var scenarioRow = []string{"0.2", "12.5", "7.0", "0", "0.5", "6.0", "60.0", "4.0", "5", "300.0", "18.0", "300.0", "12.0"}

// recordingModel returns a fixed value per row and keeps every call.
type recordingModel struct {
	calls    [][][]float64
	value    float64
	err      error
	short    bool
	features []string
}

func (m *recordingModel) Predict(X [][]float64) ([]float64, error) {
	m.calls = append(m.calls, X)
	if m.err != nil {
		return nil, m.err
	}
	n := len(X)
	if m.short {
		n--
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = m.value
	}
	return out, nil
}

func (m *recordingModel) Info() model.Info {
	return model.Info{Name: "recording", Version: "test", Features: m.features}
}

func newTestRunner(t *testing.T, m model.Model, opts ...Option) *Runner {
	t.Helper()
	a, err := NewAdapter(m, schema.Boston())
	require.NoError(t, err)
	r, err := NewRunner(a, opts...)
	require.NoError(t, err)
	return r
}

func scenarioTable(extra ...string) *table.Table {
	cols := append(schema.Boston().RequiredFields(), extra...)
	t := table.New(cols...)
	row := append([]string{}, scenarioRow...)
	for i := range extra {
		row = append(row, "extra-"+extra[i])
	}
	t.Rows = append(t.Rows, row)
	return t
}

func TestRunSingle_CallsAdapterOnce(t *testing.T) {
	m := &recordingModel{value: fixedPrediction}
	r := newTestRunner(t, m)

	got, err := r.RunSingle(table.Record(schema.Boston().Defaults()))
	require.NoError(t, err)
	assert.Equal(t, fixedPrediction, got)
	assert.False(t, math.IsInf(got, 0) || math.IsNaN(got))

	require.Len(t, m.calls, 1)
	require.Len(t, m.calls[0], 1)
	assert.Equal(t,
		[]float64{0.2, 12.5, 7.0, 0, 0.5, 6.0, 60.0, 4.0, 5, 300.0, 18.0, 300.0, 12.0},
		m.calls[0][0])
}

func TestRunSingle_Missing(t *testing.T) {
	m := &recordingModel{value: fixedPrediction}
	r := newTestRunner(t, m)

	rec := table.Record(schema.Boston().Defaults())
	delete(rec, schema.TAX)

	_, err := r.RunSingle(rec)
	var se *validate.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{schema.TAX}, se.Missing)
	assert.Empty(t, m.calls)
}

func TestRunSingle_OutOfDomain(t *testing.T) {
	rec := table.Record(schema.Boston().Defaults())
	rec[schema.RM] = 11

	_, err := newTestRunner(t, &recordingModel{}).RunSingle(rec)
	var se *validate.SchemaError
	require.True(t, errors.As(err, &se))
	require.Len(t, se.Violations, 1)

	_, err = newTestRunner(t, &recordingModel{}, WithSingleDomainCheck(false)).RunSingle(rec)
	assert.NoError(t, err)
}

func TestRunBatch_Scenario(t *testing.T) {
	m := &recordingModel{value: fixedPrediction}
	r := newTestRunner(t, m)

	in := scenarioTable()
	res, err := r.RunBatch(in)
	require.NoError(t, err)

	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, schema.PredictionColumn, res.Table.Columns[len(res.Table.Columns)-1])
	assert.Equal(t, "21.5", res.Table.Rows[0][len(res.Table.Columns)-1])
	assert.Equal(t, []float64{fixedPrediction}, res.Predictions)
	assert.Equal(t, fixedPrediction, res.Mean())

	// input is left untouched
	assert.Len(t, in.Columns, 13)
}

func TestRunBatch_MissingRM(t *testing.T) {
	m := &recordingModel{value: fixedPrediction}
	r := newTestRunner(t, m)

	in := scenarioTable()
	i := in.Index(schema.RM)
	in.Columns = append(in.Columns[:i], in.Columns[i+1:]...)
	in.Rows[0] = append(in.Rows[0][:i], in.Rows[0][i+1:]...)

	res, err := r.RunBatch(in)
	assert.Nil(t, res)
	var se *validate.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{schema.RM}, se.Missing)
	assert.Empty(t, m.calls)
}

func TestRunBatch_MissingIsSetDifference(t *testing.T) {
	r := newTestRunner(t, &recordingModel{})
	in := table.New("CRIM", "ZN", "other")

	_, err := r.RunBatch(in)
	var se *validate.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"INDUS", "CHAS", "NOX", "RM", "AGE", "DIS", "RAD", "TAX", "PTRATIO", "B", "LSTAT"}, se.Missing)
}

func TestRunBatch_PreservesRowsAndPassthrough(t *testing.T) {
	m := &recordingModel{value: fixedPrediction}
	r := newTestRunner(t, m)

	cols := append([]string{"id"}, schema.Boston().RequiredFields()...)
	cols = append(cols, "note")
	in := table.New(cols...)
	for _, id := range []string{"a", "b", "c", "d"} {
		row := append([]string{id}, scenarioRow...)
		row = append(row, "note "+id)
		in.Rows = append(in.Rows, row)
	}

	res, err := r.RunBatch(in)
	require.NoError(t, err)
	require.Equal(t, 4, res.Table.Len())
	assert.Equal(t, append(cols, schema.PredictionColumn), res.Table.Columns)
	for i, row := range res.Table.Rows {
		assert.Equal(t, in.Rows[i], row[:len(cols)])
	}

	require.Len(t, m.calls, 1)
	assert.Len(t, m.calls[0], 4)
}

func TestRunBatch_ReorderedColumns(t *testing.T) {
	m := &recordingModel{value: 1}
	r := newTestRunner(t, m)

	names := schema.Boston().RequiredFields()
	cols := make([]string, len(names))
	row := make([]string, len(names))
	for i := range names {
		j := len(names) - 1 - i
		cols[i] = names[j]
		row[i] = scenarioRow[j]
	}
	in := table.New(cols...)
	in.Rows = append(in.Rows, row)

	_, err := r.RunBatch(in)
	require.NoError(t, err)
	assert.Equal(t, 0.2, m.calls[0][0][0])
	assert.Equal(t, 12.0, m.calls[0][0][12])
}

func TestRunBatch_OverwritesPredictionColumn(t *testing.T) {
	r := newTestRunner(t, &recordingModel{value: fixedPrediction})
	in := scenarioTable(schema.PredictionColumn)

	res, err := r.RunBatch(in)
	require.NoError(t, err)
	assert.Len(t, res.Table.Columns, 14)
	assert.Equal(t, "21.5", res.Table.Rows[0][13])
}

func TestRunBatch_RaggedRows(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want string
	}{
		{"short", []string{"0.2", "12.5"}, "row 2: expected 13 fields, saw 2"},
		{"wide", append(append([]string{}, scenarioRow...), "spill"), "row 2: expected 13 fields, saw 14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &recordingModel{value: fixedPrediction}
			r := newTestRunner(t, m)
			in := scenarioTable()
			in.Rows = append(in.Rows, tt.row)
			before := in.Clone()

			res, err := r.RunBatch(in)
			assert.Nil(t, res)
			require.Error(t, err)
			var fe *table.InputFormatError
			require.True(t, errors.As(err, &fe))
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, m.calls)
			assert.Equal(t, before, in)
		})
	}
}

func TestRunBatch_DuplicateColumn(t *testing.T) {
	m := &recordingModel{value: fixedPrediction}
	r := newTestRunner(t, m)
	in := scenarioTable(schema.RM)

	res, err := r.RunBatch(in)
	assert.Nil(t, res)
	var fe *table.InputFormatError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, err.Error(), `duplicate column "RM"`)
	assert.Empty(t, m.calls)
}

func TestRunBatch_NonNumeric(t *testing.T) {
	r := newTestRunner(t, &recordingModel{value: fixedPrediction})
	in := scenarioTable()
	in.Rows[0][in.Index(schema.AGE)] = "old"

	res, err := r.RunBatch(in)
	assert.Nil(t, res)
	var se *ScoringError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, err.Error(), "AGE")
}

func TestRunBatch_ModelError(t *testing.T) {
	cause := errors.New("boom")
	r := newTestRunner(t, &recordingModel{err: cause})

	_, err := r.RunBatch(scenarioTable())
	var se *ScoringError
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, cause)
}

func TestRunBatch_ShortPredictions(t *testing.T) {
	r := newTestRunner(t, &recordingModel{short: true})
	_, err := r.RunBatch(scenarioTable())
	var se *ScoringError
	assert.True(t, errors.As(err, &se))
}

func TestRunBatch_Empty(t *testing.T) {
	m := &recordingModel{value: fixedPrediction}
	r := newTestRunner(t, m)

	res, err := r.RunBatch(table.New(schema.Boston().RequiredFields()...))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Table.Len())
	assert.True(t, res.Table.HasColumn(schema.PredictionColumn))
	assert.Empty(t, m.calls)
	assert.Equal(t, 0.0, res.Mean())
}

func TestRunBatch_Strict(t *testing.T) {
	in := scenarioTable()
	in.Rows[0][in.Index(schema.NOX)] = "1.5"

	_, err := newTestRunner(t, &recordingModel{value: 1}).RunBatch(in)
	assert.NoError(t, err)

	_, err = newTestRunner(t, &recordingModel{value: 1}, WithStrictBatch(true)).RunBatch(in)
	var se *validate.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Len(t, se.Violations, 1)
}

func TestRunBatch_ExportRoundTrip(t *testing.T) {
	r := newTestRunner(t, &recordingModel{value: fixedPrediction})
	res, err := r.RunBatch(scenarioTable("id"))
	require.NoError(t, err)

	b, err := table.ToDelimitedText(res.Table)
	require.NoError(t, err)

	back, err := table.ReadCSV(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, res.Table.Columns, back.Columns)
	assert.Equal(t, res.Table.Rows, back.Rows)
}

func TestRunBatch_DefaultModel(t *testing.T) {
	m, err := model.Default()
	require.NoError(t, err)
	r := newTestRunner(t, m)

	res, err := r.RunBatch(scenarioTable())
	require.NoError(t, err)
	assert.InDelta(t, 22.454, res.Predictions[0], 1e-3)
}

func TestNewAdapter_Errors(t *testing.T) {
	_, err := NewAdapter(nil, schema.Boston())
	assert.Error(t, err)

	_, err = NewAdapter(&recordingModel{}, nil)
	assert.Error(t, err)

	_, err = NewAdapter(&recordingModel{features: []string{"CRIM"}}, schema.Boston())
	assert.Error(t, err)

	reversed := schema.Boston().RequiredFields()
	reversed[0], reversed[1] = reversed[1], reversed[0]
	_, err = NewAdapter(&recordingModel{features: reversed}, schema.Boston())
	assert.Error(t, err)

	_, err = NewAdapter(&recordingModel{features: schema.Boston().RequiredFields()}, schema.Boston())
	assert.NoError(t, err)
}

func TestNewRunner_NilAdapter(t *testing.T) {
	_, err := NewRunner(nil)
	assert.Error(t, err)
}
