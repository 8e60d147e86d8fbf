package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mchmarny/pricer/pkg/data"
	"github.com/mchmarny/pricer/pkg/logging"
	"github.com/mchmarny/pricer/pkg/metrics"
	"github.com/mchmarny/pricer/pkg/model"
	"github.com/mchmarny/pricer/pkg/predict"
	"github.com/mchmarny/pricer/pkg/schema"
	"github.com/mchmarny/pricer/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// defaultPrediction is the embedded model's value for the form defaults.
const defaultPrediction = 22.454

func TestMain(m *testing.M) {
	logging.SetDefaultCLILogger("error")
	os.Exit(m.Run())
}

func newTestScorer(t *testing.T) *scorer {
	t.Helper()

	m, err := model.Default()
	require.NoError(t, err)
	a, err := predict.NewAdapter(m, schema.Boston())
	require.NoError(t, err)
	r, err := predict.NewRunner(a)
	require.NoError(t, err)

	dsn := filepath.Join(t.TempDir(), data.DataFileName)
	require.NoError(t, data.Init(dsn))
	db, err := data.GetDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &scorer{runner: r, db: db, metrics: metrics.New()}
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFormat := stdout, outputFormat
	stdout = &buf
	t.Cleanup(func() {
		stdout = prevOut
		outputFormat = prevFormat
	})
	return &buf
}

// defaultRow is the form defaults as CSV cells in schema order.
func defaultRow() []string {
	s := schema.Boston()
	return table.FromRecord(s.Defaults(), s.RequiredFields()).Rows[0]
}

func writeCSV(t *testing.T, dir, name string, columns []string, rows ...[]string) string {
	t.Helper()
	tb := table.New(columns...)
	tb.Rows = append(tb.Rows, rows...)
	b, err := table.ToDelimitedText(tb)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, b, outputFileMode))
	return path
}

func TestEncode(t *testing.T) {
	buf := captureOutput(t)
	v := map[string]int{"rows": 3}

	outputFormat = formatJSON
	require.NoError(t, encode(v))
	assert.JSONEq(t, `{"rows": 3}`, buf.String())

	buf.Reset()
	outputFormat = formatYAML
	require.NoError(t, encode(v))
	assert.Equal(t, "rows: 3\n", buf.String())
}

func TestApp_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	buf := captureOutput(t)

	run := func(args ...string) []byte {
		t.Helper()
		buf.Reset()
		base := []string{appName, "--config-dir", dir, "--format", formatJSON}
		require.NoError(t, newApp().Run(context.Background(), append(base, args...)))
		return buf.Bytes()
	}

	t.Run("schema", func(t *testing.T) {
		var list []*FeatureView
		require.NoError(t, json.Unmarshal(run("schema"), &list))
		require.Len(t, list, 13)
		assert.Equal(t, schema.CRIM, list[0].Name)
		assert.Equal(t, schema.LSTAT, list[12].Name)
		assert.Equal(t, "{0, 1}", list[3].Domain)
	})

	t.Run("predict", func(t *testing.T) {
		var res SinglePrediction
		require.NoError(t, json.Unmarshal(run("predict", "--RM", "6.0"), &res))
		assert.InDelta(t, defaultPrediction, res.Prediction, 1e-3)
		assert.Equal(t, 6.0, res.Features[schema.RM])
		assert.Equal(t, "boston-ols", res.Model.Name)
	})

	t.Run("batch", func(t *testing.T) {
		cols := append(schema.Boston().RequiredFields(), "id")
		in := writeCSV(t, dir, "houses.csv", cols,
			append(defaultRow(), "a"),
			append(defaultRow(), "b"),
		)
		outDir := filepath.Join(dir, "out")

		var list []*BatchSummary
		require.NoError(t, json.Unmarshal(run("batch", "--file", in, "--out", outDir), &list))
		require.Len(t, list, 1)
		assert.Equal(t, 2, list[0].Rows)
		assert.Equal(t, filepath.Join(outDir, table.FileName), list[0].Output)
		assert.InDelta(t, defaultPrediction, list[0].Mean, 1e-3)

		f, err := os.Open(list[0].Output)
		require.NoError(t, err)
		defer f.Close()
		got, err := table.ReadCSV(f)
		require.NoError(t, err)
		assert.Equal(t, append(cols, schema.PredictionColumn), got.Columns)
		assert.Equal(t, "a", got.Rows[0][13])
		assert.Equal(t, "b", got.Rows[1][13])
	})

	t.Run("history", func(t *testing.T) {
		var res HistoryResult
		require.NoError(t, json.Unmarshal(run("history", "--limit", "10"), &res))
		require.Len(t, res.Runs, 2)
		assert.Equal(t, data.ModeBatch, res.Runs[0].Mode)
		assert.Equal(t, "houses.csv", res.Runs[0].Source)
		assert.Equal(t, data.ModeSingle, res.Runs[1].Mode)
		assert.Equal(t, int64(1), res.Stats.Runs[data.ModeSingle])
		assert.Equal(t, int64(2), res.Stats.Rows[data.ModeBatch])
	})

	t.Run("model info", func(t *testing.T) {
		var info model.Info
		require.NoError(t, json.Unmarshal(run("model", "info"), &info))
		assert.Equal(t, "boston-ols", info.Name)
		assert.Equal(t, model.DefaultSource, info.Source)
	})
}

func TestApp_PredictOutOfDomain(t *testing.T) {
	captureOutput(t)
	args := []string{appName, "--config-dir", t.TempDir(), "--format", formatJSON, "predict", "--NOX", "1.5"}

	err := newApp().Run(context.Background(), args)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "NOX"))
}

func TestApp_PredictClamp(t *testing.T) {
	buf := captureOutput(t)
	args := []string{appName, "--config-dir", t.TempDir(), "--format", formatJSON, "predict", "--NOX", "1.5", "--RAD", "30", "--clamp"}

	require.NoError(t, newApp().Run(context.Background(), args))
	var res SinglePrediction
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.Equal(t, 1.0, res.Features[schema.NOX])
	assert.Equal(t, 24.0, res.Features[schema.RAD])
	assert.False(t, math.IsNaN(res.Prediction))
}
