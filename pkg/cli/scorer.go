package cli

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mchmarny/pricer/pkg/data"
	"github.com/mchmarny/pricer/pkg/metrics"
	"github.com/mchmarny/pricer/pkg/predict"
	"github.com/mchmarny/pricer/pkg/table"
	"github.com/mchmarny/pricer/pkg/validate"
)

// scorer runs predictions and keeps metrics and history in step with them.
type scorer struct {
	runner  *predict.Runner
	db      *sql.DB
	metrics *metrics.Metrics
}

func (s *scorer) single(rec table.Record, source string) (float64, error) {
	start := time.Now()

	p, err := s.runner.RunSingle(rec)
	if err != nil {
		s.metrics.ObserveError(data.ModeSingle, errorKind(err))
		return 0, err
	}
	s.metrics.ObserveRun(data.ModeSingle, 1, time.Since(start))

	s.record(&data.Run{
		Mode:     data.ModeSingle,
		Source:   source,
		Rows:     1,
		Mean:     p,
		Features: rec,
	}, start)
	return p, nil
}

func (s *scorer) batch(r io.Reader, source string) (*predict.Result, error) {
	start := time.Now()

	t, err := table.ReadCSV(r)
	if err != nil {
		s.metrics.ObserveError(data.ModeBatch, errorKind(err))
		return nil, err
	}

	res, err := s.runner.RunBatch(t)
	if err != nil {
		s.metrics.ObserveError(data.ModeBatch, errorKind(err))
		return nil, err
	}
	s.metrics.ObserveRun(data.ModeBatch, res.Table.Len(), time.Since(start))

	s.record(&data.Run{
		Mode:   data.ModeBatch,
		Source: source,
		Rows:   res.Table.Len(),
		Mean:   res.Mean(),
	}, start)
	return res, nil
}

// record saves r to the history store. Failures are logged, never returned.
func (s *scorer) record(r *data.Run, start time.Time) {
	if s.db == nil {
		return
	}
	info := s.runner.Adapter().Model()
	r.ModelName = info.Name
	r.ModelVersion = info.Version
	r.Duration = time.Since(start)

	if _, err := data.SaveRun(s.db, r); err != nil {
		slog.Warn("failed to record run", "mode", r.Mode, "error", err)
	}
}

// requestError is a malformed request that never reached the runner.
type requestError struct {
	cause error
}

func (e *requestError) Error() string {
	return e.cause.Error()
}

func (e *requestError) Unwrap() error {
	return e.cause
}

// errorKind labels err for metrics.
func errorKind(err error) string {
	var se *validate.SchemaError
	var ce *predict.ScoringError
	var fe *table.InputFormatError
	var me *http.MaxBytesError
	var re *requestError
	switch {
	case errors.As(err, &me):
		return "too_large"
	case errors.As(err, &se):
		return "schema"
	case errors.As(err, &ce):
		return "scoring"
	case errors.As(err, &fe):
		return "input"
	case errors.As(err, &re):
		return "request"
	default:
		return "internal"
	}
}

// errorStatus maps err to the HTTP status reported to clients.
func errorStatus(err error) int {
	switch errorKind(err) {
	case "schema", "scoring":
		return http.StatusUnprocessableEntity
	case "input", "request":
		return http.StatusBadRequest
	case "too_large":
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
