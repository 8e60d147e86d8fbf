package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/mchmarny/pricer/pkg/data"
	"github.com/mchmarny/pricer/pkg/model"
	"github.com/mchmarny/pricer/pkg/table"
)

const (
	uploadFieldName     = "file"
	uploadDefaultName   = "upload.csv"
	historyLimitDefault = 50
)

// PredictRequest is the body of POST /api/predict.
type PredictRequest struct {
	Features map[string]float64 `json:"features"`
}

// HealthStatus is the body of GET /healthz.
type HealthStatus struct {
	Status  string     `json:"status"`
	Version string     `json:"version"`
	Model   model.Info `json:"model"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// uploadedFile returns the CSV sent either as a text/csv body or as the
// "file" part of a multipart form.
func uploadedFile(w http.ResponseWriter, r *http.Request, limit int64) (io.ReadCloser, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mt == table.ContentType {
		return r.Body, uploadDefaultName, nil
	}

	if err := r.ParseMultipartForm(limit); err != nil {
		var me *http.MaxBytesError
		if errors.As(err, &me) {
			return nil, "", err
		}
		return nil, "", &requestError{cause: fmt.Errorf("parsing upload: %w", err)}
	}

	f, h, err := r.FormFile(uploadFieldName)
	if err != nil {
		return nil, "", &requestError{cause: fmt.Errorf("reading upload field %q: %w", uploadFieldName, err)}
	}

	name := h.Filename
	if name == "" {
		name = uploadDefaultName
	}
	return f, name, nil
}

func predictAPIHandler(d *handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, d.maxUploadBytes)

		var req PredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			err = &requestError{cause: fmt.Errorf("decoding request: %w", err)}
			writeError(w, errorStatus(err), err.Error())
			return
		}

		rec := table.Record(req.Features)
		v, err := d.scorer.single(rec, "api")
		if err != nil {
			writeError(w, errorStatus(err), err.Error())
			return
		}

		writeJSON(w, http.StatusOK, &SinglePrediction{
			Model:      d.scorer.runner.Adapter().Model(),
			Features:   rec,
			Prediction: v,
		})
	}
}

func batchAPIHandler(d *handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, name, err := uploadedFile(w, r, d.maxUploadBytes)
		if err != nil {
			writeError(w, errorStatus(err), err.Error())
			return
		}
		defer f.Close()

		res, err := d.scorer.batch(f, name)
		if err != nil {
			writeError(w, errorStatus(err), err.Error())
			return
		}

		b, err := table.ToDelimitedText(res.Table)
		if err != nil {
			slog.Error("failed to export result", "error", err)
			writeError(w, http.StatusInternalServerError, "error exporting result")
			return
		}

		w.Header().Set("Content-Type", table.ContentType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": table.FileName}))
		w.Header().Set("X-Row-Count", strconv.Itoa(res.Table.Len()))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(b); err != nil {
			slog.Error("failed to write result", "error", err)
		}
	}
}

func schemaAPIHandler(d *handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, schemaView(d.scorer.runner.Schema()))
	}
}

func historyAPIHandler(d *handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.scorer.db == nil {
			writeError(w, http.StatusNotFound, errHistoryDisabled.Error())
			return
		}

		limit := historyLimitDefault
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		runs, err := data.ListRuns(d.scorer.db, limit)
		if err != nil {
			slog.Error("failed to list runs", "error", err)
			writeError(w, http.StatusInternalServerError, "error listing runs")
			return
		}

		stats, err := data.GetRunStats(d.scorer.db)
		if err != nil {
			slog.Error("failed to get run stats", "error", err)
			writeError(w, http.StatusInternalServerError, "error getting run stats")
			return
		}

		writeJSON(w, http.StatusOK, &HistoryResult{Stats: stats, Runs: runs})
	}
}

func healthHandler(d *handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, &HealthStatus{
			Status:  "ok",
			Version: version,
			Model:   d.scorer.runner.Adapter().Model(),
		})
	}
}
