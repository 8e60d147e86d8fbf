package cli

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mchmarny/pricer/pkg/schema"
	"github.com/mchmarny/pricer/pkg/table"
)

const (
	attributionText = "Boston Housing Dataset, originally published on July 7, 1993, maintained by Carnegie Mellon University StatLib."
	attributionURL  = "https://github.com/rupakc/UCI-Data-Analysis/tree/master/Boston%20Housing%20Dataset/Boston%20Housing"
)

var templateFuncs = template.FuncMap{
	"float": table.FormatFloat,
}

type formField struct {
	Name        string
	Description string
	Domain      string
	Min         string
	Max         string
	Step        string
	Options     []float64
	Value       float64
}

type batchView struct {
	FileName    string
	Rows        int
	Mean        float64
	Preview     *table.Table
	PreviewRows int
	Download    template.URL
	DownloadAs  string
}

type pageData struct {
	Version     string
	Fields      []*formField
	Prediction  string
	Batch       *batchView
	Error       string
	MaxUploadMB int64
	Attribution string
	SourceURL   string
}

func newPageData(d *handlerDeps, values map[string]float64) *pageData {
	return &pageData{
		Version:     version,
		Fields:      formFields(d.scorer.runner.Schema(), values),
		MaxUploadMB: d.maxUploadBytes / bytesPerMB,
		Attribution: attributionText,
		SourceURL:   attributionURL,
	}
}

// formFields builds the form inputs, pre-filled from values or the defaults.
func formFields(s *schema.Schema, values map[string]float64) []*formField {
	list := make([]*formField, 0, s.Len())
	for _, f := range s.Features() {
		ff := &formField{
			Name:        f.Name,
			Description: f.Description,
			Domain:      f.Domain.String(),
			Step:        "any",
			Value:       f.Default,
			Options:     f.Domain.Values,
		}
		if v, ok := values[f.Name]; ok {
			ff.Value = v
		}
		if f.Domain.Min != nil {
			ff.Min = table.FormatFloat(*f.Domain.Min)
		}
		if f.Domain.Max != nil {
			ff.Max = table.FormatFloat(*f.Domain.Max)
		}
		if f.Domain.Integer {
			ff.Step = "1"
		}
		list = append(list, ff)
	}
	return list
}

// formRecord reads every schema field present in the submitted form.
// Absent fields are left out so validation can report them.
func formRecord(r *http.Request, s *schema.Schema) (table.Record, error) {
	rec := make(table.Record, s.Len())
	for _, name := range s.RequiredFields() {
		raw := strings.TrimSpace(r.PostFormValue(name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return rec, &requestError{cause: fmt.Errorf("invalid value for %s: %q", name, raw)}
		}
		rec[name] = v
	}
	return rec, nil
}

func render(w http.ResponseWriter, tmpl *template.Template, status int, p *pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "home", p); err != nil {
		slog.Error("template render failed", "error", err)
	}
}

func homeViewHandler(tmpl *template.Template, d *handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(w, tmpl, http.StatusOK, newPageData(d, nil))
	}
}

func predictViewHandler(tmpl *template.Template, d *handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, d.maxUploadBytes)
		if err := r.ParseForm(); err != nil {
			p := newPageData(d, nil)
			p.Error = err.Error()
			render(w, tmpl, errorStatus(&requestError{cause: err}), p)
			return
		}

		rec, err := formRecord(r, d.scorer.runner.Schema())
		p := newPageData(d, rec)
		if err != nil {
			p.Error = err.Error()
			render(w, tmpl, errorStatus(err), p)
			return
		}

		v, err := d.scorer.single(rec, "web")
		if err != nil {
			p.Error = err.Error()
			render(w, tmpl, errorStatus(err), p)
			return
		}

		p.Prediction = fmt.Sprintf("%.2f", v)
		render(w, tmpl, http.StatusOK, p)
	}
}

func batchViewHandler(tmpl *template.Template, d *handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := newPageData(d, nil)

		f, name, err := uploadedFile(w, r, d.maxUploadBytes)
		if err != nil {
			p.Error = err.Error()
			render(w, tmpl, errorStatus(err), p)
			return
		}
		defer f.Close()

		res, err := d.scorer.batch(f, name)
		if err != nil {
			p.Error = err.Error()
			render(w, tmpl, errorStatus(err), p)
			return
		}

		b, err := table.ToDelimitedText(res.Table)
		if err != nil {
			p.Error = err.Error()
			render(w, tmpl, http.StatusInternalServerError, p)
			return
		}

		p.Batch = &batchView{
			FileName:    name,
			Rows:        res.Table.Len(),
			Mean:        res.Mean(),
			Preview:     res.Table.Head(d.previewRows),
			PreviewRows: d.previewRows,
			Download:    dataURI(table.ContentType, b),
			DownloadAs:  table.FileName,
		}
		render(w, tmpl, http.StatusOK, p)
	}
}

// dataURI embeds b in a link the browser can save without another request.
func dataURI(contentType string, b []byte) template.URL {
	return template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(b)) //nolint:gosec // content is our own CSV
}
