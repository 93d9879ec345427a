package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/estimate-insight/internal/analysis"
	"github.com/KaramelBytes/estimate-insight/internal/parser"
)

// Multipart field names.
const (
	fieldEstimate = "estimate_file"
	fieldActual   = "actual_file"
	fieldCombined = "combined_file"
)

// readAnalyzeRequest parses the multipart upload shared by /api/analyze and
// /submit. The body is capped at MaxUploadBytes.
func (s *Server) readAnalyzeRequest(w http.ResponseWriter, r *http.Request) (analysis.Request, analyzeForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return analysis.Request{}, analyzeForm{}, err
		}
		return analysis.Request{}, analyzeForm{}, &badRequest{msg: "expected a multipart/form-data upload: " + err.Error()}
	}

	form := analyzeForm{
		ProjectName:   strings.TrimSpace(r.FormValue("project_name")),
		SaveMemory:    formBool(r.FormValue("save_memory")),
		Quick:         formBool(r.FormValue("quick")),
		GenerateChart: formBool(r.FormValue("generate_chart")),
	}
	if err := s.validate.Struct(form); err != nil {
		return analysis.Request{}, form, err
	}

	req := analysis.Request{
		Project:    form.ProjectName,
		Quick:      form.Quick,
		SaveMemory: form.SaveMemory,
		Chart:      form.GenerateChart,
		Duplicates: s.opts.Duplicates,
		Strict:     s.opts.StrictNumbers,
		Sheet:      strings.TrimSpace(r.FormValue("sheet")),
	}
	var err error
	if req.Combined, err = readUpload(r, fieldCombined); err != nil {
		return req, form, err
	}
	if req.Estimate, err = readUpload(r, fieldEstimate); err != nil {
		return req, form, err
	}
	if req.Actual, err = readUpload(r, fieldActual); err != nil {
		return req, form, err
	}
	if req.Combined.Content == nil && (req.Estimate.Content == nil || req.Actual.Content == nil) {
		return req, form, fmt.Errorf("%w (fields %s and %s, or %s)", analysis.ErrNoInput, fieldEstimate, fieldActual, fieldCombined)
	}
	return req, form, nil
}

// readUpload returns an empty Input when the field is absent.
func readUpload(r *http.Request, field string) (analysis.Input, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return analysis.Input{}, nil
	}
	if err != nil {
		return analysis.Input{}, &badRequest{msg: field + ": " + err.Error()}
	}
	defer f.Close()
	name := filepath.Base(hdr.Filename)
	if name == "" || name == "." {
		return analysis.Input{}, nil
	}
	if strings.EqualFold(filepath.Ext(name), ".xls") {
		return analysis.Input{}, fmt.Errorf("%s: %s is a legacy .xls workbook, save it as .xlsx: %w", field, name, parser.ErrUnsupported)
	}
	if !parser.Supported(name) {
		return analysis.Input{}, fmt.Errorf("%s: %s must be .xlsx, .csv or .tsv: %w", field, name, parser.ErrUnsupported)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return analysis.Input{}, fmt.Errorf("%s: %w", field, err)
	}
	return analysis.Input{Name: name, Content: data}, nil
}
