package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/KaramelBytes/estimate-insight/internal/analysis"
	"github.com/KaramelBytes/estimate-insight/internal/logging"
	"github.com/KaramelBytes/estimate-insight/internal/memory"
	"github.com/KaramelBytes/estimate-insight/internal/parser"
	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

// Problem is an RFC 7807 error body.
type Problem struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Status    int               `json:"status"`
	Detail    string            `json:"detail,omitempty"`
	Instance  string            `json:"instance,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func newProblem(status int, slug, title, detail string) *Problem {
	return &Problem{Type: "/errors/" + slug, Title: title, Status: status, Detail: detail}
}

func writeProblem(w http.ResponseWriter, r *http.Request, p *Problem) {
	if p.Instance == "" {
		p.Instance = r.URL.Path
	}
	if p.RequestID == "" {
		p.RequestID = middleware.GetReqID(r.Context())
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// problemFor classifies err into a status and problem body.
func problemFor(err error) *Problem {
	var (
		tooBig  *http.MaxBytesError
		schema  *variance.SchemaError
		cell    *variance.CellError
		dup     *variance.DuplicateError
		load    *analysis.LoadError
		invalid validator.ValidationErrors
		bad     *badRequest
	)
	switch {
	case errors.As(err, &tooBig):
		return newProblem(http.StatusRequestEntityTooLarge, "upload-too-large", "Upload Too Large", err.Error())
	case errors.As(err, &invalid):
		p := newProblem(http.StatusBadRequest, "validation-failed", "Validation Failed", "one or more fields are invalid")
		p.Errors = fieldErrors(invalid)
		return p
	case errors.As(err, &schema), errors.As(err, &cell), errors.As(err, &dup):
		return newProblem(http.StatusBadRequest, "invalid-spreadsheet", "Invalid Spreadsheet", err.Error())
	case errors.As(err, &load), errors.Is(err, parser.ErrUnsupported), errors.Is(err, analysis.ErrNoInput):
		return newProblem(http.StatusBadRequest, "invalid-upload", "Invalid Upload", err.Error())
	case errors.As(err, &bad):
		return newProblem(http.StatusBadRequest, "bad-request", "Bad Request", bad.msg)
	case errors.Is(err, memory.ErrNotFound):
		return newProblem(http.StatusNotFound, "not-found", "Not Found", err.Error())
	case errors.Is(err, memory.ErrDisabled):
		return newProblem(http.StatusServiceUnavailable, "memory-disabled", "Memory Disabled", "insight memory is disabled on this server")
	}
	return newProblem(http.StatusInternalServerError, "internal-server-error", "Internal Server Error", "an unexpected error occurred")
}

// fail logs err at a level matching its status and writes the problem.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	p := problemFor(err)
	log := logging.FromContext(r.Context())
	if p.Status >= http.StatusInternalServerError {
		log.Error("request failed", logging.FieldError, err.Error())
	} else {
		log.Debug("request rejected", logging.FieldError, err.Error(), logging.FieldStatusCode, p.Status)
	}
	writeProblem(w, r, p)
}

// badRequest carries a client-facing message for malformed parameters.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }
