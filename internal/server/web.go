package server

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/KaramelBytes/estimate-insight/internal/analysis"
	"github.com/KaramelBytes/estimate-insight/internal/chart"
	"github.com/KaramelBytes/estimate-insight/internal/logging"
	"github.com/KaramelBytes/estimate-insight/internal/memory"
	"github.com/KaramelBytes/estimate-insight/internal/report"
	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

var funcs = template.FuncMap{
	"money":       report.Money,
	"signedMoney": report.SignedMoney,
	"status":      report.StatusLabel,
	"pct":         func(p variance.Percent) string { return p.String() },
	"rowClass": func(v decimal.Decimal) string {
		switch v.Sign() {
		case 1:
			return "over"
		case -1:
			return "under"
		}
		return "on"
	},
	"paragraphs": func(s string) []string {
		var out []string
		for _, p := range strings.Split(strings.TrimSpace(s), "\n\n") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	},
	"score":   func(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) },
	"dataURI": func(b []byte) template.URL { return template.URL(chart.DataURI(b)) },
}

type indexPage struct {
	Title       string
	Error       string
	ProjectName string
	MaxUploadMB int64
}

type resultPage struct {
	Title  string
	Result *analysis.Result
}

type patternsPage struct {
	Title    string
	Error    string
	Stats    memory.PatternStats
	Projects []memory.Insight
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, "index.html", indexPage{Title: "Estimate Insight", MaxUploadMB: s.opts.MaxUploadBytes >> 20})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, form, err := s.readAnalyzeRequest(w, r)
	if err == nil {
		var res *analysis.Result
		if res, err = s.analyzer.Run(r.Context(), req); err == nil {
			s.page(w, r, http.StatusOK, "result.html", resultPage{Title: res.Project, Result: res})
			return
		}
	}
	p := problemFor(err)
	if p.Status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("analysis failed", logging.FieldError, err.Error())
	}
	msg := p.Detail
	if p.Status == http.StatusRequestEntityTooLarge {
		msg = "File too large. Maximum size is " + strconv.FormatInt(s.opts.MaxUploadBytes>>20, 10) + "MB."
	}
	s.page(w, r, p.Status, "index.html", indexPage{
		Title:       "Estimate Insight",
		Error:       msg,
		ProjectName: form.ProjectName,
		MaxUploadMB: s.opts.MaxUploadBytes >> 20,
	})
}

func (s *Server) handlePatternsPage(w http.ResponseWriter, r *http.Request) {
	stats, items, err := memory.Patterns(r.Context(), s.store, memory.DefaultListCap)
	data := patternsPage{Title: "Learned Patterns", Stats: stats, Projects: items}
	status := http.StatusOK
	if err != nil {
		p := problemFor(err)
		status = p.Status
		data.Error = "Could not retrieve patterns: " + p.Detail
	}
	s.page(w, r, status, "patterns.html", data)
}

// page renders into a buffer first so a template error still yields a clean 500.
func (s *Server) page(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logging.FromContext(r.Context()).Error("template execution failed", "template", name, logging.FieldError, err.Error())
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
