// Package server exposes the analysis pipeline over a chi REST API and a
// server-rendered web UI.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/estimate-insight/internal/analysis"
	"github.com/KaramelBytes/estimate-insight/internal/chart"
	"github.com/KaramelBytes/estimate-insight/internal/logging"
	"github.com/KaramelBytes/estimate-insight/internal/memory"
	"github.com/KaramelBytes/estimate-insight/internal/server/web"
	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

// ServiceName is reported by /health.
const ServiceName = "Estimate Insight"

// DefaultMaxUpload is the multipart body limit when none is configured.
const DefaultMaxUpload = 16 << 20

// Options configure a Server.
type Options struct {
	Addr           string
	Version        string
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
	Duplicates     variance.DuplicatePolicy
	StrictNumbers  bool

	Analyzer *analysis.Analyzer
	Store    memory.Store
	Logger   *logging.Logger
	// Registry receives the HTTP and pipeline metrics; a fresh one is used
	// when nil.
	Registry *prometheus.Registry
}

// Server is the HTTP front end.
type Server struct {
	opts      Options
	analyzer  *analysis.Analyzer
	store     memory.Store
	templates *template.Template
	validate  *validator.Validate
	limiter   *clientLimiter
	metrics   *httpMetrics
	registry  *prometheus.Registry
	log       *logging.Logger
	router    chi.Router

	renderChart func(project string, rows []variance.Row) ([]byte, error)
}

// New wires routes, templates and metrics.
func New(opts Options) (*Server, error) {
	if opts.Analyzer == nil {
		return nil, errors.New("server: analyzer is required")
	}
	if opts.Store == nil {
		opts.Store = memory.Disabled{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUpload
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if opts.Analyzer.Metrics == nil {
		opts.Analyzer.Metrics = analysis.NewMetrics(reg)
	}

	tmpl, err := template.New("").Funcs(funcs).ParseFS(web.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	log := opts.Logger.WithComponent(logging.ComponentHTTP)
	s := &Server{
		opts:      opts,
		analyzer:  opts.Analyzer,
		store:     opts.Store,
		templates: tmpl,
		validate:  newValidator(),
		metrics:   newHTTPMetrics(reg),
		registry:  reg,
		log:       log,

		renderChart: chart.Render,
	}
	s.limiter = newClientLimiter(opts.RateLimitRPS, opts.RateLimitBurst, opts.Logger.WithComponent(logging.ComponentRateLimit), s.metrics.rateLimited)
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(s.log))
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.With(s.limiter.middleware).Post("/analyze", s.handleAnalyze)
		r.Get("/history/{project}", s.handleHistory)
		r.Get("/insights", s.handleListInsights)
		r.Get("/insights/{id}", s.handleGetInsight)
		r.Get("/insights/{id}/similar", s.handleSimilar)
		r.Get("/insights/{id}/pdf", s.handleInsightPDF)
		r.Get("/patterns", s.handlePatterns)
		r.Post("/feedback", s.handlePostFeedback)
		r.Get("/feedback/stats", s.handleFeedbackStats)
		r.Get("/feedback", s.handleListFeedback)
	})

	r.Get("/", s.handleIndex)
	r.With(s.limiter.middleware).Post("/submit", s.handleSubmit)
	r.Get("/patterns", s.handlePatternsPage)
	r.Get("/export_pdf/{id}", s.handleInsightPDF)
	if static, err := fs.Sub(web.StaticFS, "static"); err == nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
