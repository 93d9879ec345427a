// Package analysis runs the shared load → normalize → compute → narrate →
// store pipeline used by the CLI, the REST API and the web UI.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/estimate-insight/internal/chart"
	"github.com/KaramelBytes/estimate-insight/internal/logging"
	"github.com/KaramelBytes/estimate-insight/internal/memory"
	"github.com/KaramelBytes/estimate-insight/internal/parser"
	"github.com/KaramelBytes/estimate-insight/internal/report"
	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

// DefaultProject is used when a request carries no project name.
const DefaultProject = "Unnamed Project"

// ErrNoInput is returned when neither a file pair nor a combined file is given.
var ErrNoInput = errors.New("provide an estimate and an actual file, or one combined file")

// LoadError reports a spreadsheet that could not be read or parsed.
type LoadError struct {
	Role string // estimate, actual or combined
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s file: %v", e.Role, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Input is one spreadsheet, either on disk (Path) or in memory (Content).
type Input struct {
	Name    string
	Path    string
	Content []byte
}

func (in Input) empty() bool { return in.Path == "" && in.Content == nil }

func (in Input) load(opts parser.Options) (variance.RawTable, error) {
	if in.Content != nil {
		name := in.Name
		if name == "" {
			name = in.Path
		}
		return parser.Parse(name, in.Content, opts)
	}
	return parser.ParseFile(in.Path, opts)
}

// Request describes one analysis.
type Request struct {
	Project  string
	Estimate Input
	Actual   Input
	// Combined, when set, replaces Estimate and Actual.
	Combined Input
	Sheet    string

	Duplicates variance.DuplicatePolicy
	Strict     bool

	Quick      bool
	SaveMemory bool
	Chart      bool
}

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Analyzer holds the collaborators of the pipeline. Every field except
// Narrator may be nil.
type Analyzer struct {
	Narrator *report.Narrator
	Embedder Embedder
	Store    memory.Store
	Metrics  *Metrics
	Logger   *logging.Logger
	Now      func() time.Time
}

// Result is everything an analysis produced.
type Result struct {
	InsightID  string              `json:"insight_id,omitempty"`
	Project    string              `json:"project_name"`
	CreatedAt  time.Time           `json:"created_at"`
	Estimate   *variance.CostTable `json:"estimate_table"`
	Actual     *variance.CostTable `json:"actual_table"`
	Rows       []variance.Row      `json:"variance_data"`
	Summary    variance.Summary    `json:"summary"`
	Narrative  report.Narrative    `json:"narrative"`
	Similar    []memory.Match      `json:"similar_projects,omitempty"`
	ChartPNG   []byte              `json:"-"`
	SavedToMem bool                `json:"saved_to_memory"`
	Warnings   []string            `json:"warnings,omitempty"`
}

// Document is the renderable view of r.
func (r *Result) Document() report.Document {
	return report.Document{
		Project:         r.Project,
		InsightID:       r.InsightID,
		CreatedAt:       r.CreatedAt,
		Summary:         r.Summary,
		Rows:            r.Rows,
		Narrative:       r.Narrative.Text,
		NarrativeSource: r.Narrative.Source,
		Warnings:        r.Warnings,
	}
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Run executes the pipeline. Load and schema errors fail the run; narrative,
// embedding, chart and memory failures only add warnings.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Result, error) {
	start := a.now()
	log := a.logger().WithComponent(logging.ComponentAnalysis)

	project := strings.TrimSpace(req.Project)
	if project == "" {
		project = DefaultProject
	}
	res := &Result{Project: project, CreatedAt: start}

	estimate, actual, err := a.tables(ctx, req)
	if err != nil {
		a.Metrics.observe("error", a.now().Sub(start))
		log.Warn("analysis failed", logging.FieldProject, project, logging.FieldError, err.Error())
		return nil, err
	}
	res.Estimate, res.Actual = estimate, actual
	for _, t := range []*variance.CostTable{estimate, actual} {
		if t.CoercedCells > 0 {
			res.warn("%s: %d non-numeric amount cell(s) read as 0", t.Side, t.CoercedCells)
		}
	}

	res.Rows = variance.Compute(estimate, actual)
	res.Summary = variance.Summarize(res.Rows)
	log.Debug("variance computed", logging.FieldProject, project, logging.FieldRows, len(res.Rows))

	in := report.PromptInput{Project: project, Rows: res.Rows, Summary: res.Summary}
	if !req.Quick {
		in.Prior, res.Similar = a.prior(ctx, res, log)
	}
	res.Narrative = a.Narrator.Narrate(ctx, in, req.Quick)
	if res.Narrative.Warning != "" {
		res.warn("%s", res.Narrative.Warning)
	}

	if req.Chart && len(res.Rows) > 0 {
		png, err := chart.Render(project, res.Rows)
		if err != nil {
			res.warn("chart generation failed: %v", err)
		} else {
			res.ChartPNG = png
		}
	}

	if req.SaveMemory {
		a.save(ctx, res, log)
	}

	a.Metrics.observe(res.Narrative.Source, a.now().Sub(start))
	log.Info("analysis complete",
		logging.FieldProject, project,
		logging.FieldRows, len(res.Rows),
		"narrative_source", res.Narrative.Source,
		logging.FieldInsightID, res.InsightID,
	)
	return res, nil
}

// tables loads and normalizes both sides. Separate files are read
// concurrently.
func (a *Analyzer) tables(ctx context.Context, req Request) (*variance.CostTable, *variance.CostTable, error) {
	opts := parser.Options{Sheet: req.Sheet}
	norm := variance.NewNormalizer(variance.Options{Duplicates: req.Duplicates, Strict: req.Strict})

	if !req.Combined.empty() {
		raw, err := req.Combined.load(opts)
		if err != nil {
			return nil, nil, &LoadError{Role: "combined", Err: err}
		}
		return norm.NormalizeCombined(raw)
	}
	if req.Estimate.empty() || req.Actual.empty() {
		return nil, nil, ErrNoInput
	}

	var estimate, actual *variance.CostTable
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := req.Estimate.load(opts)
		if err != nil {
			return &LoadError{Role: string(variance.SideEstimate), Err: err}
		}
		estimate, err = norm.Normalize(raw, variance.SideEstimate)
		return err
	})
	g.Go(func() error {
		raw, err := req.Actual.load(opts)
		if err != nil {
			return &LoadError{Role: string(variance.SideActual), Err: err}
		}
		actual, err = norm.Normalize(raw, variance.SideActual)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return estimate, actual, nil
}

// prior finds stored insights similar to this run for the prompt's
// historical context.
func (a *Analyzer) prior(ctx context.Context, res *Result, log *logging.Logger) ([]memory.Insight, []memory.Match) {
	if a.Embedder == nil || a.Store == nil {
		return nil, nil
	}
	vecs, err := a.Embedder.Embed(ctx, []string{memory.EmbeddingText(res.Project, report.QuickSummary(res.Summary))})
	if err != nil || len(vecs) == 0 {
		if err != nil {
			log.Debug("similarity lookup skipped", logging.FieldError, err.Error())
		}
		return nil, nil
	}
	matches, err := memory.Similar(ctx, a.Store, vecs[0], report.MaxPriorProjects, "")
	if err != nil {
		if !errors.Is(err, memory.ErrDisabled) {
			res.warn("history lookup failed: %v", err)
		}
		return nil, nil
	}
	prior := make([]memory.Insight, len(matches))
	for i, m := range matches {
		prior[i] = m.Insight
	}
	return prior, matches
}

func (a *Analyzer) save(ctx context.Context, res *Result, log *logging.Logger) {
	if a.Store == nil {
		res.warn("memory is disabled; insight not saved")
		return
	}
	in := &memory.Insight{
		ProjectName: res.Project,
		Narrative:   res.Narrative.Text,
		Summary:     res.Summary,
		Rows:        res.Rows,
		CreatedAt:   res.CreatedAt,
		Metadata: map[string]string{
			"narrative_source": res.Narrative.Source,
			"estimate_file":    res.Estimate.Name,
			"actual_file":      res.Actual.Name,
		},
	}
	if res.Narrative.Model != "" {
		in.Metadata["model"] = res.Narrative.Model
	}
	if a.Embedder != nil {
		vecs, err := a.Embedder.Embed(ctx, []string{memory.EmbeddingText(res.Project, res.Narrative.Text)})
		switch {
		case err != nil:
			res.warn("embedding failed; insight saved without one: %v", err)
		case len(vecs) > 0:
			in.Embedding = vecs[0]
		}
	}
	id, err := a.Store.SaveInsight(ctx, in)
	if err != nil {
		a.Metrics.saveFailed()
		log.Warn("insight save failed", logging.FieldProject, res.Project, logging.FieldError, err.Error())
		if errors.Is(err, memory.ErrDisabled) {
			res.warn("memory is disabled; insight not saved")
		} else {
			res.warn("failed to save insight: %v", err)
		}
		return
	}
	res.InsightID = id
	res.SavedToMem = true
}

func (a *Analyzer) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Analyzer) logger() *logging.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return logging.Discard()
}
