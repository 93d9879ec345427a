package server

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/KaramelBytes/estimate-insight/internal/analysis"
	"github.com/KaramelBytes/estimate-insight/internal/chart"
	"github.com/KaramelBytes/estimate-insight/internal/logging"
	"github.com/KaramelBytes/estimate-insight/internal/memory"
	"github.com/KaramelBytes/estimate-insight/internal/report"
	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

const (
	defaultSimilarK = 5
	maxListLimit    = 500
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
		"version": s.opts.Version,
	})
}

type similarProject struct {
	InsightID       string           `json:"insight_id"`
	ProjectName     string           `json:"project_name"`
	SimilarityScore float64          `json:"similarity_score"`
	VariancePct     variance.Percent `json:"variance_pct"`
}

type analyzeResponse struct {
	Success bool `json:"success"`
	*analysis.Result
	NarrativeText string           `json:"insight"`
	Similar       []similarProject `json:"similar_projects,omitempty"`
	ChartBase64   string           `json:"chart_base64,omitempty"`
}

func newAnalyzeResponse(res *analysis.Result) analyzeResponse {
	out := analyzeResponse{Success: true, Result: res, NarrativeText: res.Narrative.Text}
	for _, m := range res.Similar {
		out.Similar = append(out.Similar, similarProject{
			InsightID:       m.Insight.ID,
			ProjectName:     m.Insight.ProjectName,
			SimilarityScore: m.Score,
			VariancePct:     m.Insight.Summary.TotalVariancePct,
		})
	}
	if len(res.ChartPNG) > 0 {
		out.ChartBase64 = chart.Base64(res.ChartPNG)
	}
	return out
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, _, err := s.readAnalyzeRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.analyzer.Run(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, newAnalyzeResponse(res))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	items, err := s.store.History(r.Context(), project)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"project_name": project,
		"count":        len(items),
		"insights":     withoutEmbeddings(items),
	})
}

func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", memory.DefaultListCap, maxListLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items, err := s.store.ListInsights(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"count": len(items), "insights": withoutEmbeddings(items)})
}

func (s *Server) handleGetInsight(w http.ResponseWriter, r *http.Request) {
	in, err := s.store.GetInsight(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	in.Embedding = nil
	render.JSON(w, r, in)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	k, err := intParam(r, "k", defaultSimilarK, maxListLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	matches, err := memory.SimilarTo(r.Context(), s.store, chi.URLParam(r, "id"), k)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]similarProject, 0, len(matches))
	for _, m := range matches {
		out = append(out, similarProject{
			InsightID:       m.Insight.ID,
			ProjectName:     m.Insight.ProjectName,
			SimilarityScore: m.Score,
			VariancePct:     m.Insight.Summary.TotalVariancePct,
		})
	}
	render.JSON(w, r, map[string]any{"insight_id": chi.URLParam(r, "id"), "similar_projects": out})
}

func (s *Server) handleInsightPDF(w http.ResponseWriter, r *http.Request) {
	in, err := s.store.GetInsight(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var png []byte
	if len(in.Rows) > 0 {
		if png, err = s.renderChart(in.ProjectName, in.Rows); err != nil {
			logging.FromContext(r.Context()).Warn("chart render failed; pdf exported without chart",
				logging.FieldInsightID, in.ID, logging.FieldError, err.Error())
			png = nil
		}
	}
	var buf bytes.Buffer
	if err := report.WritePDF(&buf, report.FromInsight(*in), png); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.PDFFilename(in.ProjectName, in.CreatedAt)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	stats, items, err := memory.Patterns(r.Context(), s.store, memory.DefaultListCap)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"stats": stats, "projects": withoutEmbeddings(items)})
}

func (s *Server) handlePostFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.fail(w, r, &badRequest{msg: "invalid JSON body: " + err.Error()})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.store.GetInsight(r.Context(), req.InsightID); err != nil {
		s.fail(w, r, err)
		return
	}
	fb := &memory.Feedback{
		InsightID:    req.InsightID,
		FeedbackType: req.FeedbackType,
		Rating:       req.Rating,
		FeedbackText: req.FeedbackText,
		Metadata:     map[string]string{"source": "web"},
	}
	id, err := s.store.SaveFeedback(r.Context(), fb)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{"success": true, "feedback_id": id})
}

func (s *Server) handleFeedbackStats(w http.ResponseWriter, r *http.Request) {
	st, err := memory.ComputeFeedbackStats(r.Context(), s.store, r.URL.Query().Get("insight_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, st)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", memory.DefaultListCap, maxListLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items, err := s.store.ListFeedback(r.Context(), memory.FeedbackQuery{
		InsightID:    r.URL.Query().Get("insight_id"),
		NegativeOnly: formBool(r.URL.Query().Get("negative")),
		Limit:        limit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"count": len(items), "feedback": items})
}

// intParam reads a positive integer query parameter capped at ceiling.
func intParam(r *http.Request, name string, def, ceiling int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, &badRequest{msg: name + " must be a positive integer"}
	}
	return min(n, ceiling), nil
}

func withoutEmbeddings(items []memory.Insight) []memory.Insight {
	out := make([]memory.Insight, len(items))
	for i, in := range items {
		in.Embedding = nil
		out[i] = in
	}
	return out
}
