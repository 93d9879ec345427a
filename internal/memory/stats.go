package memory

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
)

// FeedbackStats aggregates ratings.
type FeedbackStats struct {
	Total            int     `json:"total_feedback"`
	ThumbsUp         int     `json:"thumbs_up"`
	ThumbsDown       int     `json:"thumbs_down"`
	Detailed         int     `json:"detailed_feedback_count"`
	SatisfactionRate float64 `json:"satisfaction_rate"`
}

// ComputeFeedbackStats summarizes feedback, optionally for one insight.
// SatisfactionRate is thumbs-up over total, in percent; 0 when empty.
func ComputeFeedbackStats(ctx context.Context, s Store, insightID string) (FeedbackStats, error) {
	items, err := s.ListFeedback(ctx, FeedbackQuery{InsightID: insightID})
	if err != nil {
		return FeedbackStats{}, err
	}
	var st FeedbackStats
	for _, fb := range items {
		st.Total++
		switch fb.Rating {
		case RatingUp:
			st.ThumbsUp++
		case RatingDown:
			st.ThumbsDown++
		}
		if fb.FeedbackText != "" {
			st.Detailed++
		}
	}
	if st.Total > 0 {
		st.SatisfactionRate = float64(st.ThumbsUp) / float64(st.Total) * 100
	}
	return st, nil
}

// PatternStats summarizes stored projects.
type PatternStats struct {
	TotalProjects    int             `json:"total_projects"`
	AvgVariance      decimal.Decimal `json:"avg_variance"`
	AvgVariancePct   float64         `json:"avg_variance_pct"`
	OverBudgetCount  int             `json:"over_budget_count"`
	UnderBudgetCount int             `json:"under_budget_count"`
	OnBudgetCount    int             `json:"on_budget_count"`
}

// Patterns computes PatternStats over the most recent limit insights.
// AvgVariancePct averages only finite percentages.
func Patterns(ctx context.Context, s Store, limit int) (PatternStats, []Insight, error) {
	if limit <= 0 {
		limit = DefaultListCap
	}
	items, err := s.ListInsights(ctx, limit)
	if err != nil {
		return PatternStats{}, nil, err
	}
	st := PatternStats{TotalProjects: len(items), AvgVariance: decimal.Zero}
	if len(items) == 0 {
		return st, items, nil
	}
	sum := decimal.Zero
	var pctSum float64
	var pctN int
	for _, in := range items {
		v := in.Summary.TotalVariance
		sum = sum.Add(v)
		switch v.Sign() {
		case 1:
			st.OverBudgetCount++
		case -1:
			st.UnderBudgetCount++
		default:
			st.OnBudgetCount++
		}
		if p := float64(in.Summary.TotalVariancePct); !math.IsInf(p, 0) && !math.IsNaN(p) {
			pctSum += p
			pctN++
		}
	}
	st.AvgVariance = sum.Div(decimal.NewFromInt(int64(len(items)))).Round(2)
	if pctN > 0 {
		st.AvgVariancePct = pctSum / float64(pctN)
	}
	return st, items, nil
}
