// Package memory persists analysed projects ("insights") and user feedback,
// and answers history, similarity and statistics queries over them.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

// Collection names, shared by every backend.
const (
	InsightsCollection = "project_insights"
	FeedbackCollection = "insight_feedback"
	DocumentVersion    = "1.0"
)

// Feedback ratings and types.
const (
	RatingUp       = "thumbs_up"
	RatingDown     = "thumbs_down"
	TypeDetailed   = "detailed"
	TypeSummary    = "summary"
	DefaultListCap = 50
)

var (
	// ErrNotFound is returned for an unknown insight or feedback id.
	ErrNotFound = errors.New("not found")
	// ErrDisabled is returned by the no-op store.
	ErrDisabled = errors.New("memory store is disabled")
)

// Insight is one stored analysis.
type Insight struct {
	ID          string            `json:"id"`
	ProjectName string            `json:"project_name"`
	Narrative   string            `json:"narrative"`
	Summary     variance.Summary  `json:"variance_summary"`
	Rows        []variance.Row    `json:"rows,omitempty"`
	Embedding   []float32         `json:"embedding,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Version     string            `json:"version"`
}

// EmbeddingText is the text embedded for similarity search.
func EmbeddingText(project, narrative string) string {
	return project + "\n" + narrative
}

// Feedback is a user rating of an insight.
type Feedback struct {
	ID           string            `json:"feedback_id"`
	InsightID    string            `json:"insight_id"`
	FeedbackType string            `json:"feedback_type"`
	Rating       string            `json:"rating"`
	FeedbackText string            `json:"feedback_text,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Version      string            `json:"version"`
}

// FeedbackQuery filters ListFeedback. Zero values mean "any".
type FeedbackQuery struct {
	InsightID string
	// NegativeOnly keeps thumbs-down entries that carry text.
	NegativeOnly bool
	Limit        int
}

// Store is implemented by every backend. List methods return newest first.
type Store interface {
	SaveInsight(ctx context.Context, in *Insight) (string, error)
	GetInsight(ctx context.Context, id string) (*Insight, error)
	History(ctx context.Context, project string) ([]Insight, error)
	ListInsights(ctx context.Context, limit int) ([]Insight, error)
	SaveFeedback(ctx context.Context, fb *Feedback) (string, error)
	ListFeedback(ctx context.Context, q FeedbackQuery) ([]Feedback, error)
	// Clear deletes every insight and returns how many were removed.
	Clear(ctx context.Context) (int, error)
	Close() error
}

// prepareInsight fills id, timestamp and version on first save.
func prepareInsight(in *Insight) error {
	if in == nil {
		return errors.New("nil insight")
	}
	if strings.TrimSpace(in.ProjectName) == "" {
		return errors.New("project name is required")
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	if in.Version == "" {
		in.Version = DocumentVersion
	}
	return nil
}

func prepareFeedback(fb *Feedback) error {
	if fb == nil {
		return errors.New("nil feedback")
	}
	if err := ValidateFeedback(*fb); err != nil {
		return err
	}
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	if fb.Version == "" {
		fb.Version = DocumentVersion
	}
	return nil
}

// ValidateFeedback checks the rating and type vocabulary.
func ValidateFeedback(fb Feedback) error {
	if fb.InsightID == "" {
		return errors.New("insight_id is required")
	}
	if fb.Rating != RatingUp && fb.Rating != RatingDown {
		return fmt.Errorf("rating must be %s or %s, got %q", RatingUp, RatingDown, fb.Rating)
	}
	if fb.FeedbackType != TypeDetailed && fb.FeedbackType != TypeSummary {
		return fmt.Errorf("feedback_type must be %s or %s, got %q", TypeDetailed, TypeSummary, fb.FeedbackType)
	}
	return nil
}

// matchFeedback applies q to one entry, ignoring Limit.
func matchFeedback(fb Feedback, q FeedbackQuery) bool {
	if q.InsightID != "" && fb.InsightID != q.InsightID {
		return false
	}
	if q.NegativeOnly && (fb.Rating != RatingDown || strings.TrimSpace(fb.FeedbackText) == "") {
		return false
	}
	return true
}

// newestFirst sorts by CreatedAt descending. items must be in save order;
// equal timestamps put the later-saved entry first.
func newestFirst[T any](items []T, at func(T) time.Time) {
	slices.Reverse(items)
	sort.SliceStable(items, func(i, j int) bool { return at(items[i]).After(at(items[j])) })
}

func sortInsightsNewest(items []Insight) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
}

func sortFeedbackNewest(items []Feedback) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
}

func capList[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// Disabled is the store used when memory_backend is "none".
type Disabled struct{}

func (Disabled) SaveInsight(context.Context, *Insight) (string, error)   { return "", ErrDisabled }
func (Disabled) GetInsight(context.Context, string) (*Insight, error)    { return nil, ErrDisabled }
func (Disabled) History(context.Context, string) ([]Insight, error)      { return nil, ErrDisabled }
func (Disabled) ListInsights(context.Context, int) ([]Insight, error)    { return nil, ErrDisabled }
func (Disabled) SaveFeedback(context.Context, *Feedback) (string, error) { return "", ErrDisabled }
func (Disabled) Clear(context.Context) (int, error)                      { return 0, ErrDisabled }
func (Disabled) Close() error                                            { return nil }

func (Disabled) ListFeedback(context.Context, FeedbackQuery) ([]Feedback, error) {
	return nil, ErrDisabled
}
