package memory

import (
	"context"
	"math"
	"sort"
)

// Match is an insight with its similarity score.
type Match struct {
	Insight Insight `json:"insight"`
	Score   float64 `json:"score"`
}

// CosineSim returns the cosine similarity of a and b, or 0 if dimensions
// mismatch or either vector is zero.
func CosineSim(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		fa, fb := float64(a[i]), float64(b[i])
		dot += fa * fb
		na += fa * fa
		nb += fb * fb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Similar ranks stored insights against query by cosine similarity with a
// linear scan. Insights without an embedding, and excludeID, are skipped.
// Equal scores keep newest first.
func Similar(ctx context.Context, s Store, query []float32, topK int, excludeID string) ([]Match, error) {
	if len(query) == 0 {
		return nil, nil
	}
	items, err := s.ListInsights(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(items))
	for _, in := range items {
		if in.ID == excludeID || len(in.Embedding) == 0 {
			continue
		}
		out = append(out, Match{Insight: in, Score: CosineSim(query, in.Embedding)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return capList(out, topK), nil
}

// SimilarTo ranks insights against a stored insight's own embedding.
func SimilarTo(ctx context.Context, s Store, id string, topK int) ([]Match, error) {
	in, err := s.GetInsight(ctx, id)
	if err != nil {
		return nil, err
	}
	return Similar(ctx, s, in.Embedding, topK, in.ID)
}
