package memory

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFirestoreStore runs the shared store contract against the Firestore
// emulator (gcloud emulators firestore start). Each store gets its own
// collection prefix so runs do not see each other's documents.
func TestFirestoreStore(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := OpenFirestoreStore(context.Background(), "estinsight-test", "")
		require.NoError(t, err)
		s.prefix = uuid.NewString()[:8] + "_"
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestFirestoreFieldShape(t *testing.T) {
	in := sampleInsight("Shape", t0, 10, 12, []float32{0.5, 1})
	require.NoError(t, prepareInsight(in))

	f, err := toFields(in)
	require.NoError(t, err)
	at, ok := f["created_at"].(time.Time)
	require.True(t, ok, "created_at should be a timestamp, got %T", f["created_at"])
	assert.True(t, at.Equal(t0))
	assert.Equal(t, "Shape", f["project_name"])
	assert.Equal(t, DocumentVersion, f["version"])

	summary, ok := f["variance_summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2", summary["total_variance"], "decimals stay strings")
	assert.Equal(t, int64(1), summary["categories"])

	emb, ok := f["embedding"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{0.5, int64(1)}, emb)

	var back Insight
	require.NoError(t, fromFields(f, &back))
	assert.Equal(t, in.ID, back.ID)
	assert.True(t, back.CreatedAt.Equal(t0))
	assert.Equal(t, []float32{0.5, 1}, back.Embedding)
	assert.True(t, back.Summary.TotalVariance.Equal(in.Summary.TotalVariance))
}

func TestFirestoreFieldsKeepUndefinedPercent(t *testing.T) {
	in := sampleInsight("Zero", t0, 0, 40, nil)
	f, err := toFields(in)
	require.NoError(t, err)
	var back Insight
	require.NoError(t, fromFields(f, &back))
	assert.True(t, math.IsInf(float64(back.Summary.TotalVariancePct), 1))
}

func TestFirestoreRequiresProject(t *testing.T) {
	_, err := OpenFirestoreStore(context.Background(), "", "")
	assert.Error(t, err)
}
