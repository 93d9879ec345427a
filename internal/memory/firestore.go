package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const datastoreScope = "https://www.googleapis.com/auth/datastore"

// FirestoreStore keeps insights and feedback in Cloud Firestore. Documents
// mirror the JSON form of Insight and Feedback, with created_at stored as a
// timestamp so the console sorts them.
type FirestoreStore struct {
	client *firestore.Client
	prefix string // collection name prefix; empty in production
}

// OpenFirestoreStore connects with Application Default Credentials, or to
// the emulator when FIRESTORE_EMULATOR_HOST is set.
func OpenFirestoreStore(ctx context.Context, project, database string, opts ...option.ClientOption) (*FirestoreStore, error) {
	if project == "" {
		return nil, fmt.Errorf("firestore: project id is required (firestore_project or GOOGLE_CLOUD_PROJECT)")
	}
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" && len(opts) == 0 {
		creds, err := google.FindDefaultCredentials(ctx, datastoreScope)
		if err != nil {
			return nil, fmt.Errorf("firestore credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	client, err := firestore.NewClientWithDatabase(ctx, project, database, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Close() error { return s.client.Close() }

func (s *FirestoreStore) coll(name string) *firestore.CollectionRef {
	return s.client.Collection(s.prefix + name)
}

// toFields converts v (via its JSON form) into Firestore-native values:
// integers as int64, other numbers as float64, created_at as a timestamp.
func toFields(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	for k, x := range m {
		m[k] = nativeValue(x)
	}
	if ts, ok := m["created_at"].(string); ok {
		if at, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			m["created_at"] = at
		}
	}
	return m, nil
}

func nativeValue(x any) any {
	switch t := x.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = nativeValue(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = nativeValue(t[k])
		}
		return t
	}
	return x
}

// fromFields fills out from a document's data via the JSON form.
func fromFields(data map[string]any, out any) error {
	b, err := json.Marshal(jsonValue(data))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func jsonValue(x any) any {
	switch t := x.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = jsonValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = jsonValue(e)
		}
		return out
	}
	return x
}

func notFound(err error) bool { return status.Code(err) == codes.NotFound }

func (s *FirestoreStore) create(ctx context.Context, collection, id string, v any) error {
	fields, err := toFields(v)
	if err != nil {
		return fmt.Errorf("firestore: encode %s: %w", collection, err)
	}
	if _, err := s.coll(collection).Doc(id).Create(ctx, fields); err != nil {
		return fmt.Errorf("firestore: create %s/%s: %w", collection, id, err)
	}
	return nil
}

// docs drains a query iterator.
func docs(it *firestore.DocumentIterator) ([]*firestore.DocumentSnapshot, error) {
	defer it.Stop()
	var out []*firestore.DocumentSnapshot
	for {
		d, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("firestore: query: %w", err)
		}
		out = append(out, d)
	}
}

func decodeInsights(snaps []*firestore.DocumentSnapshot) ([]Insight, error) {
	out := make([]Insight, 0, len(snaps))
	for _, d := range snaps {
		var in Insight
		if err := fromFields(d.Data(), &in); err != nil {
			return nil, fmt.Errorf("firestore: decode insight %s: %w", d.Ref.ID, err)
		}
		if in.ID == "" {
			in.ID = d.Ref.ID
		}
		out = append(out, in)
	}
	return out, nil
}

func (s *FirestoreStore) SaveInsight(ctx context.Context, in *Insight) (string, error) {
	if err := prepareInsight(in); err != nil {
		return "", err
	}
	if err := s.create(ctx, InsightsCollection, in.ID, in); err != nil {
		return "", err
	}
	return in.ID, nil
}

func (s *FirestoreStore) GetInsight(ctx context.Context, id string) (*Insight, error) {
	snap, err := s.coll(InsightsCollection).Doc(id).Get(ctx)
	if notFound(err) {
		return nil, fmt.Errorf("insight %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("firestore: get insight %s: %w", id, err)
	}
	out, err := decodeInsights([]*firestore.DocumentSnapshot{snap})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// History filters on project_name only and sorts client-side, so no
// composite index is needed.
func (s *FirestoreStore) History(ctx context.Context, project string) ([]Insight, error) {
	snaps, err := docs(s.coll(InsightsCollection).Where("project_name", "==", project).Documents(ctx))
	if err != nil {
		return nil, err
	}
	out, err := decodeInsights(snaps)
	if err != nil {
		return nil, err
	}
	sortInsightsNewest(out)
	return out, nil
}

func (s *FirestoreStore) ListInsights(ctx context.Context, limit int) ([]Insight, error) {
	q := s.coll(InsightsCollection).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	snaps, err := docs(q.Documents(ctx))
	if err != nil {
		return nil, err
	}
	return decodeInsights(snaps)
}

func (s *FirestoreStore) SaveFeedback(ctx context.Context, fb *Feedback) (string, error) {
	if err := prepareFeedback(fb); err != nil {
		return "", err
	}
	if err := s.create(ctx, FeedbackCollection, fb.ID, fb); err != nil {
		return "", err
	}
	return fb.ID, nil
}

func (s *FirestoreStore) ListFeedback(ctx context.Context, q FeedbackQuery) ([]Feedback, error) {
	query := s.coll(FeedbackCollection).Query
	switch {
	case q.InsightID != "":
		query = query.Where("insight_id", "==", q.InsightID)
	case q.NegativeOnly:
		query = query.Where("rating", "==", RatingDown)
	}
	snaps, err := docs(query.Documents(ctx))
	if err != nil {
		return nil, err
	}
	var out []Feedback
	for _, d := range snaps {
		var fb Feedback
		if err := fromFields(d.Data(), &fb); err != nil {
			return nil, fmt.Errorf("firestore: decode feedback %s: %w", d.Ref.ID, err)
		}
		if fb.ID == "" {
			fb.ID = d.Ref.ID
		}
		if matchFeedback(fb, q) {
			out = append(out, fb)
		}
	}
	sortFeedbackNewest(out)
	return capList(out, q.Limit), nil
}

func (s *FirestoreStore) Clear(ctx context.Context) (int, error) {
	refs, err := s.coll(InsightsCollection).DocumentRefs(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("firestore: list insights: %w", err)
	}
	n := 0
	for _, ref := range refs {
		if _, err := ref.Delete(ctx); err != nil && !notFound(err) {
			return n, fmt.Errorf("firestore: delete insight %s: %w", ref.ID, err)
		}
		n++
	}
	return n, nil
}
