package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps insights and feedback as two JSON documents in a directory.
// Writes replace the file atomically.
type FileStore struct {
	mu       sync.Mutex
	dir      string
	insights []Insight
	feedback []Feedback
}

type fileDoc[T any] struct {
	Version string `json:"version"`
	Items   []T    `json:"items"`
}

// OpenFileStore loads (or initializes) the store rooted at dir.
func OpenFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	s := &FileStore{dir: dir}
	var err error
	if s.insights, err = readDoc[Insight](s.path(InsightsCollection)); err != nil {
		return nil, err
	}
	if s.feedback, err = readDoc[Feedback](s.path(FeedbackCollection)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func readDoc[T any](path string) ([]T, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	var doc fileDoc[T]
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return doc.Items, nil
}

func writeDoc[T any](path string, items []T) error {
	b, err := json.MarshalIndent(fileDoc[T]{Version: DocumentVersion, Items: items}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

func (s *FileStore) SaveInsight(ctx context.Context, in *Insight) (string, error) {
	if err := prepareInsight(in); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append(append([]Insight(nil), s.insights...), *in)
	if err := writeDoc(s.path(InsightsCollection), next); err != nil {
		return "", err
	}
	s.insights = next
	return in.ID, nil
}

func (s *FileStore) GetInsight(ctx context.Context, id string) (*Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.insights {
		if s.insights[i].ID == id {
			in := s.insights[i]
			return &in, nil
		}
	}
	return nil, fmt.Errorf("insight %s: %w", id, ErrNotFound)
}

func (s *FileStore) History(ctx context.Context, project string) ([]Insight, error) {
	s.mu.Lock()
	var out []Insight
	for _, in := range s.insights {
		if in.ProjectName == project {
			out = append(out, in)
		}
	}
	s.mu.Unlock()
	newestFirst(out, func(in Insight) time.Time { return in.CreatedAt })
	return out, nil
}

func (s *FileStore) ListInsights(ctx context.Context, limit int) ([]Insight, error) {
	s.mu.Lock()
	out := append([]Insight(nil), s.insights...)
	s.mu.Unlock()
	newestFirst(out, func(in Insight) time.Time { return in.CreatedAt })
	return capList(out, limit), nil
}

func (s *FileStore) SaveFeedback(ctx context.Context, fb *Feedback) (string, error) {
	if err := prepareFeedback(fb); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append(append([]Feedback(nil), s.feedback...), *fb)
	if err := writeDoc(s.path(FeedbackCollection), next); err != nil {
		return "", err
	}
	s.feedback = next
	return fb.ID, nil
}

func (s *FileStore) ListFeedback(ctx context.Context, q FeedbackQuery) ([]Feedback, error) {
	s.mu.Lock()
	var out []Feedback
	for _, fb := range s.feedback {
		if matchFeedback(fb, q) {
			out = append(out, fb)
		}
	}
	s.mu.Unlock()
	newestFirst(out, func(fb Feedback) time.Time { return fb.CreatedAt })
	return capList(out, q.Limit), nil
}

func (s *FileStore) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.insights)
	if err := writeDoc[Insight](s.path(InsightsCollection), nil); err != nil {
		return 0, err
	}
	s.insights = nil
	return n, nil
}

func (s *FileStore) Close() error { return nil }
