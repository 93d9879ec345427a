package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// tsLayout has fixed-width fractions so text order matches time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps insights and feedback in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens dbPath, creating it and applying migrations.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := runMigrations(dbPath); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const insightCols = `id, project_name, narrative, variance_summary, rows_json, embedding, metadata, created_at, version`

func (s *SQLiteStore) SaveInsight(ctx context.Context, in *Insight) (string, error) {
	if err := prepareInsight(in); err != nil {
		return "", err
	}
	summary, err := json.Marshal(in.Summary)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	rows, _ := json.Marshal(nonNil(in.Rows))
	emb, _ := json.Marshal(nonNil(in.Embedding))
	meta, _ := json.Marshal(nonNilMap(in.Metadata))
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_insights (`+insightCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.ProjectName, in.Narrative, string(summary), string(rows), string(emb), string(meta),
		in.CreatedAt.UTC().Format(tsLayout), in.Version)
	if err != nil {
		return "", fmt.Errorf("insert insight: %w", err)
	}
	return in.ID, nil
}

func (s *SQLiteStore) GetInsight(ctx context.Context, id string) (*Insight, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+insightCols+` FROM project_insights WHERE id = ?`, id)
	in, err := scanInsight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("insight %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (s *SQLiteStore) History(ctx context.Context, project string) ([]Insight, error) {
	return s.queryInsights(ctx,
		`SELECT `+insightCols+` FROM project_insights WHERE project_name = ? ORDER BY created_at DESC, seq DESC`, project)
}

func (s *SQLiteStore) ListInsights(ctx context.Context, limit int) ([]Insight, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryInsights(ctx,
		`SELECT `+insightCols+` FROM project_insights ORDER BY created_at DESC, seq DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) queryInsights(ctx context.Context, q string, args ...any) ([]Insight, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}
	defer rows.Close()
	var out []Insight
	for rows.Next() {
		in, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanInsight(sc scanner) (*Insight, error) {
	var in Insight
	var summary, rows, emb, meta, created string
	if err := sc.Scan(&in.ID, &in.ProjectName, &in.Narrative, &summary, &rows, &emb, &meta, &created, &in.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(summary), &in.Summary); err != nil {
		return nil, fmt.Errorf("decode summary of %s: %w", in.ID, err)
	}
	if err := json.Unmarshal([]byte(rows), &in.Rows); err != nil {
		return nil, fmt.Errorf("decode rows of %s: %w", in.ID, err)
	}
	if err := json.Unmarshal([]byte(emb), &in.Embedding); err != nil {
		return nil, fmt.Errorf("decode embedding of %s: %w", in.ID, err)
	}
	if err := json.Unmarshal([]byte(meta), &in.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", in.ID, err)
	}
	if len(in.Rows) == 0 {
		in.Rows = nil
	}
	if len(in.Embedding) == 0 {
		in.Embedding = nil
	}
	if len(in.Metadata) == 0 {
		in.Metadata = nil
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("decode created_at of %s: %w", in.ID, err)
	}
	in.CreatedAt = t
	return &in, nil
}

func (s *SQLiteStore) SaveFeedback(ctx context.Context, fb *Feedback) (string, error) {
	if err := prepareFeedback(fb); err != nil {
		return "", err
	}
	meta, _ := json.Marshal(nonNilMap(fb.Metadata))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO insight_feedback (id, insight_id, feedback_type, rating, feedback_text, metadata, created_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.InsightID, fb.FeedbackType, fb.Rating, fb.FeedbackText, string(meta),
		fb.CreatedAt.UTC().Format(tsLayout), fb.Version)
	if err != nil {
		return "", fmt.Errorf("insert feedback: %w", err)
	}
	return fb.ID, nil
}

func (s *SQLiteStore) ListFeedback(ctx context.Context, q FeedbackQuery) ([]Feedback, error) {
	query := `SELECT id, insight_id, feedback_type, rating, feedback_text, metadata, created_at, version
		FROM insight_feedback WHERE 1=1`
	var args []any
	if q.InsightID != "" {
		query += ` AND insight_id = ?`
		args = append(args, q.InsightID)
	}
	if q.NegativeOnly {
		query += ` AND rating = ? AND trim(feedback_text) <> ''`
		args = append(args, RatingDown)
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()
	var out []Feedback
	for rows.Next() {
		var fb Feedback
		var meta, created string
		if err := rows.Scan(&fb.ID, &fb.InsightID, &fb.FeedbackType, &fb.Rating, &fb.FeedbackText, &meta, &created, &fb.Version); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(meta), &fb.Metadata)
		if len(fb.Metadata) == 0 {
			fb.Metadata = nil
		}
		if fb.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("decode created_at of %s: %w", fb.ID, err)
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_insights`)
	if err != nil {
		return 0, fmt.Errorf("clear insights: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
