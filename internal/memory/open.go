package memory

import (
	"context"
	"fmt"
	"strings"
)

// Options selects and configures a backend.
type Options struct {
	Backend           string // file, sqlite, firestore, none
	Dir               string
	SQLitePath        string
	FirestoreProject  string
	FirestoreDatabase string
}

// Open returns the configured Store. An empty backend means "file".
func Open(ctx context.Context, o Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(o.Backend)) {
	case "", "file":
		return OpenFileStore(o.Dir)
	case "sqlite":
		return OpenSQLiteStore(o.SQLitePath)
	case "firestore":
		return OpenFirestoreStore(ctx, o.FirestoreProject, o.FirestoreDatabase)
	case "none", "off", "disabled":
		return Disabled{}, nil
	}
	return nil, fmt.Errorf("unknown memory backend %q (use file, sqlite, firestore or none)", o.Backend)
}
