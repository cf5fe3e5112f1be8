package kvstore

import (
	"context"
	"fmt"
	"strings"
)

// NewStore picks a backend: explicit backend names win, "auto" prefers
// postgres when DATABASE_URL is set and otherwise uses the local sqlite
// file.
func NewStore(ctx context.Context, backend, sqlitePath, databaseURL string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "memory":
		return NewInMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, sqlitePath)
	case "postgres":
		return NewPostgresStore(ctx, databaseURL)
	case "", "auto":
		if strings.TrimSpace(databaseURL) != "" {
			return NewPostgresStore(ctx, databaseURL)
		}
		return NewSQLiteStore(ctx, sqlitePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
