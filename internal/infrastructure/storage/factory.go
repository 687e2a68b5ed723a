package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"BananaBot/internal/ports"
)

// BuildStateBackendFromDSN picks a backend by DSN scheme:
//
//	file:<path> or a bare path  JSON file
//	memory:                     in-process only
//	postgres://...              Postgres row
//	sqlite:<path>               SQLite row
func BuildStateBackendFromDSN(ctx context.Context, dsn string) (ports.StateBackend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("state dsn is empty")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse state dsn: %w", err)
	}

	switch scheme := strings.ToLower(parsed.Scheme); scheme {
	case "", "file":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return NewJSONFileBackend(path)
	case "memory", "mem":
		return NewMemoryBackend(), nil
	case "postgres", "postgresql":
		return OpenSQLBackend(ctx, Postgres, dsn)
	case "sqlite", "sqlite3":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return OpenSQLBackend(ctx, SQLite, path)
	default:
		return nil, fmt.Errorf("unsupported state backend scheme: %s", scheme)
	}
}

func dsnPath(parsed *url.URL, raw string) (string, error) {
	if parsed.Scheme == "" {
		return raw, nil
	}
	path := parsed.Opaque
	if path == "" {
		path = parsed.Host + parsed.Path
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("state dsn %q has no path", raw)
	}
	return path, nil
}
