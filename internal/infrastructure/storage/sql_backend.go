package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"BananaBot/internal/domain"
	"BananaBot/internal/ports"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	stateTable      = "bananabot_state"
	defaultStateKey = "default"
)

// gooseMu guards goose's package-level base FS and dialect.
var gooseMu sync.Mutex

// Dialect selects the SQL flavour of a SQLBackend.
type Dialect struct {
	Driver      string
	Goose       string
	Placeholder sq.PlaceholderFormat
}

var (
	Postgres = Dialect{Driver: "postgres", Goose: "postgres", Placeholder: sq.Dollar}
	SQLite   = Dialect{Driver: "sqlite", Goose: "sqlite", Placeholder: sq.Question}
)

// SQLBackend stores the snapshot as a single row that is upserted in one
// statement, so a crash mid-write leaves the previous row in place.
type SQLBackend struct {
	db       *sql.DB
	builder  sq.StatementBuilderType
	stateKey string
}

var _ ports.StateBackend = (*SQLBackend)(nil)

// OpenSQLBackend connects, applies migrations and returns a ready backend.
func OpenSQLBackend(ctx context.Context, dialect Dialect, dsn string) (*SQLBackend, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Driver, err)
	}
	if dialect.Driver == SQLite.Driver {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Driver, err)
	}
	if err := migrate(db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLBackend{
		db:       db,
		builder:  sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
		stateKey: defaultStateKey,
	}, nil
}

func migrate(db *sql.DB, dialect Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(dialect.Goose); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrate state schema: %w", err)
	}
	return nil
}

func (b *SQLBackend) Load(ctx context.Context) (*domain.Snapshot, error) {
	query, args, err := b.builder.
		Select("snapshot").
		From(stateTable).
		Where(sq.Eq{"state_key": b.stateKey}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load query: %w", err)
	}

	var payload string
	err = b.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, &domain.CorruptSnapshotError{Err: err}
	}
	return &snapshot, nil
}

func (b *SQLBackend) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("nil snapshot")
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	query, args, err := b.builder.
		Insert(stateTable).
		Columns("state_key", "snapshot", "updated_at").
		Values(b.stateKey, string(payload), time.Now().UTC()).
		Suffix("ON CONFLICT (state_key) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build save query: %w", err)
	}

	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (b *SQLBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
