package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"provify/internal/bug"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// timeLayout is fixed-width so lexical order of stored timestamps matches
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

var _ Store = (*SqlStore)(nil)

// SqlStore implements Store over database/sql with SQLite or Postgres.
type SqlStore struct {
	db       *sql.DB
	postgres bool
}

// Open opens the database and runs migrations. For SQLite, dsn is a file
// path (its parent directory is created) or ":memory:". For Postgres, dsn is
// a pgx connection string.
func Open(driver, dsn string) (*SqlStore, error) {
	switch driver {
	case "", DriverSQLite:
		return openSQLite(dsn)
	case DriverPostgres, "pgx":
		return openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func openSQLite(path string) (*SqlStore, error) {
	if path == "" {
		path = DefaultDBPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	return finishOpen(db, false)
}

func openPostgres(dsn string) (*SqlStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres store requires a dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return finishOpen(db, true)
}

func finishOpen(db *sql.DB, postgres bool) (*SqlStore, error) {
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	s := &SqlStore{db: db, postgres: postgres}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $N for Postgres.
func (s *SqlStore) rebind(q string) string {
	if !s.postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SqlStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaVersionDDL); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var v int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return s.applySteps(ctx, schemaV2, currentSchemaVersion, true)
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch v {
	case currentSchemaVersion:
		return nil
	case schemaVersionV1:
		return s.applySteps(ctx, migrationV1ToV2, schemaVersionV2, false)
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

// applySteps runs DDL and records the resulting version in one transaction.
func (s *SqlStore) applySteps(ctx context.Context, steps []string, version int, fresh bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range steps {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v%d: %w", version, err)
		}
	}
	if fresh {
		_, err = tx.ExecContext(ctx, s.rebind("INSERT INTO schema_version(version) VALUES(?)"), version)
	} else {
		_, err = tx.ExecContext(ctx, s.rebind("UPDATE schema_version SET version = ?"), version)
	}
	if err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

const bugColumns = `id, app_name, app_package, description, created_at, status,
	severity, last_verified, notes, steps`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBug(row rowScanner) (*bug.Bug, error) {
	var (
		b               bug.Bug
		status, created string
		lastVerified    sql.NullString
		steps           string
	)
	if err := row.Scan(&b.ID, &b.AppName, &b.Package, &b.Description, &created, &status,
		&b.Severity, &lastVerified, &b.Notes, &steps); err != nil {
		return nil, err
	}
	b.Status = bug.Status(status)
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("bug %s created_at: %w", b.ID, err)
	}
	b.CreatedAt = t
	if lastVerified.Valid && lastVerified.String != "" {
		lv, err := parseTime(lastVerified.String)
		if err != nil {
			return nil, fmt.Errorf("bug %s last_verified: %w", b.ID, err)
		}
		b.LastVerified = &lv
	}
	if steps != "" && steps != "[]" {
		if err := json.Unmarshal([]byte(steps), &b.Steps); err != nil {
			return nil, fmt.Errorf("bug %s steps: %w", b.ID, err)
		}
	}
	return &b, nil
}

func (s *SqlStore) LoadBug(ctx context.Context, id string) (*bug.Bug, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+bugColumns+" FROM bugs WHERE id = ?"), id)
	b, err := scanBug(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load bug %s: %w", id, err)
	}
	return b, nil
}

// SaveBug upserts the whole record in a single statement.
func (s *SqlStore) SaveBug(ctx context.Context, b *bug.Bug) error {
	if b == nil {
		return errors.New("bug is nil")
	}
	if b.ID == "" {
		return errors.New("bug has no id")
	}
	steps := "[]"
	if len(b.Steps) > 0 {
		raw, err := json.Marshal(b.Steps)
		if err != nil {
			return fmt.Errorf("encode steps: %w", err)
		}
		steps = string(raw)
	}
	var lastVerified sql.NullString
	if b.LastVerified != nil {
		lastVerified = sql.NullString{String: formatTime(*b.LastVerified), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO bugs(`+bugColumns+`)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			app_name = excluded.app_name,
			app_package = excluded.app_package,
			description = excluded.description,
			created_at = excluded.created_at,
			status = excluded.status,
			severity = excluded.severity,
			last_verified = excluded.last_verified,
			notes = excluded.notes,
			steps = excluded.steps`),
		b.ID, b.AppName, b.Package, b.Description, formatTime(b.CreatedAt), string(b.Status),
		b.Severity, lastVerified, b.Notes, steps,
	)
	if err != nil {
		return fmt.Errorf("save bug %s: %w", b.ID, err)
	}
	return nil
}

func (s *SqlStore) DeleteBug(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM bugs WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete bug %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete bug %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SqlStore) ListBugs(ctx context.Context, f Filter) ([]*bug.Bug, error) {
	q := "SELECT " + bugColumns + " FROM bugs WHERE 1=1"
	var args []any
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if f.Package != "" {
		q += " AND app_package = ?"
		args = append(args, f.Package)
	}
	q += " ORDER BY created_at DESC, id ASC"

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list bugs: %w", err)
	}
	defer rows.Close()

	var out []*bug.Bug
	for rows.Next() {
		b, err := scanBug(rows)
		if err != nil {
			return nil, fmt.Errorf("list bugs: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
