// Package store provides ricochet's durable, transactional record of
// injections and callbacks, backed by a single-file sqlite database so a
// campaign survives process restarts and callbacks arriving days later
// still have rows to join against.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"ricochet.dev/ricochet/internal/rerrors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a *sql.DB open against a ricochet sqlite file, migrated to
// the latest schema on New. Sqlite does not tolerate concurrent writers
// well, so the pool is capped at a single open connection.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the sqlite database at path and
// migrates it to the latest schema.
func New(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, rerrors.StoreIOError(err, "creating store directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, rerrors.StoreIOError(err, "opening store")
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, rerrors.StoreIOError(err, "pinging store")
	}
	// Referential integrity between callbacks and injections depends on
	// FK enforcement, which sqlite disables by default.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, rerrors.StoreIOError(err, "enabling foreign key enforcement")
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB wraps an already-open *sql.DB, used by tests that inject a
// sqlmock connection to exercise I/O failure paths without touching disk.
// Callers are responsible for running migrations themselves if needed.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return rerrors.StoreIOError(err, "loading embedded migrations")
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return rerrors.StoreIOError(err, "creating migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return rerrors.StoreIOError(err, "creating migrator")
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return rerrors.StoreIOError(err, "running migrations")
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordInjection persists an Injection; callers invoke it before the
// payload is sent over the wire. A duplicate token is reported as
// rerrors.ErrDuplicateToken rather than a generic store error, since it
// signals a token-mint collision the caller should treat specially (retry
// with a freshly minted token).
func (s *Store) RecordInjection(ctx context.Context, inj Injection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO injections (token, url, method, param_name, context_tag, payload_template, dry_run, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inj.Token, inj.URL, inj.Method, inj.ParamName, inj.ContextTag, inj.PayloadTemplate, boolToInt(inj.DryRun), inj.SentAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return rerrors.DuplicateTokenError(inj.Token)
		}
		return rerrors.StoreIOError(err, "recording injection")
	}
	return nil
}

// RecordCallback persists an inbound callback, but only if its token
// matches a recorded Injection. It reports whether the row was persisted;
// a false return with a nil error means the token simply doesn't correlate
// to anything, not a failure — the listener logs that at warning and moves
// on, and its HTTP/DNS response never varies on this outcome.
func (s *Store) RecordCallback(ctx context.Context, cb Callback) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, rerrors.StoreIOError(err, "starting callback transaction")
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM injections WHERE token = ?`, cb.Token).Scan(&exists)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, rerrors.StoreIOError(err, "checking injection existence")
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO callbacks (id, token, protocol, remote_addr, request_path, headers, body, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cb.ID, cb.Token, cb.Protocol, cb.RemoteAddr, cb.RequestPath, cb.Headers, cb.Body, cb.ReceivedAt.UTC()); err != nil {
		return false, rerrors.StoreIOError(err, "recording callback")
	}

	if err := tx.Commit(); err != nil {
		return false, rerrors.StoreIOError(err, "committing callback")
	}
	return true, nil
}

// GetInjection looks up a single injection by token.
func (s *Store) GetInjection(ctx context.Context, token string) (*Injection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, url, method, param_name, context_tag, payload_template, dry_run, sent_at
		FROM injections WHERE token = ?`, token)

	var inj Injection
	var dryRun int
	if err := row.Scan(&inj.Token, &inj.URL, &inj.Method, &inj.ParamName, &inj.ContextTag, &inj.PayloadTemplate, &dryRun, &inj.SentAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, rerrors.NotFoundError(fmt.Sprintf("no injection for token %q", token))
		}
		return nil, rerrors.StoreIOError(err, "looking up injection")
	}
	inj.DryRun = dryRun != 0
	return &inj, nil
}

// ListInjectionsFilter narrows ListInjections to recently recorded rows,
// used by `suggest --recent N`.
type ListInjectionsFilter struct {
	Since time.Time
	Limit int
}

// ListInjections returns injections matching filter, most recent first.
// The WHERE clause is built up dynamically so Since/Limit can each be
// omitted independently.
func (s *Store) ListInjections(ctx context.Context, filter ListInjectionsFilter) ([]Injection, error) {
	query := `SELECT token, url, method, param_name, context_tag, payload_template, dry_run, sent_at FROM injections`
	var args []any
	if !filter.Since.IsZero() {
		query += ` WHERE sent_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY sent_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, rerrors.StoreIOError(err, "listing injections")
	}
	defer rows.Close()

	var out []Injection
	for rows.Next() {
		var inj Injection
		var dryRun int
		if err := rows.Scan(&inj.Token, &inj.URL, &inj.Method, &inj.ParamName, &inj.ContextTag, &inj.PayloadTemplate, &dryRun, &inj.SentAt); err != nil {
			return nil, rerrors.StoreIOError(err, "scanning injection row")
		}
		inj.DryRun = dryRun != 0
		out = append(out, inj)
	}
	if err := rows.Err(); err != nil {
		return nil, rerrors.StoreIOError(err, "iterating injection rows")
	}
	return out, nil
}

// ListCallbacksByToken returns every callback recorded against token,
// oldest first, never consuming or marking them: a join against callbacks
// is always repeatable.
func (s *Store) ListCallbacksByToken(ctx context.Context, token string) ([]Callback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, token, protocol, remote_addr, request_path, headers, body, received_at
		FROM callbacks WHERE token = ? ORDER BY received_at ASC`, token)
	if err != nil {
		return nil, rerrors.StoreIOError(err, "listing callbacks")
	}
	defer rows.Close()

	var out []Callback
	for rows.Next() {
		var cb Callback
		if err := rows.Scan(&cb.ID, &cb.Token, &cb.Protocol, &cb.RemoteAddr, &cb.RequestPath, &cb.Headers, &cb.Body, &cb.ReceivedAt); err != nil {
			return nil, rerrors.StoreIOError(err, "scanning callback row")
		}
		out = append(out, cb)
	}
	if err := rows.Err(); err != nil {
		return nil, rerrors.StoreIOError(err, "iterating callback rows")
	}
	return out, nil
}

// CorrelatedPair is one row of the injections ⨝ callbacks join, the raw
// material internal/correlation turns into Findings.
type CorrelatedPair struct {
	Injection Injection
	Callback  Callback
}

// ListCorrelated runs the inner join between injections and callbacks on
// token, newest callback first, optionally restricted to callbacks
// received at or after since. One row per callback: an injection with five
// callbacks yields five pairs, since each arrival is new evidence.
func (s *Store) ListCorrelated(ctx context.Context, since time.Time) ([]CorrelatedPair, error) {
	query := `
		SELECT
			i.token, i.url, i.method, i.param_name, i.context_tag, i.payload_template, i.dry_run, i.sent_at,
			c.id, c.token, c.protocol, c.remote_addr, c.request_path, c.headers, c.body, c.received_at
		FROM injections i
		JOIN callbacks c ON c.token = i.token`
	var args []any
	if !since.IsZero() {
		query += ` WHERE c.received_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY c.received_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, rerrors.StoreIOError(err, "listing correlated pairs")
	}
	defer rows.Close()

	var out []CorrelatedPair
	for rows.Next() {
		var p CorrelatedPair
		var dryRun int
		if err := rows.Scan(
			&p.Injection.Token, &p.Injection.URL, &p.Injection.Method, &p.Injection.ParamName,
			&p.Injection.ContextTag, &p.Injection.PayloadTemplate, &dryRun, &p.Injection.SentAt,
			&p.Callback.ID, &p.Callback.Token, &p.Callback.Protocol, &p.Callback.RemoteAddr,
			&p.Callback.RequestPath, &p.Callback.Headers, &p.Callback.Body, &p.Callback.ReceivedAt,
		); err != nil {
			return nil, rerrors.StoreIOError(err, "scanning correlated row")
		}
		p.Injection.DryRun = dryRun != 0
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, rerrors.StoreIOError(err, "iterating correlated rows")
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed: UNIQUE")
}
