// Package db opens the local SQLite history store and brings its schema up to
// date.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// InterruptedMessage is recorded on sessions that were still running when the
// process last exited.
const InterruptedMessage = "interrupted by restart"

// Per-connection settings, applied by the driver to every connection it opens.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

// OpenReport describes what New did to the file.
type OpenReport struct {
	Applied     []string // migrations applied by this open, in order
	Interrupted int64    // running sessions marked failed
}

type DB struct {
	conn   *sql.DB
	logger *slog.Logger
	report OpenReport
}

// New opens (creating if needed) the database at dbPath, applies pending
// migrations and fails sessions a previous process left running.
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer: the search loop and the API share this handle.
	conn.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open %s: %w", dbPath, err)
	}

	d := &DB{conn: conn, logger: logger}
	if d.report.Applied, err = d.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if len(d.report.Applied) > 0 {
		logger.Info("history schema updated", "migrations", d.report.Applied)
	}

	d.report.Interrupted, err = d.failInterrupted(ctx)
	switch {
	case err != nil:
		logger.Warn("failed to mark interrupted sessions", "error", err)
	case d.report.Interrupted > 0:
		logger.Info("marked interrupted sessions as failed", "count", d.report.Interrupted)
	}

	return d, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Report returns what New changed while opening.
func (d *DB) Report() OpenReport {
	return d.report
}

// migrate runs every embedded migration not yet recorded, each in its own
// transaction together with its bookkeeping row.
func (d *DB) migrate(ctx context.Context) ([]string, error) {
	if _, err := d.conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (
		name TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	done, err := d.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var applied []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || done[name] {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if err := d.apply(ctx, name, string(body)); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}
	return applied, nil
}

func (d *DB) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT name FROM _migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		done[name] = true
	}
	return done, rows.Err()
}

func (d *DB) apply(ctx context.Context, name, body string) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", name, err)
	}
	return tx.Commit()
}

// failInterrupted fails sessions a previous process left running. Only this
// process writes the file, so nothing can legitimately be running at open.
func (d *DB) failInterrupted(ctx context.Context) (int64, error) {
	res, err := d.conn.ExecContext(ctx,
		`UPDATE sessions SET status = 'failed', error = ?, updated_at = ? WHERE status = 'running'`,
		InterruptedMessage, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
