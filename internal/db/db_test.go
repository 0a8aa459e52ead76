package db

import (
	"path/filepath"
	"testing"
)

func TestNew_CreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	tables := []string{"sessions", "matches", "config", "_migrations"}
	for _, table := range tables {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNew_ConnectionPragmas(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	var journalMode string
	err = database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}

	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}

	var foreignKeys int
	if err := database.Conn().QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("PRAGMA foreign_keys error = %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("foreign_keys = %d, want 1", foreignKeys)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	applied := db1.Report().Applied
	if len(applied) != 2 || applied[0] != "001_initial.sql" || applied[1] != "002_matches.sql" {
		t.Errorf("first open applied %v, want both migrations in order", applied)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	if got := db2.Report().Applied; len(got) != 0 {
		t.Errorf("second open applied %v, want none", got)
	}

	var count int
	err = db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count)
	if err != nil {
		t.Fatalf("count migrations error = %v", err)
	}

	if count != 2 {
		t.Errorf("migration count = %d, want 2", count)
	}
}

func TestMarkInterruptedSessions(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = db1.Conn().Exec(`
		INSERT INTO sessions (id, video_path, query, prompt, status, progress, created_at, updated_at)
		VALUES ('run-1', '/v.mp4', 'cat', 'Is cat visible?', 'running', 0.5, datetime('now'), datetime('now')),
		       ('done-1', '/v.mp4', 'cat', 'Is cat visible?', 'completed', 1, datetime('now'), datetime('now'))
	`)
	if err != nil {
		t.Fatalf("insert session error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	if n := db2.Report().Interrupted; n != 1 {
		t.Errorf("Report().Interrupted = %d, want 1", n)
	}

	var status, errMsg string
	err = db2.Conn().QueryRow("SELECT status, error FROM sessions WHERE id = 'run-1'").Scan(&status, &errMsg)
	if err != nil {
		t.Fatalf("query session error = %v", err)
	}
	if status != "failed" {
		t.Errorf("session status = %s, want failed", status)
	}
	if errMsg != InterruptedMessage {
		t.Errorf("session error = %s, want %q", errMsg, InterruptedMessage)
	}

	err = db2.Conn().QueryRow("SELECT status FROM sessions WHERE id = 'done-1'").Scan(&status)
	if err != nil {
		t.Fatalf("query session error = %v", err)
	}
	if status != "completed" {
		t.Errorf("completed session status = %s, want unchanged", status)
	}
}

func TestMatchesCascadeOnSessionDelete(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	conn := database.Conn()
	if _, err := conn.Exec(`INSERT INTO sessions (id, video_path, query, prompt, created_at, updated_at)
		VALUES ('s', '/v.mp4', 'q', 'p', datetime('now'), datetime('now'))`); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec(`INSERT INTO matches (session_id, second, created_at) VALUES ('s', 4, datetime('now'))`); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec(`DELETE FROM sessions WHERE id = 's'`); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("matches after session delete = %d, want 0", n)
	}
}
