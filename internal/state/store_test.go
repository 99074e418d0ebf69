package state

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadEmptyStore(t *testing.T) {
	s := tempDB(t)
	data, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if data != nil {
		t.Fatalf("expected nil payload, got %q", data)
	}
	legacy, err := s.LoadLegacy(context.Background())
	if err != nil {
		t.Fatalf("LoadLegacy: %v", err)
	}
	if legacy != nil {
		t.Fatalf("expected nil legacy payload, got %q", legacy)
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	if err := s.Save(ctx, []byte(`{"round":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, []byte(`{"round":2}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != `{"round":2}` {
		t.Fatalf("expected latest payload, got %s", data)
	}
}

func TestListSnapshotsAndRollback(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	s.Save(ctx, []byte(`{"round":1}`))
	s.Save(ctx, []byte(`{"round":2}`))

	snaps, err := s.ListSnapshots(ctx, 10)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}

	var first, second Snapshot
	for _, snap := range snaps {
		if snap.ParentID == "" {
			first = snap
		} else {
			second = snap
		}
	}
	if first.VersionID == "" || second.VersionID == "" {
		t.Fatalf("expected one root and one child snapshot, got %+v", snaps)
	}
	if second.ParentID != first.VersionID {
		t.Fatalf("expected parent %s, got %s", first.VersionID, second.ParentID)
	}
	if !second.Active || first.Active {
		t.Fatal("expected only the newest snapshot to be active")
	}

	if err := s.Rollback(ctx, first.VersionID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	data, _ := s.Load(ctx)
	if string(data) != `{"round":1}` {
		t.Fatalf("expected rolled back payload, got %s", data)
	}
}

func TestRollbackNonExistent(t *testing.T) {
	s := tempDB(t)
	err := s.Rollback(context.Background(), "nonexistent-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadLegacyRow(t *testing.T) {
	s := tempDB(t)
	_, err := s.DB().Exec(`INSERT INTO legacy_run_state (key, payload) VALUES (?, ?)`, LegacyKey, `{"round":4}`)
	if err != nil {
		t.Fatalf("seed legacy: %v", err)
	}
	data, err := s.LoadLegacy(context.Background())
	if err != nil {
		t.Fatalf("LoadLegacy: %v", err)
	}
	if string(data) != `{"round":4}` {
		t.Fatalf("unexpected legacy payload %s", data)
	}
}

func TestNewSQLiteStoreInvalidPath(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestOperationsOnClosedDB(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	s.Close()
	ctx := context.Background()

	if err := s.Save(ctx, []byte(`{}`)); err == nil {
		t.Error("expected Save error on closed DB")
	}
	if _, err := s.Load(ctx); err == nil {
		t.Error("expected Load error on closed DB")
	}
	if _, err := s.ListSnapshots(ctx, 5); err == nil {
		t.Error("expected ListSnapshots error on closed DB")
	}
	if err := s.Rollback(ctx, "v1"); err == nil {
		t.Error("expected Rollback error on closed DB")
	}
}

// corruptDB opens an in-memory SQLite with the full schema so tests can drop tables.
func corruptDB(t *testing.T) (*SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStoreWithDB(db), db
}

func TestSave_InsertFails(t *testing.T) {
	s, db := corruptDB(t)
	db.Exec("DROP TABLE run_snapshots")

	if err := s.Save(context.Background(), []byte(`{}`)); err == nil {
		t.Fatal("expected error when run_snapshots table is missing")
	}
}

func TestSave_SetActiveFails(t *testing.T) {
	s, db := corruptDB(t)
	db.Exec("DROP TABLE active_snapshot")

	if err := s.Save(context.Background(), []byte(`{}`)); err == nil {
		t.Fatal("expected error when active_snapshot table is missing")
	}
}

func TestNewSQLiteStore_CorruptDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "corrupt.db")
	os.WriteFile(dbPath, []byte("not a sqlite database"), 0644)

	if _, err := NewSQLiteStore(dbPath); err == nil {
		t.Fatal("expected error for corrupted DB file")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(nil, []byte(`legacy`))

	data, _ := m.Load(ctx)
	if data != nil {
		t.Fatalf("expected nil, got %q", data)
	}
	legacy, _ := m.LoadLegacy(ctx)
	if string(legacy) != "legacy" {
		t.Fatalf("expected legacy payload, got %q", legacy)
	}

	payload := []byte(`{"round":3}`)
	m.Save(ctx, payload)
	payload[0] = 'X'
	data, _ = m.Load(ctx)
	if string(data) != `{"round":3}` {
		t.Fatalf("store must copy on save, got %q", data)
	}
	if m.Saves() != 1 {
		t.Fatalf("expected 1 save, got %d", m.Saves())
	}
}
