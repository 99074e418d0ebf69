package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested snapshot version does not exist.
var ErrNotFound = errors.New("snapshot not found")

// #region persistence
// Persistence loads and saves the serialized run. Save must be an atomic
// replace: readers see the previous or the next snapshot, never a mix.
// Load returns nil bytes and a nil error when nothing has been stored.
type Persistence interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// LegacyLoader is implemented by providers that can read the pre-versioned
// storage location. It is read-only.
type LegacyLoader interface {
	LoadLegacy(ctx context.Context) ([]byte, error)
}

// #endregion persistence

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS run_snapshots (
	version_id     TEXT PRIMARY KEY,
	parent_id      TEXT,
	payload        TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES run_snapshots(version_id)
);

CREATE TABLE IF NOT EXISTS active_snapshot (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES run_snapshots(version_id)
);

CREATE TABLE IF NOT EXISTS legacy_run_state (
	key           TEXT PRIMARY KEY,
	payload       TEXT NOT NULL
);
`

// LegacyKey is the row key of the pre-versioned run state.
const LegacyKey = "career_quiz_state"

// #endregion schema

// #region store-struct
// SQLiteStore keeps every saved run snapshot and an active pointer in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Snapshot is one stored version of the serialized run.
type Snapshot struct {
	VersionID string
	ParentID  string
	Payload   []byte
	CreatedAt time.Time
	Active    bool
}

// #endregion store-struct

// #region constructor
// NewSQLiteStore opens a SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStoreWithDB wraps an already-open database. The schema must exist.
func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. analytics).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region load
// Load reads the active snapshot payload.
func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT r.payload FROM active_snapshot a
		 JOIN run_snapshots r ON r.version_id = a.version_id
		 WHERE a.id = 1`,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active snapshot: %w", err)
	}
	return []byte(payload), nil
}

// LoadLegacy reads the pre-versioned run state row, if any.
func (s *SQLiteStore) LoadLegacy(ctx context.Context) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM legacy_run_state WHERE key = ?`, LegacyKey,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load legacy state: %w", err)
	}
	return []byte(payload), nil
}

// #endregion load

// #region save
// Save inserts a new snapshot and moves the active pointer in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, data []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr interface{}
	var parentID string
	err = tx.QueryRowContext(ctx, `SELECT version_id FROM active_snapshot WHERE id = 1`).Scan(&parentID)
	switch {
	case err == nil:
		parentPtr = parentID
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("get active: %w", err)
	}

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_snapshots (version_id, parent_id, payload, created_at)
		 VALUES (?, ?, ?, ?)`,
		id, parentPtr, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO active_snapshot (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		id,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// #endregion save

// #region rollback
// Rollback points the active snapshot at a previous version.
func (s *SQLiteStore) Rollback(ctx context.Context, versionID string) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM run_snapshots WHERE version_id = ?`, versionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s: %w", versionID, ErrNotFound)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO active_snapshot (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		versionID,
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-snapshots
// ListSnapshots returns the most recent snapshots, newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.version_id, r.parent_id, r.payload, r.created_at, a.version_id IS NOT NULL
		 FROM run_snapshots r
		 LEFT JOIN active_snapshot a ON a.version_id = r.version_id
		 ORDER BY r.created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var parentID sql.NullString
		var payload, createdStr string
		if err := rows.Scan(&snap.VersionID, &parentID, &payload, &createdStr, &snap.Active); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if parentID.Valid {
			snap.ParentID = parentID.String
		}
		snap.Payload = []byte(payload)
		snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// #endregion list-snapshots
