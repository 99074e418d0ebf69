package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const eventSchema = `
CREATE TABLE IF NOT EXISTS analytics_events (
	event_id   TEXT PRIMARY KEY,
	run_id     TEXT,
	name       TEXT NOT NULL,
	props_json TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analytics_events_run ON analytics_events(run_id);
`

// #region event-log
// EventLog persists events to the analytics_events table. Props are stored as
// protojson-encoded structpb.Struct values.
type EventLog struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewEventLog creates the events table if needed.
func NewEventLog(db *sql.DB, logger *zap.Logger) (*EventLog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.Exec(eventSchema); err != nil {
		return nil, fmt.Errorf("create analytics schema: %w", err)
	}
	return &EventLog{db: db, logger: logger, now: time.Now}, nil
}

// Record writes the event, logging failures instead of returning them.
func (l *EventLog) Record(name string, props map[string]any) {
	runID, _ := props["run_id"].(string)
	ev := Event{RunID: runID, Name: name, Props: props}
	if err := l.LogEvent(context.Background(), ev); err != nil {
		l.logger.Warn("analytics event dropped", zap.String("event", name), zap.Error(err))
	}
}

// LogEvent inserts one event row.
func (l *EventLog) LogEvent(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = l.now().UTC()
	}
	props, err := encodeProps(ev.Props)
	if err != nil {
		return fmt.Errorf("log event %s: %w", ev.Name, err)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO analytics_events (event_id, run_id, name, props_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.ID,
		nullIfEmpty(ev.RunID),
		ev.Name,
		nullIfEmpty(props),
		ev.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log event %s: %w", ev.Name, err)
	}
	return nil
}

// Events returns the most recent events, newest first. A runID filters to one run.
func (l *EventLog) Events(ctx context.Context, runID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT event_id, COALESCE(run_id, ''), name, COALESCE(props_json, ''), created_at
		FROM analytics_events`
	args := []any{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var props, created string
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Name, &props, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Props, err = decodeProps(props); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		if ev.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("event %s: parse created_at: %w", ev.ID, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// #endregion event-log

// #region props
// encodeProps renders props as canonical JSON. Values structpb cannot hold
// are stored as their fmt.Sprint form.
func encodeProps(props map[string]any) (string, error) {
	if len(props) == 0 {
		return "", nil
	}
	fields := make(map[string]*structpb.Value, len(props))
	for k, v := range props {
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339Nano)
		}
		pv, err := structpb.NewValue(v)
		if err != nil {
			pv = structpb.NewStringValue(fmt.Sprint(v))
		}
		fields[k] = pv
	}
	b, err := protojson.Marshal(&structpb.Struct{Fields: fields})
	if err != nil {
		return "", fmt.Errorf("encode props: %w", err)
	}
	return string(b), nil
}

func decodeProps(s string) (map[string]any, error) {
	if s == "" {
		return map[string]any{}, nil
	}
	var st structpb.Struct
	if err := protojson.Unmarshal([]byte(s), &st); err != nil {
		return nil, fmt.Errorf("decode props: %w", err)
	}
	return st.AsMap(), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion props
