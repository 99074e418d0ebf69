package recovery

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/catalog"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

type notef func(format string, args ...any)

// #region migrate
// Migrate coerces a loosely decoded snapshot, including the legacy shape
// without presented_statement_ids or schema_version, into the current schema.
// Stored ratings are kept for known lanes; derived tallies are rebuilt from
// the migrated history.
func Migrate(doc map[string]any, cat *catalog.Catalog, opts Options) (state.RunState, []string) {
	var notes []string
	note := func(format string, args ...any) {
		notes = append(notes, fmt.Sprintf(format, args...))
	}

	s := state.New(opts.maxRounds())

	if v, ok := number(doc["max_rounds"]); ok && v >= 1 && v == math.Trunc(v) {
		s.MaxRounds = int(v)
	} else {
		note("max_rounds missing or invalid; using %d", s.MaxRounds)
	}

	s.History = migrateHistory(doc["history"], cat, opts.now(), note)
	if len(s.History) > s.MaxRounds {
		note("history has %d entries; kept the first %d", len(s.History), s.MaxRounds)
		s.History = s.History[:s.MaxRounds]
	}

	s.LaneRatings = migrateRatings(doc["lane_ratings"], note)

	switch v := doc["current_statement_id"].(type) {
	case string:
		id := v
		s.CurrentStatementID = &id
	case nil:
	default:
		note("current_statement_id has type %T; cleared", v)
	}

	if ids, ok := stringList(doc["presented_statement_ids"]); ok {
		s.PresentedStatementIDs = ids
	} else {
		s.PresentedStatementIDs = state.CanonicalPresented(s.History, s.CurrentStatementID)
		note("presented_statement_ids rebuilt from history (%d ids)", len(s.PresentedStatementIDs))
	}

	s.RecomputeDerived(cat)
	note("derived fields rebuilt from %d history entries", len(s.History))

	if v, ok := number(doc["schema_version"]); !ok || int(v) != state.CurrentSchemaVersion {
		note("schema_version %v upgraded to %d", doc["schema_version"], state.CurrentSchemaVersion)
	}
	return s, notes
}

// #endregion migrate

// #region history
func migrateHistory(v any, cat *catalog.Catalog, now time.Time, note notef) []state.HistoryEntry {
	out := []state.HistoryEntry{}
	items, ok := v.([]any)
	if !ok {
		if v != nil {
			note("history has type %T; dropped", v)
		}
		return out
	}

	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			note("history[%d] is not an object; dropped", i)
			continue
		}
		id, _ := obj["statement_id"].(string)
		if id == "" {
			note("history[%d] has no statement_id; dropped", i)
			continue
		}

		stored, _ := obj["lane_id"].(string)
		lane := catalog.Lane(stored)
		if st, ok := cat.ByID(id); ok {
			if lane != st.LaneID {
				note("history[%d] lane %q corrected to %s", i, stored, st.LaneID)
				lane = st.LaneID
			}
		} else if !lane.Valid() {
			note("history[%d] statement %q has no known lane; dropped", i, id)
			continue
		}

		rawAnswer, _ := obj["answer"].(string)
		answer, ok := state.NormalizeAnswer(rawAnswer)
		if !ok {
			note("history[%d] answer %q not recognised; dropped", i, rawAnswer)
			continue
		}
		if string(answer) != rawAnswer {
			note("history[%d] answer %q normalized to %s", i, rawAnswer, answer)
		}

		ts, ok := timestamp(obj["timestamp"])
		if !ok {
			note("history[%d] timestamp backfilled", i)
			ts = now
		}

		out = append(out, state.HistoryEntry{
			StatementID: id,
			LaneID:      lane,
			Answer:      answer,
			Timestamp:   ts,
		})
	}
	return out
}

// #endregion history

// #region ratings
func migrateRatings(v any, note notef) map[catalog.Lane]float64 {
	out := state.BaselineRatings()
	m, ok := v.(map[string]any)
	if !ok {
		note("lane_ratings missing; every lane reset to baseline")
		return out
	}

	for _, k := range slices.Sorted(maps.Keys(m)) {
		l := catalog.Lane(k)
		if !l.Valid() {
			note("lane_ratings: dropped unknown lane %q", k)
			continue
		}
		r, ok := number(m[k])
		if !ok || math.IsNaN(r) || math.IsInf(r, 0) {
			note("lane_ratings: %s is not a number; reset to baseline", k)
			continue
		}
		out[l] = r
	}
	for _, l := range catalog.Lanes() {
		if _, ok := m[string(l)]; !ok {
			note("lane_ratings: filled missing lane %s with baseline", l)
		}
	}
	return out
}

// #endregion ratings

// #region coercion
// number accepts JSON numbers and finite numeric strings such as "1100".
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func stringList(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// timestamp accepts RFC 3339 strings and epoch milliseconds.
func timestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		ts, err := time.Parse(time.RFC3339Nano, t)
		if err != nil || ts.IsZero() {
			return time.Time{}, false
		}
		return ts.UTC(), true
	case float64:
		if t <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(t)).UTC(), true
	}
	return time.Time{}, false
}

// #endregion coercion
