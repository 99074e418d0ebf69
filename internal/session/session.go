package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/analytics"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/convergence"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/recovery"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/update"
)

// ErrClosed is returned for calls on a closed session.
var ErrClosed = errors.New("session closed")

// #region options
// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Options wires a session to its collaborators. Store and Engine are required.
type Options struct {
	Store       state.Persistence
	Engine      *update.Engine
	Sink        analytics.Sink
	Logger      *zap.Logger
	SettleDelay time.Duration
	MaxRounds   int
	Now         func() time.Time
	AfterFunc   AfterFunc
}

// #endregion options

// #region session
// Session exclusively owns one run. Transitions are synchronous and serialized;
// after each commit a settle timer blocks further commits until it fires.
type Session struct {
	store     state.Persistence
	engine    *update.Engine
	sink      analytics.Sink
	logger    *zap.Logger
	settle    time.Duration
	maxRounds int
	now       func() time.Time
	afterFunc AfterFunc

	mu        sync.Mutex
	runID     string
	state     state.RunState
	recovered recovery.Result
	settling  bool
	settleGen int
	stopTimer func() bool
	closed    bool
}

// CommitResult reports a commit. Rejected is set when the commit arrived while
// the previous one was still settling; nothing changed in that case.
type CommitResult struct {
	update.Result
	Rejected bool
}

// Open loads the persisted run (falling back to the legacy location), recovers
// it into a valid state and presents the first statement of a fresh run.
// Problems with stored bytes are logged and repaired, never returned.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Store == nil || opts.Engine == nil {
		return nil, errors.New("session: store and engine are required")
	}
	s := &Session{
		store:     opts.Store,
		engine:    opts.Engine,
		sink:      opts.Sink,
		logger:    opts.Logger,
		settle:    opts.SettleDelay,
		maxRounds: opts.MaxRounds,
		now:       opts.Now,
		afterFunc: opts.AfterFunc,
		runID:     uuid.New().String(),
	}
	if s.sink == nil {
		s.sink = analytics.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.afterFunc == nil {
		s.afterFunc = timeAfterFunc
	}

	raw, source := s.loadRaw(ctx)
	res := recovery.Recover(raw, s.engine.Catalog(), recovery.Options{Now: s.now, MaxRounds: s.maxRounds})
	s.recovered = res
	s.state = res.State

	log := s.logger.With(zap.String("run_id", s.runID), zap.String("stage", string(res.Stage)), zap.String("source", source))
	if res.Changed() {
		log.Warn("stored run repaired", zap.Strings("notes", res.Notes))
		s.emit(analytics.EventStateRecovered, map[string]any{
			"stage":  string(res.Stage),
			"notes":  len(res.Notes),
			"source": source,
		})
	} else {
		log.Debug("stored run loaded", zap.Int("run_round", s.state.Round))
	}

	dirty := res.Changed() || source == "legacy"
	if len(s.state.History) == 0 && s.state.CurrentStatementID == nil {
		next, _, err := s.engine.Start(s.state)
		if err != nil {
			return nil, fmt.Errorf("session: start run: %w", err)
		}
		s.state = next
		dirty = true
		s.emit(analytics.EventRunStarted, map[string]any{"max_rounds": s.state.MaxRounds})
	}
	if dirty {
		if err := s.persist(ctx, s.state); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// loadRaw reads the current snapshot, or the legacy payload when there is none.
func (s *Session) loadRaw(ctx context.Context) ([]byte, string) {
	raw, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("load stored run failed; treating as empty", zap.Error(err))
		raw = nil
	}
	if len(raw) > 0 {
		return raw, "current"
	}
	legacy, ok := s.store.(state.LegacyLoader)
	if !ok {
		return nil, "none"
	}
	raw, err = legacy.LoadLegacy(ctx)
	if err != nil {
		s.logger.Warn("load legacy run failed", zap.Error(err))
		return nil, "none"
	}
	if len(raw) == 0 {
		return nil, "none"
	}
	return raw, "legacy"
}

// #endregion session

// #region transitions
// Commit answers the current statement. A commit that arrives while the
// previous one is settling is rejected without error.
func (s *Session) Commit(ctx context.Context, answer string) (CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return CommitResult{}, ErrClosed
	}
	if s.settling {
		s.emit(analytics.EventCommitRejected, map[string]any{"reason": "settling", "round": s.state.Round})
		s.logger.Debug("commit rejected while settling", zap.Int("run_round", s.state.Round))
		return CommitResult{Rejected: true}, nil
	}

	next, res, err := s.engine.Commit(s.state, answer, s.now())
	if err != nil {
		return CommitResult{}, err
	}
	if err := s.persist(ctx, next); err != nil {
		return CommitResult{}, err
	}
	s.state = next
	s.startSettle()

	s.emit(analytics.EventAnswerCommitted, map[string]any{
		"round":         len(next.History),
		"statement_id":  res.Entry.StatementID,
		"lane":          string(res.Entry.LaneID),
		"answer":        string(res.Entry.Answer),
		"rating_before": res.Before,
		"rating_after":  res.After,
	})
	s.logger.Debug("answer committed",
		zap.Int("run_round", next.Round),
		zap.String("statement_id", res.Entry.StatementID),
		zap.String("lane", string(res.Entry.LaneID)),
		zap.String("answer", string(res.Entry.Answer)),
	)
	if res.Finished {
		a := s.engine.Policy().Assess(next)
		s.emit(analytics.EventRunFinished, map[string]any{
			"reason":     string(res.Reason),
			"top_lane":   string(a.Top.Lane),
			"confidence": string(a.Confidence),
			"gap":        a.Gap,
			"answers":    a.Total,
		})
		s.logger.Info("run finished", zap.String("reason", string(res.Reason)), zap.String("lane", string(a.Top.Lane)))
	}
	return CommitResult{Result: res}, nil
}

// Undo removes the last answer and presents its statement again.
func (s *Session) Undo(ctx context.Context) (state.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return state.HistoryEntry{}, ErrClosed
	}
	next, removed, err := s.engine.Undo(s.state)
	if err != nil {
		return state.HistoryEntry{}, err
	}
	if err := s.persist(ctx, next); err != nil {
		return state.HistoryEntry{}, err
	}
	s.state = next
	s.emit(analytics.EventAnswerUndone, map[string]any{
		"round":        next.Round,
		"statement_id": removed.StatementID,
		"answer":       string(removed.Answer),
	})
	return removed, nil
}

// Reset discards the run and starts a fresh one.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	next, _, err := s.engine.Start(state.New(s.maxRounds))
	if err != nil {
		return fmt.Errorf("session: reset: %w", err)
	}
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.cancelSettle()
	s.state = next
	s.runID = uuid.New().String()
	s.emit(analytics.EventRunStarted, map[string]any{"max_rounds": next.MaxRounds, "reset": true})
	return nil
}

// Close stops the settle timer. The store is owned by the caller.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelSettle()
	s.closed = true
	return nil
}

// #endregion transitions

// #region accessors
// State returns a copy of the run.
func (s *Session) State() state.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Phase returns the run phase.
func (s *Session) Phase() state.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Phase()
}

// Results returns the results projection of the run.
func (s *Session) Results() convergence.Assessment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Policy().Assess(s.state)
}

// Recovery returns how the stored run was recovered at Open.
func (s *Session) Recovery() recovery.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recovered
}

// RunID identifies the run in analytics events.
func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Settling reports whether commits are currently blocked.
func (s *Session) Settling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settling
}

// #endregion accessors

// #region helpers
func (s *Session) persist(ctx context.Context, st state.RunState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("session: encode run: %w", err)
	}
	if err := s.store.Save(ctx, data); err != nil {
		return fmt.Errorf("session: save run: %w", err)
	}
	return nil
}

// startSettle must be called with mu held.
func (s *Session) startSettle() {
	if s.settle <= 0 {
		return
	}
	s.settling = true
	s.settleGen++
	gen := s.settleGen
	s.stopTimer = s.afterFunc(s.settle, func() { s.settled(gen) })
}

func (s *Session) settled(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.settleGen {
		return
	}
	s.settling = false
	s.stopTimer = nil
}

// cancelSettle must be called with mu held.
func (s *Session) cancelSettle() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	s.settleGen++
	s.settling = false
}

func (s *Session) emit(name string, props map[string]any) {
	props["run_id"] = s.runID
	s.sink.Record(name, props)
}

// #endregion helpers
