package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/quizarena/backend/internal/guard"
	"github.com/quizarena/backend/internal/store"
)

// Config carries the recorder's timing and reward constants.
type Config struct {
	HeartbeatInterval time.Duration // upsert cadence while active
	MinDuration       time.Duration // floor on reported session duration
	XPPerMinute       int
	XPPerUnit         int
}

// DefaultConfig returns the observed production constants: 30s heartbeats,
// a 60s duration floor, 5 XP per minute and 10 XP per unit of work.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
		MinDuration:       60 * time.Second,
		XPPerMinute:       5,
		XPPerUnit:         10,
	}
}

const flushTimeout = 10 * time.Second

// XPLedger is the slice of the progression ledger the recorder needs.
type XPLedger interface {
	Add(amount int) (int, error)
}

// liveSession is one open session plus its bookkeeping. The guard makes
// the finalize sequence one-shot; the awarded watermarks make pause and
// complete grant XP for disjoint slices of the accumulated work.
type liveSession struct {
	rec            *Record
	guard          guard.Guard
	awardedUnits   int
	awardedMinutes int
	cancel         context.CancelFunc
}

// Recorder maintains at most one live activity session per feature area
// for a single user, emits heartbeats while sessions are active, and
// reacts to visibility changes. All persistence is best-effort: a failed
// write logs and the next heartbeat retries.
type Recorder struct {
	mu      sync.Mutex
	userID  string
	store   store.Store
	ledger  XPLedger
	cfg     Config
	live    map[Type]*liveSession
	onEvent func(Event)

	now func() time.Time
}

// NewRecorder creates a Recorder for the given user.
func NewRecorder(userID string, st store.Store, ledger XPLedger, cfg Config) *Recorder {
	if cfg.HeartbeatInterval <= 0 {
		cfg = DefaultConfig()
	}
	return &Recorder{
		userID: userID,
		store:  st,
		ledger: ledger,
		cfg:    cfg,
		live:   make(map[Type]*liveSession),
		now:    time.Now,
	}
}

// OnEvent registers a callback invoked after every lifecycle transition.
// Must be set before the first RecordWork call.
func (r *Recorder) OnEvent(cb func(Event)) {
	r.onEvent = cb
}

// RecordWork registers units of completed work for the given feature area,
// opening a session on the first call. Metadata entries are merged into
// the session's metadata and passed through to persistence untouched.
func (r *Recorder) RecordWork(typ Type, units int, meta store.Metadata) (*Record, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown session type %q", typ)
	}
	if units < 0 {
		return nil, fmt.Errorf("units of work must not be negative, got %d", units)
	}

	r.mu.Lock()
	ls, ok := r.live[typ]
	opened := false
	if !ok {
		now := r.now()
		ls = &liveSession{rec: &Record{
			UserID:     r.userID,
			Type:       typ,
			Status:     StatusActive,
			StartTime:  now,
			LastUpdate: now,
			Metadata:   make(store.Metadata),
		}}
		ctx, cancel := context.WithCancel(context.Background())
		ls.cancel = cancel
		r.live[typ] = ls
		opened = true
		go r.heartbeatLoop(ctx, typ)
	}

	ls.rec.UnitsOfWork += units
	ls.rec.LastUpdate = r.now()
	ls.rec.TimeSpentSeconds = r.elapsedSeconds(ls.rec)
	for k, v := range meta {
		ls.rec.Metadata[k] = v
	}
	snapshot := ls.rec.Clone()
	r.mu.Unlock()

	if opened {
		go r.flush(snapshot)
		r.emit(Event{Type: EventStarted, Record: snapshot})
	}
	return snapshot, nil
}

// heartbeatLoop flushes the session on a fixed cadence while it is active
// and has recorded at least one unit of work.
func (r *Recorder) heartbeatLoop(ctx context.Context, typ Type) {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			ls, ok := r.live[typ]
			if !ok {
				r.mu.Unlock()
				return
			}
			if ls.rec.Status != StatusActive || ls.rec.UnitsOfWork == 0 {
				r.mu.Unlock()
				continue
			}
			ls.rec.LastUpdate = r.now()
			ls.rec.TimeSpentSeconds = r.elapsedSeconds(ls.rec)
			snapshot := ls.rec.Clone()
			r.mu.Unlock()

			r.flush(snapshot)
			r.emit(Event{Type: EventHeartbeat, Record: snapshot})
		}
	}
}

// VisibilityLost transitions reward-bearing active sessions to paused,
// flushing a final heartbeat and granting XP for the work done since the
// last grant. Arena sessions are unaffected; match rewards flow through
// the match's own finalize.
func (r *Recorder) VisibilityLost() {
	r.mu.Lock()
	type pausedFlush struct {
		snapshot *Record
		xp       int
	}
	var flushes []pausedFlush
	for typ, ls := range r.live {
		if !typ.rewardsOnPause() || ls.rec.Status != StatusActive {
			continue
		}
		ls.rec.Status = StatusPaused
		ls.rec.LastUpdate = r.now()
		ls.rec.TimeSpentSeconds = r.elapsedSeconds(ls.rec)

		xp := 0
		if ls.rec.UnitsOfWork > 0 {
			xp = r.grantDeltaLocked(ls)
		}
		flushes = append(flushes, pausedFlush{snapshot: ls.rec.Clone(), xp: xp})
	}
	r.mu.Unlock()

	for _, f := range flushes {
		r.flush(f.snapshot)
		r.emit(Event{Type: EventPaused, Record: f.snapshot, XPEarned: f.xp})
	}
}

// VisibilityRestored resumes paused sessions. StartTime is not reset; the
// session keeps accumulating against its original start.
func (r *Recorder) VisibilityRestored() {
	r.mu.Lock()
	var snapshots []*Record
	for _, ls := range r.live {
		if ls.rec.Status != StatusPaused {
			continue
		}
		ls.rec.Status = StatusActive
		ls.rec.LastUpdate = r.now()
		snapshots = append(snapshots, ls.rec.Clone())
	}
	r.mu.Unlock()

	for _, snapshot := range snapshots {
		r.flush(snapshot)
		r.emit(Event{Type: EventResumed, Record: snapshot})
	}
}

// Finish finalizes the session for typ: it floors the duration, grants XP
// for work not yet rewarded, and persists the terminal record. The
// sequence runs at most once per session; a second Finish (or a Finish
// racing a visibility event) is a silent no-op. On a persistence failure
// the guard is reset so the caller can retry.
func (r *Recorder) Finish(ctx context.Context, typ Type) (int, error) {
	return r.finalize(ctx, typ, nil, true)
}

// Complete finalizes the session for typ on behalf of another engine that
// has already granted its own reward (the arena). The summary metadata is
// merged into the terminal record. No XP is granted here.
func (r *Recorder) Complete(ctx context.Context, typ Type, summary store.Metadata) error {
	_, err := r.finalize(ctx, typ, summary, false)
	return err
}

func (r *Recorder) finalize(ctx context.Context, typ Type, summary store.Metadata, award bool) (int, error) {
	r.mu.Lock()
	ls, ok := r.live[typ]
	if !ok {
		r.mu.Unlock()
		return 0, nil
	}
	if !ls.guard.TryEnter() {
		r.mu.Unlock()
		return 0, nil
	}

	prevStatus := ls.rec.Status
	ls.rec.Status = StatusCompleted
	ls.rec.LastUpdate = r.now()
	ls.rec.TimeSpentSeconds = r.elapsedSeconds(ls.rec)
	for k, v := range summary {
		ls.rec.Metadata[k] = v
	}

	xp := 0
	if award && ls.rec.UnitsOfWork > 0 {
		xp = r.grantDeltaLocked(ls)
	}
	snapshot := ls.rec.Clone()
	r.mu.Unlock()

	if err := r.store.UpsertSession(ctx, snapshot.toStore()); err != nil {
		// Roll back the terminal transition so an explicit retry can run.
		// A session that was paused going in stays paused.
		r.mu.Lock()
		ls.guard.Reset()
		ls.rec.Status = prevStatus
		r.mu.Unlock()
		return xp, fmt.Errorf("persisting completed session: %w", err)
	}

	r.mu.Lock()
	ls.cancel()
	delete(r.live, typ)
	r.mu.Unlock()

	r.emit(Event{Type: EventCompleted, Record: snapshot, XPEarned: xp})
	return xp, nil
}

// grantDeltaLocked awards XP for the work accumulated since the previous
// grant and advances the watermarks. Pause and complete therefore reward
// disjoint slices of the same session. Callers hold r.mu.
func (r *Recorder) grantDeltaLocked(ls *liveSession) int {
	minutes := ls.rec.TimeSpentSeconds / 60
	amount := (ls.rec.UnitsOfWork-ls.awardedUnits)*r.cfg.XPPerUnit +
		(minutes-ls.awardedMinutes)*r.cfg.XPPerMinute
	if amount <= 0 {
		return 0
	}
	if _, err := r.ledger.Add(amount); err != nil {
		log.Printf("session xp award failed: %v", err)
		return 0
	}
	ls.awardedUnits = ls.rec.UnitsOfWork
	ls.awardedMinutes = minutes
	return amount
}

// elapsedSeconds returns the session's floored duration in whole seconds.
func (r *Recorder) elapsedSeconds(rec *Record) int {
	elapsed := r.now().Sub(rec.StartTime)
	if elapsed < r.cfg.MinDuration {
		elapsed = r.cfg.MinDuration
	}
	return int(elapsed.Seconds())
}

// Snapshot returns clones of all live session records.
func (r *Recorder) Snapshot() []*Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Record, 0, len(r.live))
	for _, ls := range r.live {
		out = append(out, ls.rec.Clone())
	}
	return out
}

// Close tears down heartbeat timers without finalizing sessions.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for typ, ls := range r.live {
		ls.cancel()
		delete(r.live, typ)
	}
}

// flush upserts a record snapshot. Failures are logged, never fatal: the
// in-memory state is the local source of truth and the next heartbeat
// retries.
func (r *Recorder) flush(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := r.store.UpsertSession(ctx, rec.toStore()); err != nil {
		log.Printf("session flush failed (%s): %v", rec.Type, err)
	}
}

func (r *Recorder) emit(ev Event) {
	if r.onEvent != nil {
		r.onEvent(ev)
	}
}
