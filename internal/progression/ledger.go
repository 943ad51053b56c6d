package progression

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrInvalidAmount is returned when an XP award is zero or negative.
// Award amounts are always positive by construction; hitting this error
// indicates a caller bug, not a runtime condition.
var ErrInvalidAmount = errors.New("xp amount must be positive")

const propagateTimeout = 10 * time.Second

// XPSink receives successful XP awards for server-side accumulation.
// The store's add operation is atomic, so awards from different features
// sum correctly even when propagated out of order.
type XPSink interface {
	AddUserXP(ctx context.Context, userID string, amount int) error
}

// State is a read-only snapshot of a user's progression.
type State struct {
	UserID  string    `json:"userId"`
	TotalXP int       `json:"totalXp"`
	Level   LevelInfo `json:"levelInfo"`
	Streak  int       `json:"streak"`
}

// Ledger is the single source of truth for a user's cumulative XP for the
// lifetime of the process. The in-memory total never decreases; the
// persisted total is best-effort and reconciled on the next fetch.
type Ledger struct {
	mu      sync.Mutex
	userID  string
	totalXP int
	streak  int
	lastDay string // YYYY-MM-DD of the last day an award landed, UTC
	sink    XPSink
	onAward func(state State, amount int)

	now func() time.Time
}

// OnAward registers a callback invoked after every successful award with
// the post-award state. Must be set before the first Add; the callback runs
// outside the ledger lock.
func (l *Ledger) OnAward(cb func(state State, amount int)) {
	l.onAward = cb
}

// NewLedger creates a Ledger seeded with the user's persisted XP total and
// streak. sink may be nil, in which case awards stay local.
func NewLedger(userID string, totalXP, streak int, sink XPSink) *Ledger {
	if totalXP < 0 {
		totalXP = 0
	}
	return &Ledger{
		userID:  userID,
		totalXP: totalXP,
		streak:  streak,
		sink:    sink,
		now:     time.Now,
	}
}

// Add increases the cumulative total by amount and returns the new total.
// It fails with ErrInvalidAmount when amount <= 0. The award is propagated
// to the sink asynchronously; a propagation failure is logged and does not
// roll back the local total.
func (l *Ledger) Add(amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	l.mu.Lock()
	l.totalXP += amount
	l.bumpStreakLocked()
	total := l.totalXP
	state := State{
		UserID:  l.userID,
		TotalXP: total,
		Level:   LevelFor(total),
		Streak:  l.streak,
	}
	l.mu.Unlock()

	if l.onAward != nil {
		l.onAward(state, amount)
	}

	if l.sink != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), propagateTimeout)
			defer cancel()
			if err := l.sink.AddUserXP(ctx, l.userID, amount); err != nil {
				log.Printf("xp propagation failed (local total kept): %v", err)
			}
		}()
	}
	return total, nil
}

// bumpStreakLocked advances the daily activity streak on the first award
// of a UTC day. A gap of more than one day resets the streak to 1.
func (l *Ledger) bumpStreakLocked() {
	day := l.now().UTC().Format("2006-01-02")
	switch l.lastDay {
	case day:
		return
	case "":
		l.streak = max(l.streak, 1)
	default:
		prev, err := time.Parse("2006-01-02", l.lastDay)
		if err == nil && day == prev.AddDate(0, 0, 1).Format("2006-01-02") {
			l.streak++
		} else {
			l.streak = 1
		}
	}
	l.lastDay = day
}

// Snapshot returns the current progression state.
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		UserID:  l.userID,
		TotalXP: l.totalXP,
		Level:   LevelFor(l.totalXP),
		Streak:  l.streak,
	}
}
