package gamification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/quizarena/backend/internal/arena"
	"github.com/quizarena/backend/internal/session"
	"github.com/quizarena/backend/internal/store"
)

const (
	saveInterval = 30 * time.Second
	saveTimeout  = 10 * time.Second
)

// AchievementCallback is invoked for each newly unlocked achievement.
// It receives the achievement and the associated reward (if any).
type AchievementCallback func(achievement Achievement, reward *Reward)

// ChallengeCallback is invoked when a daily challenge completes and pays out.
type ChallengeCallback func(progress ChallengeProgress, xp int)

// XPLedger is the slice of the progression ledger the tracker needs.
type XPLedger interface {
	Add(amount int) (int, error)
}

// Tracker observes session lifecycle events and match results for one user
// and maintains the aggregate gamification stats. It receives session
// events from the recorder via a channel and periodically persists the
// accumulated stats through the store's stats blob surface.
type Tracker struct {
	userID string
	store  store.Store
	ledger XPLedger
	stats  *Stats
	events chan session.Event
	mu     sync.Mutex
	dirty  bool

	// TimeSpentSeconds on a session record is cumulative; watermarks per
	// live session turn it into study-time deltas.
	studySeen map[string]int

	achieveEngine  *AchievementEngine
	rewardRegistry *RewardRegistry
	onAchievement  AchievementCallback
	onChallenge    ChallengeCallback

	now func() time.Time
}

// NewTracker creates a Tracker for the given user, loading any persisted
// stats blob. It returns a send-only channel the recorder's OnEvent hook
// should feed. The caller must run Run in a goroutine.
func NewTracker(ctx context.Context, userID string, st store.Store, ledger XPLedger) (*Tracker, chan<- session.Event, error) {
	stats, err := loadStats(ctx, st, userID)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan session.Event, 256)
	t := &Tracker{
		userID:         userID,
		store:          st,
		ledger:         ledger,
		stats:          stats,
		events:         ch,
		studySeen:      make(map[string]int),
		achieveEngine:  NewAchievementEngine(),
		rewardRegistry: NewRewardRegistry(),
		now:            time.Now,
	}
	return t, ch, nil
}

func loadStats(ctx context.Context, st store.Store, userID string) (*Stats, error) {
	data, err := st.LoadStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading stats: %w", err)
	}
	if len(data) == 0 {
		return newStats(), nil
	}
	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("parsing stats: %w", err)
	}
	stats.initMaps()
	return &stats, nil
}

// OnAchievement registers a callback invoked whenever an achievement
// unlocks. Must be called before Run.
func (t *Tracker) OnAchievement(cb AchievementCallback) {
	t.onAchievement = cb
}

// OnChallenge registers a callback invoked whenever a daily challenge
// completes. Must be called before Run.
func (t *Tracker) OnChallenge(cb ChallengeCallback) {
	t.onChallenge = cb
}

// Run processes events and periodically saves dirty stats. It blocks until
// ctx is cancelled, then performs a final save.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.save()
			return
		case ev := <-t.events:
			t.processEvent(ev)
		case <-ticker.C:
			t.mu.Lock()
			dirty := t.dirty
			t.mu.Unlock()
			if dirty {
				t.save()
			}
		}
	}
}

// Stats returns a deep copy of the current aggregate stats.
func (t *Tracker) Stats() *Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats.clone()
}

// Rewards returns the registry used to resolve and equip cosmetics.
func (t *Tracker) Rewards() *RewardRegistry {
	return t.rewardRegistry
}

// Achievements returns the full registry alongside the user's unlock times.
func (t *Tracker) Achievements() ([]Achievement, map[string]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	unlocked := make(map[string]time.Time, len(t.stats.AchievementsUnlocked))
	for k, v := range t.stats.AchievementsUnlocked {
		unlocked[k] = v
	}
	return t.achieveEngine.Registry(), unlocked
}

// sessionKey distinguishes concurrent live sessions for the study-time
// watermarks.
func sessionKey(rec *session.Record) string {
	return string(rec.Type) + "|" + rec.StartTime.UTC().Format(time.RFC3339Nano)
}

func (t *Tracker) processEvent(ev session.Event) {
	t.mu.Lock()

	rec := ev.Record

	// Ensure daily challenges are rotated before processing.
	RotateChallengesIfNeeded(&t.stats.DailyChallenges, t.now())
	dc := &t.stats.DailyChallenges

	switch ev.Type {
	case session.EventStarted:
		t.stats.TotalSessions++
		t.stats.SessionsPerType[string(rec.Type)]++
		dc.Snapshot.TotalSessions++
		dc.Snapshot.SessionsPerType[string(rec.Type)]++

	case session.EventHeartbeat, session.EventPaused, session.EventResumed:
		t.absorbProgressLocked(rec)
		if ev.XPEarned > 0 {
			t.stats.TotalXPEarned += ev.XPEarned
			dc.Snapshot.XPEarned += ev.XPEarned
		}

	case session.EventCompleted:
		t.absorbProgressLocked(rec)
		t.stats.TotalCompletions++
		dc.Snapshot.TotalCompletions++
		if ev.XPEarned > 0 {
			t.stats.TotalXPEarned += ev.XPEarned
			dc.Snapshot.XPEarned += ev.XPEarned
		}
		delete(t.studySeen, sessionKey(rec))
	}

	t.dirty = true
	t.finishProcessingLocked()
}

// absorbProgressLocked folds a session record's cumulative counters into
// the aggregate stats, charging only the delta since the last observation.
func (t *Tracker) absorbProgressLocked(rec *session.Record) {
	key := sessionKey(rec)
	if delta := rec.TimeSpentSeconds - t.studySeen[key]; delta > 0 {
		t.stats.TotalStudySeconds += delta
		t.stats.DailyChallenges.Snapshot.StudySeconds += delta
		t.studySeen[key] = rec.TimeSpentSeconds
	}
	if rec.TimeSpentSeconds > t.stats.MaxSessionDurationSec {
		t.stats.MaxSessionDurationSec = rec.TimeSpentSeconds
	}
	if rec.UnitsOfWork > t.stats.MaxUnitsInSession {
		t.stats.MaxUnitsInSession = rec.UnitsOfWork
	}
}

// RecordMatch folds a finalized arena match into the aggregate stats and
// triggers challenge and achievement evaluation. Safe for concurrent use
// with the event loop.
func (t *Tracker) RecordMatch(res arena.Result) {
	t.mu.Lock()

	RotateChallengesIfNeeded(&t.stats.DailyChallenges, t.now())
	dc := &t.stats.DailyChallenges

	t.stats.MatchesPlayed++
	dc.Snapshot.MatchesPlayed++
	switch res.Outcome {
	case arena.OutcomeWin:
		t.stats.MatchesWon++
		t.stats.ConsecutiveWins++
		dc.Snapshot.MatchesWon++
	case arena.OutcomeLoss:
		t.stats.MatchesLost++
		t.stats.ConsecutiveWins = 0
	case arena.OutcomeTie:
		// A tie neither extends nor breaks the win streak.
		t.stats.MatchesTied++
	}

	t.stats.QuestionsAnswered += res.Questions
	t.stats.CorrectAnswers += res.CorrectAnswers
	dc.Snapshot.QuestionsAnswered += res.Questions
	dc.Snapshot.CorrectAnswers += res.CorrectAnswers

	if res.UserScore > t.stats.BestMatchScore {
		t.stats.BestMatchScore = res.UserScore
	}
	if res.Accuracy > t.stats.BestAccuracy {
		t.stats.BestAccuracy = res.Accuracy
	}
	if res.Questions > 0 && res.CorrectAnswers == res.Questions {
		t.stats.PerfectMatches++
	}

	t.stats.TotalXPEarned += res.XPEarned
	dc.Snapshot.XPEarned += res.XPEarned

	t.dirty = true
	t.finishProcessingLocked()
}

// ObserveLevel records the user's current level so level-gated achievements
// and rewards can unlock. Levels only ever ratchet upward here.
func (t *Tracker) ObserveLevel(level int) {
	t.mu.Lock()
	if level <= t.stats.HighestLevel {
		t.mu.Unlock()
		return
	}
	t.stats.HighestLevel = level
	t.dirty = true
	t.finishProcessingLocked()
}

// finishProcessingLocked awards newly completed challenges, evaluates
// achievements, and dispatches callbacks. It is entered holding t.mu and
// returns with it released; callbacks run outside the lock.
func (t *Tracker) finishProcessingLocked() {
	dc := &t.stats.DailyChallenges

	type challengePayout struct {
		progress ChallengeProgress
		xp       int
	}
	var payouts []challengePayout
	for _, cp := range EvaluateChallenges(dc) {
		if cp.Complete && !dc.XPAwarded[cp.ID] {
			dc.XPAwarded[cp.ID] = true
			payouts = append(payouts, challengePayout{progress: cp, xp: XPDailyChallenge})
		}
	}

	// Evaluate achievements while still holding the lock so the stats
	// snapshot is consistent.
	unlocked := t.achieveEngine.Evaluate(t.stats)
	t.mu.Unlock()

	for _, p := range payouts {
		if _, err := t.ledger.Add(p.xp); err != nil {
			log.Printf("challenge xp award failed (%s): %v", p.progress.ID, err)
		}
		if t.onChallenge != nil {
			t.onChallenge(p.progress, p.xp)
		}
	}
	for _, a := range unlocked {
		if _, err := t.ledger.Add(AchievementXP(a.Tier)); err != nil {
			log.Printf("achievement xp award failed (%s): %v", a.ID, err)
		}
		if t.onAchievement == nil {
			continue
		}
		var rw *Reward
		if found, ok := t.rewardRegistry.RewardForAchievement(a.ID); ok {
			rw = &found
		}
		t.onAchievement(a, rw)
	}
}

// Challenges returns the current daily challenge progress.
func (t *Tracker) Challenges() []ChallengeProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	RotateChallengesIfNeeded(&t.stats.DailyChallenges, t.now())
	return EvaluateChallenges(&t.stats.DailyChallenges)
}

// Equip validates and equips rewardID, persists the change immediately,
// and returns the updated loadout. Safe for concurrent use.
func (t *Tracker) Equip(rewardID string) (Equipped, error) {
	t.mu.Lock()
	if err := t.rewardRegistry.Equip(rewardID, t.stats); err != nil {
		t.mu.Unlock()
		return Equipped{}, err
	}
	equipped := t.stats.Equipped
	t.dirty = true
	t.mu.Unlock()

	t.save()
	return equipped, nil
}

// Unequip clears the given slot and persists the change immediately.
func (t *Tracker) Unequip(slot RewardType) (Equipped, error) {
	t.mu.Lock()
	if err := t.rewardRegistry.Unequip(slot, t.stats); err != nil {
		t.mu.Unlock()
		return Equipped{}, err
	}
	equipped := t.stats.Equipped
	t.dirty = true
	t.mu.Unlock()

	t.save()
	return equipped, nil
}

func (t *Tracker) save() {
	t.mu.Lock()
	t.stats.Version = statsVersion
	t.stats.LastUpdated = t.now().UTC()
	data, err := json.Marshal(t.stats)
	t.dirty = false
	t.mu.Unlock()
	if err != nil {
		log.Printf("marshaling stats failed: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := t.store.SaveStats(ctx, t.userID, data); err != nil {
		log.Printf("saving stats failed: %v", err)
	}
}
