package arena

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quizarena/backend/internal/questions"
	"github.com/quizarena/backend/internal/ranking"
	"github.com/quizarena/backend/internal/session"
	"github.com/quizarena/backend/internal/store"
)

// Config carries the match constants. Zero values fall back to the
// observed production behavior.
type Config struct {
	QuestionsPerMatch int           // default 5
	QuestionTime      time.Duration // per-question budget, default 30s
	RevealDelayMin    time.Duration // opponent "thinking time" range
	RevealDelayMax    time.Duration
	PointsPerCorrect  int     // default 100
	OpponentAccuracy  float64 // default 0.7
	XPPerMinute       int     // default 5
	XPPerQuestion     int     // default 10
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		QuestionsPerMatch: 5,
		QuestionTime:      30 * time.Second,
		RevealDelayMin:    2 * time.Second,
		RevealDelayMax:    5 * time.Second,
		PointsPerCorrect:  100,
		OpponentAccuracy:  0.7,
		XPPerMinute:       5,
		XPPerQuestion:     10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.QuestionsPerMatch <= 0 {
		c.QuestionsPerMatch = d.QuestionsPerMatch
	}
	if c.QuestionTime <= 0 {
		c.QuestionTime = d.QuestionTime
	}
	if c.PointsPerCorrect <= 0 {
		c.PointsPerCorrect = d.PointsPerCorrect
	}
	if c.OpponentAccuracy <= 0 || c.OpponentAccuracy > 1 {
		c.OpponentAccuracy = d.OpponentAccuracy
	}
	if c.XPPerMinute <= 0 {
		c.XPPerMinute = d.XPPerMinute
	}
	if c.XPPerQuestion <= 0 {
		c.XPPerQuestion = d.XPPerQuestion
	}
	return c
}

var (
	// ErrMatchInProgress is returned by Start while a match is running.
	ErrMatchInProgress = errors.New("a match is already in progress")
	// ErrNoMatch is returned when an action needs a running match.
	ErrNoMatch = errors.New("no match in progress")
	// ErrNotAwaitingAnswer is returned when an answer arrives outside the
	// countdown window (already answered, or match finished).
	ErrNotAwaitingAnswer = errors.New("not awaiting an answer")
	// ErrNotRevealed is returned by Next before the opponent reveal.
	ErrNotRevealed = errors.New("opponent answer not yet revealed")
)

// XPLedger is the slice of the progression ledger the engine needs.
type XPLedger interface {
	Add(amount int) (int, error)
}

// Result is the aggregate outcome of a finalized match.
type Result struct {
	MatchID        string  `json:"matchId"`
	Outcome        Outcome `json:"outcome"`
	UserScore      int     `json:"userScore"`
	OpponentScore  int     `json:"opponentScore"`
	Questions      int     `json:"questions"`
	CorrectAnswers int     `json:"correctAnswers"`
	Accuracy       float64 `json:"accuracy"`
	TimeUsed       int     `json:"timeUsedSeconds"`
	XPEarned       int     `json:"xpEarned"`
}

// Reveal describes the opponent's answer for one question once its
// thinking delay has elapsed.
type Reveal struct {
	MatchID         string `json:"matchId"`
	QuestionIndex   int    `json:"questionIndex"`
	UserAnswer      int    `json:"userAnswer"`
	UserCorrect     bool   `json:"userCorrect"`
	OpponentAnswer  int    `json:"opponentAnswer"`
	OpponentCorrect bool   `json:"opponentCorrect"`
	UserScore       int    `json:"userScore"`
	OpponentScore   int    `json:"opponentScore"`
}

// Events receives match notifications. Callbacks run off the engine lock
// and may be invoked from timer goroutines.
type Events struct {
	OnQuestion func(matchID string, index, total int)
	OnReveal   func(Reveal)
	OnFinished func(Result)
}

// Engine runs one arena match at a time for a single user: a fixed-length
// sequence of timed questions against a simulated opponent whose aggregate
// accuracy is fixed in advance.
type Engine struct {
	mu       sync.Mutex
	userID   string
	cfg      Config
	provider questions.Provider
	ledger   XPLedger
	recorder *session.Recorder
	store    store.Store
	ranking  ranking.Ranking
	events   Events
	rng      *rand.Rand

	match         *Match
	questionStart time.Time
	questionTimer *time.Timer
	revealTimer   *time.Timer

	now func() time.Time
}

// NewEngine creates an engine. ranking may be nil (no leaderboard).
func NewEngine(userID string, cfg Config, provider questions.Provider, ledger XPLedger, recorder *session.Recorder, st store.Store, rank ranking.Ranking) *Engine {
	return &Engine{
		userID:   userID,
		cfg:      cfg.withDefaults(),
		provider: provider,
		ledger:   ledger,
		recorder: recorder,
		store:    st,
		ranking:  rank,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// SetEvents registers match callbacks. Must be called before Start.
func (e *Engine) SetEvents(ev Events) {
	e.events = ev
}

// Start fetches questions, fixes the opponent's correct-answer mask, opens
// the arena activity session, and begins the first question's countdown.
func (e *Engine) Start(ctx context.Context, subject string) (*Match, error) {
	e.mu.Lock()
	if e.match != nil && e.match.Phase != PhaseFinished {
		e.mu.Unlock()
		return nil, ErrMatchInProgress
	}
	e.mu.Unlock()

	qs, err := e.provider.Fetch(ctx, subject, e.cfg.QuestionsPerMatch)
	if err != nil {
		return nil, fmt.Errorf("starting match: %w", err)
	}
	for i := range qs {
		if err := qs[i].Validate(); err != nil {
			return nil, fmt.Errorf("starting match: %w", err)
		}
	}

	e.mu.Lock()
	// Re-check: a concurrent Start may have installed a match while the
	// lock was released for the fetch.
	if e.match != nil && e.match.Phase != PhaseFinished {
		e.mu.Unlock()
		return nil, ErrMatchInProgress
	}
	m := &Match{
		ID:           uuid.NewString(),
		Subject:      subject,
		Questions:    qs,
		Results:      make([]questionResult, len(qs)),
		OpponentMask: newOpponentMask(e.rng, len(qs), e.cfg.OpponentAccuracy),
		Phase:        PhaseInProgress,
		StartedAt:    e.now(),
	}
	for i := range m.Results {
		m.Results[i].UserAnswer = -1
		m.Results[i].OpponentAnswer = -1
	}
	e.match = m
	e.armQuestionLocked(m, 0)
	snap := m.snapshot()
	e.mu.Unlock()

	// Open the arena session so heartbeats cover the match.
	if _, err := e.recorder.RecordWork(session.TypeArena, 0, store.Metadata{
		"match_id": m.ID,
		"subject":  subject,
	}); err != nil {
		log.Printf("arena session open failed: %v", err)
	}

	if e.events.OnQuestion != nil {
		e.events.OnQuestion(m.ID, 0, len(qs))
	}
	return snap, nil
}

// armQuestionLocked starts the countdown for question idx. Callers hold e.mu.
func (e *Engine) armQuestionLocked(m *Match, idx int) {
	e.questionStart = e.now()
	e.questionTimer = time.AfterFunc(e.cfg.QuestionTime, func() {
		e.expireQuestion(m, idx)
	})
}

// Answer records the user's explicit answer for the current question.
func (e *Engine) Answer(optionIndex int) error {
	e.mu.Lock()
	m := e.match
	if m == nil || m.Phase == PhaseFinished {
		e.mu.Unlock()
		return ErrNoMatch
	}
	if m.Phase != PhaseInProgress {
		e.mu.Unlock()
		return ErrNotAwaitingAnswer
	}
	q := &m.Questions[m.Current]
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		e.mu.Unlock()
		return fmt.Errorf("answer index %d out of range [0,%d)", optionIndex, len(q.Options))
	}

	elapsed := int(e.now().Sub(e.questionStart).Seconds())
	budget := int(e.cfg.QuestionTime.Seconds())
	if elapsed > budget {
		elapsed = budget
	}
	e.recordAnswerLocked(m, m.Current, optionIndex, true, elapsed)
	e.mu.Unlock()

	// Answered questions count as units of work on the arena session.
	if _, err := e.recorder.RecordWork(session.TypeArena, 1, nil); err != nil {
		log.Printf("arena work unit failed: %v", err)
	}
	return nil
}

// expireQuestion is the countdown callback: the question is treated as an
// implicit incorrect answer charged the full budget. Stale fires (a new
// question already advanced, or the user answered in the same instant) are
// detected and dropped.
func (e *Engine) expireQuestion(m *Match, idx int) {
	e.mu.Lock()
	if e.match != m || m.Phase != PhaseInProgress || m.Current != idx {
		e.mu.Unlock()
		return
	}
	e.recordAnswerLocked(m, idx, -1, false, int(e.cfg.QuestionTime.Seconds()))
	e.mu.Unlock()
}

// recordAnswerLocked applies the user's (explicit or implicit) answer and
// computes the opponent's, strictly in that order, then schedules the
// reveal. Callers hold e.mu.
func (e *Engine) recordAnswerLocked(m *Match, idx, optionIndex int, answered bool, timeUsed int) {
	e.stopQuestionTimerLocked()

	q := &m.Questions[idx]
	res := &m.Results[idx]
	res.Answered = answered
	res.UserAnswer = optionIndex
	res.UserCorrect = answered && optionIndex == q.CorrectIndex
	res.TimeUsedSeconds = timeUsed
	m.TimeUsed += timeUsed
	if res.UserCorrect {
		m.UserScore += e.cfg.PointsPerCorrect
	}

	// The opponent's answer is determined only after the user's is locked in.
	res.OpponentCorrect = m.OpponentMask[idx]
	res.OpponentAnswer = opponentAnswer(e.rng, q, res.OpponentCorrect)

	m.Phase = PhaseAwaitingOpponent

	delay := e.revealDelayLocked()
	if delay <= 0 {
		e.revealLocked(m, idx)
		return
	}
	e.revealTimer = time.AfterFunc(delay, func() {
		e.mu.Lock()
		if e.match != m || m.Phase != PhaseAwaitingOpponent || m.Current != idx {
			e.mu.Unlock()
			return
		}
		e.revealLocked(m, idx)
		e.mu.Unlock()
	})
}

// revealDelayLocked draws the opponent's cosmetic thinking time uniformly
// from the configured range. The delay never affects scoring.
func (e *Engine) revealDelayLocked() time.Duration {
	min, max := e.cfg.RevealDelayMin, e.cfg.RevealDelayMax
	if max <= min {
		return min
	}
	return min + time.Duration(e.rng.Int63n(int64(max-min)))
}

// revealLocked applies the opponent's score and notifies observers.
// Callers hold e.mu; the callback is dispatched outside the lock.
func (e *Engine) revealLocked(m *Match, idx int) {
	res := &m.Results[idx]
	res.OpponentRevealed = true
	if res.OpponentCorrect {
		m.OpponentScore += e.cfg.PointsPerCorrect
	}
	m.Phase = PhaseRevealed

	if e.events.OnReveal == nil {
		return
	}
	reveal := Reveal{
		MatchID:         m.ID,
		QuestionIndex:   idx,
		UserAnswer:      res.UserAnswer,
		UserCorrect:     res.UserCorrect,
		OpponentAnswer:  res.OpponentAnswer,
		OpponentCorrect: res.OpponentCorrect,
		UserScore:       m.UserScore,
		OpponentScore:   m.OpponentScore,
	}
	go e.events.OnReveal(reveal)
}

// Next advances past a revealed question: to the following question's
// countdown, or to finalize after the last one.
func (e *Engine) Next(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	m := e.match
	if m == nil || m.Phase == PhaseFinished {
		e.mu.Unlock()
		return nil, ErrNoMatch
	}
	if m.Phase != PhaseRevealed {
		e.mu.Unlock()
		return nil, ErrNotRevealed
	}

	if m.Current < len(m.Questions)-1 {
		m.Current++
		m.Phase = PhaseInProgress
		idx := m.Current
		e.armQuestionLocked(m, idx)
		e.mu.Unlock()

		if e.events.OnQuestion != nil {
			e.events.OnQuestion(m.ID, idx, len(m.Questions))
		}
		return nil, nil
	}
	e.mu.Unlock()

	return e.Finish(ctx)
}

// Finish runs the finalize sequence: XP award, completion record, terminal
// session upsert, and ranking update, at most once per match. Racing
// triggers (timeout vs explicit submit) resolve silently: the loser
// returns the already-computed result. On an award or persistence failure
// the latch is released so an explicit retry can run.
func (e *Engine) Finish(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	m := e.match
	if m == nil {
		e.mu.Unlock()
		return nil, ErrNoMatch
	}

	if !m.guard.TryEnter() {
		res := e.buildResultLocked(m)
		e.mu.Unlock()
		return &res, nil
	}

	e.stopTimersLocked()
	m.Phase = PhaseFinished
	res := e.buildResultLocked(m)
	e.mu.Unlock()

	if err := e.settle(ctx, m, &res); err != nil {
		e.mu.Lock()
		m.guard.Reset()
		e.mu.Unlock()
		return nil, err
	}

	if e.events.OnFinished != nil {
		go e.events.OnFinished(res)
	}
	return &res, nil
}

// buildResultLocked derives the aggregate outcome. Callers hold e.mu.
func (e *Engine) buildResultLocked(m *Match) Result {
	n := len(m.Questions)
	correct := m.correctCount()
	timeUsed := m.TimeUsed
	if timeUsed < 1 {
		timeUsed = 1
	}
	// 5 XP per (floored) minute plus 10 XP per question.
	xpMinutes := timeUsed
	if xpMinutes < 60 {
		xpMinutes = 60
	}
	xp := (xpMinutes/60)*e.cfg.XPPerMinute + n*e.cfg.XPPerQuestion

	return Result{
		MatchID:        m.ID,
		Outcome:        m.outcome(),
		UserScore:      m.UserScore,
		OpponentScore:  m.OpponentScore,
		Questions:      n,
		CorrectAnswers: correct,
		Accuracy:       float64(correct) / float64(n),
		TimeUsed:       timeUsed,
		XPEarned:       xp,
	}
}

// settle performs the external half of finalize: reward, completion row,
// terminal session record, ranking. Ranking is fire-and-forget; the rest
// reports failure so the guard can be released.
func (e *Engine) settle(ctx context.Context, m *Match, res *Result) error {
	if _, err := e.ledger.Add(res.XPEarned); err != nil {
		return fmt.Errorf("awarding match xp: %w", err)
	}

	if err := e.store.AppendCompletion(ctx, &store.CompletionRecord{
		ID:              uuid.NewString(),
		UserID:          e.userID,
		Kind:            "match",
		XPEarned:        res.XPEarned,
		Score:           res.UserScore,
		Accuracy:        res.Accuracy,
		TimeUsedSeconds: res.TimeUsed,
		Metadata: store.Metadata{
			"match_id": m.ID,
			"subject":  m.Subject,
			"outcome":  string(res.Outcome),
		},
	}); err != nil {
		return fmt.Errorf("recording completion: %w", err)
	}

	if err := e.recorder.Complete(ctx, session.TypeArena, store.Metadata{
		"match_id":       m.ID,
		"user_score":     res.UserScore,
		"opponent_score": res.OpponentScore,
		"accuracy":       res.Accuracy,
		"xp_earned":      res.XPEarned,
		"outcome":        string(res.Outcome),
	}); err != nil {
		return fmt.Errorf("completing arena session: %w", err)
	}

	if e.ranking != nil {
		if err := e.ranking.Submit(ctx, ranking.Entry{
			UserID:          e.userID,
			Score:           res.UserScore,
			Accuracy:        res.Accuracy,
			TimeUsedSeconds: res.TimeUsed,
		}); err != nil {
			log.Printf("ranking update failed: %v", err)
		}
	}
	return nil
}

// Current returns a copy of the running match, or nil. Callers get a
// stable view; the live match only changes under the engine lock.
func (e *Engine) Current() *Match {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.match.snapshot()
}

// Close tears down any live timers. The match, if unfinished, is abandoned
// without a reward.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimersLocked()
}

func (e *Engine) stopQuestionTimerLocked() {
	if e.questionTimer != nil {
		e.questionTimer.Stop()
		e.questionTimer = nil
	}
}

func (e *Engine) stopTimersLocked() {
	e.stopQuestionTimerLocked()
	if e.revealTimer != nil {
		e.revealTimer.Stop()
		e.revealTimer = nil
	}
}
