package arena

import (
	"math"
	"math/rand"
	"time"

	"github.com/quizarena/backend/internal/guard"
	"github.com/quizarena/backend/internal/questions"
)

// Phase is the match state machine position.
type Phase int

const (
	PhaseNotStarted       Phase = iota
	PhaseInProgress             // countdown running, waiting for the user
	PhaseAwaitingOpponent       // user answered, opponent reveal pending
	PhaseRevealed               // both answers visible, waiting for Next
	PhaseFinished
)

var phaseNames = map[Phase]string{
	PhaseNotStarted:       "not_started",
	PhaseInProgress:       "in_progress",
	PhaseAwaitingOpponent: "awaiting_opponent",
	PhaseRevealed:         "revealed",
	PhaseFinished:         "finished",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

// Outcome is the final result of a match from the user's perspective.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeTie  Outcome = "tie"
)

// questionResult records both sides' answers for one question. Answer
// indices are -1 until set.
type questionResult struct {
	UserAnswer       int
	UserCorrect      bool
	Answered         bool // false when the countdown expired
	OpponentAnswer   int
	OpponentCorrect  bool
	OpponentRevealed bool
	TimeUsedSeconds  int
}

// Match is one arena duel. It is owned by the engine for its duration and
// discarded after finalize; only the aggregate outcome is persisted.
type Match struct {
	ID            string
	Subject       string
	Questions     []questions.Question
	Results       []questionResult
	OpponentMask  map[int]bool // question indices the opponent answers correctly
	Current       int
	Phase         Phase
	UserScore     int
	OpponentScore int
	TimeUsed      int // seconds accumulated across questions
	StartedAt     time.Time

	guard guard.Guard // one-shot finalize latch, never shared across matches
}

// newOpponentMask pre-selects exactly round(n*accuracy) question indices
// the opponent will answer correctly, sampled without replacement. Fixing
// the mask up front makes the opponent's aggregate accuracy exact
// regardless of question content.
func newOpponentMask(rng *rand.Rand, n int, accuracy float64) map[int]bool {
	k := int(math.Round(float64(n) * accuracy))
	if k > n {
		k = n
	}
	mask := make(map[int]bool, k)
	for _, idx := range rng.Perm(n)[:k] {
		mask[idx] = true
	}
	return mask
}

// opponentAnswer picks the simulated opponent's option for question q. A
// masked question gets the correct option; otherwise an incorrect option
// is drawn uniformly, falling back to option 0 when every option is
// correct (degenerate single-answer questions).
func opponentAnswer(rng *rand.Rand, q *questions.Question, correct bool) int {
	if correct {
		return q.CorrectIndex
	}
	wrong := make([]int, 0, len(q.Options)-1)
	for i := range q.Options {
		if i != q.CorrectIndex {
			wrong = append(wrong, i)
		}
	}
	if len(wrong) == 0 {
		return 0
	}
	return wrong[rng.Intn(len(wrong))]
}

// correctCount returns how many questions the user answered correctly.
func (m *Match) correctCount() int {
	n := 0
	for i := range m.Results {
		if m.Results[i].UserCorrect {
			n++
		}
	}
	return n
}

// snapshot returns a deep copy safe to read off the engine lock. The
// finalize latch stays with the live match.
func (m *Match) snapshot() *Match {
	if m == nil {
		return nil
	}
	c := &Match{
		ID:            m.ID,
		Subject:       m.Subject,
		Questions:     append([]questions.Question(nil), m.Questions...),
		Results:       append([]questionResult(nil), m.Results...),
		OpponentMask:  make(map[int]bool, len(m.OpponentMask)),
		Current:       m.Current,
		Phase:         m.Phase,
		UserScore:     m.UserScore,
		OpponentScore: m.OpponentScore,
		TimeUsed:      m.TimeUsed,
		StartedAt:     m.StartedAt,
	}
	for k, v := range m.OpponentMask {
		c.OpponentMask[k] = v
	}
	return c
}

// outcome compares final scores. Higher score wins; equal is a tie.
func (m *Match) outcome() Outcome {
	switch {
	case m.UserScore > m.OpponentScore:
		return OutcomeWin
	case m.UserScore < m.OpponentScore:
		return OutcomeLoss
	default:
		return OutcomeTie
	}
}
