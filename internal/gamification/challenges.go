package gamification

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"time"
)

// Challenge describes a single daily challenge goal.
type Challenge struct {
	ID          string
	Description string
	// Progress evaluates how far the user is toward completing this
	// challenge. It returns (current, target); current >= target means
	// complete.
	Progress func(snap *DaySnapshot) (current, target int)
}

// DaySnapshot captures the activity delta for the current challenge day.
// Challenges evaluate progress against these values, not all-time Stats.
type DaySnapshot struct {
	SessionsPerType   map[string]int `json:"sessionsPerType"`
	TotalSessions     int            `json:"totalSessions"`
	TotalCompletions  int            `json:"totalCompletions"`
	MatchesPlayed     int            `json:"matchesPlayed"`
	MatchesWon        int            `json:"matchesWon"`
	QuestionsAnswered int            `json:"questionsAnswered"`
	CorrectAnswers    int            `json:"correctAnswers"`
	XPEarned          int            `json:"xpEarned"`
	StudySeconds      int            `json:"studySeconds"`
}

// ChallengeProgress is the JSON-serializable progress for one active challenge.
type ChallengeProgress struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Current     int    `json:"current"`
	Target      int    `json:"target"`
	Complete    bool   `json:"complete"`
}

// DailyChallengeState is persisted in Stats to track the current day's
// challenges. XPAwarded latches which completed challenges have already
// paid out, so a challenge never awards twice.
type DailyChallengeState struct {
	DayStart  time.Time       `json:"dayStart"`
	ActiveIDs []string        `json:"activeIds"`
	Snapshot  DaySnapshot     `json:"snapshot"`
	XPAwarded map[string]bool `json:"xpAwarded"`
}

const challengesPerDay = 3

// challengePool returns the full set of available challenges.
func challengePool() []Challenge {
	return []Challenge{
		{
			ID:          "study_30_minutes",
			Description: "Study for 30 minutes today",
			Progress: func(snap *DaySnapshot) (int, int) {
				return snap.StudySeconds / 60, 30
			},
		},
		{
			ID:          "complete_3_sessions",
			Description: "Complete 3 study sessions today",
			Progress: func(snap *DaySnapshot) (int, int) {
				return snap.TotalCompletions, 3
			},
		},
		{
			ID:          "start_5_sessions",
			Description: "Start 5 study sessions today",
			Progress: func(snap *DaySnapshot) (int, int) {
				return snap.TotalSessions, 5
			},
		},
		{
			ID:          "play_3_matches",
			Description: "Play 3 arena matches today",
			Progress: func(snap *DaySnapshot) (int, int) {
				return snap.MatchesPlayed, 3
			},
		},
		{
			ID:          "win_2_matches",
			Description: "Win 2 arena matches today",
			Progress: func(snap *DaySnapshot) (int, int) {
				return snap.MatchesWon, 2
			},
		},
		{
			ID:          "answer_20_questions",
			Description: "Answer 20 arena questions today",
			Progress: func(snap *DaySnapshot) (int, int) {
				return snap.QuestionsAnswered, 20
			},
		},
		{
			ID:          "answer_15_correct",
			Description: "Answer 15 questions correctly today",
			Progress: func(snap *DaySnapshot) (int, int) {
				return snap.CorrectAnswers, 15
			},
		},
		{
			ID:          "earn_100_xp",
			Description: "Earn 100 XP today",
			Progress: func(snap *DaySnapshot) (int, int) {
				return snap.XPEarned, 100
			},
		},
		{
			ID:          "chat_session",
			Description: "Have a tutor chat session today",
			Progress: func(snap *DaySnapshot) (int, int) {
				return snap.SessionsPerType["chat"], 1
			},
		},
		{
			ID:          "practice_2_sets",
			Description: "Work through 2 practice sets today",
			Progress: func(snap *DaySnapshot) (int, int) {
				return snap.SessionsPerType["practice"], 2
			},
		},
	}
}

// challengeByID returns the Challenge from the pool with the given ID, or ok=false.
func challengeByID(id string) (Challenge, bool) {
	for _, c := range challengePool() {
		if c.ID == id {
			return c, true
		}
	}
	return Challenge{}, false
}

// dayStart returns midnight UTC of the day containing t.
func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// selectChallenges deterministically picks challengesPerDay challenges for
// the given day start time using a hash-based shuffle, so every instance
// serving the same user agrees on the active set without coordination.
func selectChallenges(ds time.Time) []string {
	pool := challengePool()
	n := len(pool)

	// Seed a deterministic ordering from the day timestamp.
	h := sha256.Sum256([]byte(ds.Format(time.RFC3339)))
	seed := binary.BigEndian.Uint64(h[:8])

	// Build index array and shuffle using Fisher-Yates with the seed.
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	for i := n - 1; i > 0; i-- {
		seed = seed*6364136223846793005 + 1442695040888963407 // LCG step
		j := int(seed % uint64(i+1))
		indices[i], indices[j] = indices[j], indices[i]
	}

	count := challengesPerDay
	if count > n {
		count = n
	}
	ids := make([]string, count)
	for i := 0; i < count; i++ {
		ids[i] = pool[indices[i]].ID
	}
	sort.Strings(ids)
	return ids
}

// EvaluateChallenges computes progress for the active daily challenges.
func EvaluateChallenges(state *DailyChallengeState) []ChallengeProgress {
	out := make([]ChallengeProgress, 0, len(state.ActiveIDs))
	for _, id := range state.ActiveIDs {
		c, ok := challengeByID(id)
		if !ok {
			continue
		}
		cur, tgt := c.Progress(&state.Snapshot)
		out = append(out, ChallengeProgress{
			ID:          c.ID,
			Description: c.Description,
			Current:     cur,
			Target:      tgt,
			Complete:    cur >= tgt,
		})
	}
	return out
}

// RotateChallengesIfNeeded checks whether the UTC day has changed and
// rotates the active challenge set. Returns true if rotation occurred.
func RotateChallengesIfNeeded(state *DailyChallengeState, now time.Time) bool {
	ds := dayStart(now)
	if !state.DayStart.IsZero() && ds.Equal(state.DayStart) {
		return false
	}
	state.DayStart = ds
	state.ActiveIDs = selectChallenges(ds)
	state.Snapshot = DaySnapshot{
		SessionsPerType: make(map[string]int),
	}
	state.XPAwarded = make(map[string]bool)
	return true
}

// initDailyChallengeState ensures the state has initialized maps.
func initDailyChallengeState(s *DailyChallengeState) {
	if s.Snapshot.SessionsPerType == nil {
		s.Snapshot.SessionsPerType = make(map[string]int)
	}
	if s.XPAwarded == nil {
		s.XPAwarded = make(map[string]bool)
	}
}
