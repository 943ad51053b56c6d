package gamification

import "time"

// statsVersion is bumped when the schema changes so Load can apply
// migrations in the future.
const statsVersion = 1

// Stats is the persistent aggregate for one user's gamification state. It
// is serialized to a JSON blob and stored through the Store's stats
// surface alongside the rest of the user's data.
type Stats struct {
	Version int `json:"version"`

	// Session aggregates
	TotalSessions     int            `json:"totalSessions"`
	TotalCompletions  int            `json:"totalCompletions"`
	SessionsPerType   map[string]int `json:"sessionsPerType"`
	TotalStudySeconds int            `json:"totalStudySeconds"`

	// Peak metrics (all-time highs)
	MaxSessionDurationSec int `json:"maxSessionDurationSec"`
	MaxUnitsInSession     int `json:"maxUnitsInSession"`

	// Arena aggregates
	MatchesPlayed     int     `json:"matchesPlayed"`
	MatchesWon        int     `json:"matchesWon"`
	MatchesLost       int     `json:"matchesLost"`
	MatchesTied       int     `json:"matchesTied"`
	ConsecutiveWins   int     `json:"consecutiveWins"`
	PerfectMatches    int     `json:"perfectMatches"`
	BestMatchScore    int     `json:"bestMatchScore"`
	BestAccuracy      float64 `json:"bestAccuracy"`
	QuestionsAnswered int     `json:"questionsAnswered"`
	CorrectAnswers    int     `json:"correctAnswers"`

	// Progression observed from the XP ledger
	HighestLevel  int `json:"highestLevel"`
	TotalXPEarned int `json:"totalXpEarned"`

	// Gamification state
	AchievementsUnlocked map[string]time.Time `json:"achievementsUnlocked"`
	Equipped             Equipped             `json:"equipped"`
	DailyChallenges      DailyChallengeState  `json:"dailyChallenges"`

	LastUpdated time.Time `json:"lastUpdated"`
}

// Equipped tracks which cosmetic item is active in each profile slot.
// Each field holds a reward ID, or the empty string if the slot is empty.
type Equipped struct {
	Avatar string `json:"avatar,omitempty"`
	Badge  string `json:"badge,omitempty"`
	Title  string `json:"title,omitempty"`
	Theme  string `json:"theme,omitempty"`
	Banner string `json:"banner,omitempty"`
}

// newStats returns a Stats with initialized maps and the current version.
func newStats() *Stats {
	s := &Stats{
		Version:              statsVersion,
		SessionsPerType:      make(map[string]int),
		AchievementsUnlocked: make(map[string]time.Time),
	}
	initDailyChallengeState(&s.DailyChallenges)
	return s
}

// initMaps ensures all map fields are non-nil after deserialization.
func (st *Stats) initMaps() {
	if st.SessionsPerType == nil {
		st.SessionsPerType = make(map[string]int)
	}
	if st.AchievementsUnlocked == nil {
		st.AchievementsUnlocked = make(map[string]time.Time)
	}
	initDailyChallengeState(&st.DailyChallenges)
}

// clone returns a deep copy of Stats with all maps duplicated.
func (st *Stats) clone() *Stats {
	cp := *st
	cp.SessionsPerType = make(map[string]int, len(st.SessionsPerType))
	for k, v := range st.SessionsPerType {
		cp.SessionsPerType[k] = v
	}
	cp.AchievementsUnlocked = make(map[string]time.Time, len(st.AchievementsUnlocked))
	for k, v := range st.AchievementsUnlocked {
		cp.AchievementsUnlocked[k] = v
	}
	cp.DailyChallenges.ActiveIDs = make([]string, len(st.DailyChallenges.ActiveIDs))
	copy(cp.DailyChallenges.ActiveIDs, st.DailyChallenges.ActiveIDs)
	cp.DailyChallenges.XPAwarded = make(map[string]bool, len(st.DailyChallenges.XPAwarded))
	for k, v := range st.DailyChallenges.XPAwarded {
		cp.DailyChallenges.XPAwarded[k] = v
	}
	cp.DailyChallenges.Snapshot.SessionsPerType = make(map[string]int, len(st.DailyChallenges.Snapshot.SessionsPerType))
	for k, v := range st.DailyChallenges.Snapshot.SessionsPerType {
		cp.DailyChallenges.Snapshot.SessionsPerType[k] = v
	}
	return &cp
}
