package gamification

import "time"

// Tier represents an achievement's difficulty level.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Category groups related achievements in the UI.
type Category string

const (
	CategoryStudyMilestones Category = "Study Milestones"
	CategoryArena           Category = "Arena"
	CategoryAccuracy        Category = "Accuracy"
	CategoryProgression     Category = "Progression"
	CategoryEndurance       Category = "Endurance"
)

// Achievement describes a single unlockable goal.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Tier        Tier
	Category    Category
	// Condition reports whether the achievement should be awarded given a
	// Stats snapshot.
	Condition func(*Stats) bool
}

// AchievementEngine holds the complete achievement registry and evaluates
// which achievements become newly unlocked against a Stats snapshot.
type AchievementEngine struct {
	registry []Achievement
}

// NewAchievementEngine creates an engine pre-loaded with the full achievement set.
func NewAchievementEngine() *AchievementEngine {
	return &AchievementEngine{registry: buildRegistry()}
}

// Registry returns a shallow copy of all registered achievements.
func (e *AchievementEngine) Registry() []Achievement {
	out := make([]Achievement, len(e.registry))
	copy(out, e.registry)
	return out
}

// Evaluate checks every not-yet-unlocked achievement against stats.
// Newly passing achievements are recorded in stats.AchievementsUnlocked
// with the current UTC timestamp and returned. The caller is responsible
// for persisting stats after this call.
func (e *AchievementEngine) Evaluate(stats *Stats) []Achievement {
	now := time.Now().UTC()
	var unlocked []Achievement
	for _, a := range e.registry {
		if _, already := stats.AchievementsUnlocked[a.ID]; already {
			continue
		}
		if a.Condition(stats) {
			stats.AchievementsUnlocked[a.ID] = now
			unlocked = append(unlocked, a)
		}
	}
	return unlocked
}

func buildRegistry() []Achievement {
	return []Achievement{

		// Study Milestones

		{
			ID: "first_steps", Name: "First Steps",
			Description: "Start your first study session",
			Tier:        TierBronze, Category: CategoryStudyMilestones,
			Condition: func(s *Stats) bool { return s.TotalSessions >= 1 },
		},
		{
			ID: "getting_serious", Name: "Getting Serious",
			Description: "Start 10 study sessions",
			Tier:        TierBronze, Category: CategoryStudyMilestones,
			Condition: func(s *Stats) bool { return s.TotalSessions >= 10 },
		},
		{
			ID: "dedicated_learner", Name: "Dedicated Learner",
			Description: "Start 50 study sessions",
			Tier:        TierSilver, Category: CategoryStudyMilestones,
			Condition: func(s *Stats) bool { return s.TotalSessions >= 50 },
		},
		{
			ID: "century_club", Name: "Century Club",
			Description: "Start 100 study sessions",
			Tier:        TierGold, Category: CategoryStudyMilestones,
			Condition: func(s *Stats) bool { return s.TotalSessions >= 100 },
		},
		{
			ID: "scholar", Name: "Scholar",
			Description: "Start 500 study sessions",
			Tier:        TierPlatinum, Category: CategoryStudyMilestones,
			Condition: func(s *Stats) bool { return s.TotalSessions >= 500 },
		},
		{
			ID: "finisher", Name: "Finisher",
			Description: "Complete 25 study sessions",
			Tier:        TierSilver, Category: CategoryStudyMilestones,
			Condition: func(s *Stats) bool { return s.TotalCompletions >= 25 },
		},

		// Arena

		{
			ID: "first_duel", Name: "First Duel",
			Description: "Play your first arena match",
			Tier:        TierBronze, Category: CategoryArena,
			Condition: func(s *Stats) bool { return s.MatchesPlayed >= 1 },
		},
		{
			ID: "gladiator", Name: "Gladiator",
			Description: "Play 10 arena matches",
			Tier:        TierBronze, Category: CategoryArena,
			Condition: func(s *Stats) bool { return s.MatchesPlayed >= 10 },
		},
		{
			ID: "champion", Name: "Champion",
			Description: "Win 10 arena matches",
			Tier:        TierSilver, Category: CategoryArena,
			Condition: func(s *Stats) bool { return s.MatchesWon >= 10 },
		},
		{
			ID: "arena_master", Name: "Arena Master",
			Description: "Win 50 arena matches",
			Tier:        TierGold, Category: CategoryArena,
			Condition: func(s *Stats) bool { return s.MatchesWon >= 50 },
		},
		{
			ID: "winning_streak", Name: "Winning Streak",
			Description: "Win 5 arena matches in a row",
			Tier:        TierGold, Category: CategoryArena,
			Condition: func(s *Stats) bool { return s.ConsecutiveWins >= 5 },
		},
		{
			ID: "comeback", Name: "Comeback",
			Description: "Win a match after losing one",
			Tier:        TierBronze, Category: CategoryArena,
			Condition: func(s *Stats) bool {
				return s.MatchesLost >= 1 && s.MatchesWon >= 1
			},
		},

		// Accuracy

		{
			ID: "flawless_victory", Name: "Flawless Victory",
			Description: "Answer every question correctly in a match",
			Tier:        TierSilver, Category: CategoryAccuracy,
			Condition: func(s *Stats) bool { return s.PerfectMatches >= 1 },
		},
		{
			ID: "sharp_shooter", Name: "Sharp Shooter",
			Description: "Answer 100 arena questions correctly",
			Tier:        TierSilver, Category: CategoryAccuracy,
			Condition: func(s *Stats) bool { return s.CorrectAnswers >= 100 },
		},
		{
			ID: "walking_encyclopedia", Name: "Walking Encyclopedia",
			Description: "Answer 1,000 arena questions correctly",
			Tier:        TierPlatinum, Category: CategoryAccuracy,
			Condition: func(s *Stats) bool { return s.CorrectAnswers >= 1000 },
		},

		// Progression

		{
			ID: "level_5", Name: "Climbing",
			Description: "Reach level 5",
			Tier:        TierBronze, Category: CategoryProgression,
			Condition: func(s *Stats) bool { return s.HighestLevel >= 5 },
		},
		{
			ID: "level_10", Name: "Double Digits",
			Description: "Reach level 10",
			Tier:        TierSilver, Category: CategoryProgression,
			Condition: func(s *Stats) bool { return s.HighestLevel >= 10 },
		},
		{
			ID: "level_20", Name: "Heavyweight",
			Description: "Reach level 20",
			Tier:        TierGold, Category: CategoryProgression,
			Condition: func(s *Stats) bool { return s.HighestLevel >= 20 },
		},

		// Endurance

		{
			ID: "deep_focus", Name: "Deep Focus",
			Description: "A single session runs for an hour or more",
			Tier:        TierBronze, Category: CategoryEndurance,
			Condition: func(s *Stats) bool { return s.MaxSessionDurationSec >= 3600 },
		},
		{
			ID: "marathon", Name: "Marathon",
			Description: "A single session runs for 2 or more hours",
			Tier:        TierSilver, Category: CategoryEndurance,
			Condition: func(s *Stats) bool { return s.MaxSessionDurationSec >= 7200 },
		},
		{
			ID: "prolific", Name: "Prolific",
			Description: "Record 50 or more units of work in one session",
			Tier:        TierSilver, Category: CategoryEndurance,
			Condition: func(s *Stats) bool { return s.MaxUnitsInSession >= 50 },
		},
		{
			ID: "ten_hours_in", Name: "Ten Hours In",
			Description: "Accumulate 10 hours of total study time",
			Tier:        TierGold, Category: CategoryEndurance,
			Condition: func(s *Stats) bool { return s.TotalStudySeconds >= 36000 },
		},
	}
}
