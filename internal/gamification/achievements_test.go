package gamification

import "testing"

func TestEvaluate_UnlocksAndRecords(t *testing.T) {
	engine := NewAchievementEngine()
	stats := newStats()
	stats.TotalSessions = 1

	unlocked := engine.Evaluate(stats)
	if len(unlocked) != 1 || unlocked[0].ID != "first_steps" {
		t.Fatalf("unlocked = %v, want exactly first_steps", achievementIDs(unlocked))
	}
	if _, ok := stats.AchievementsUnlocked["first_steps"]; !ok {
		t.Error("unlock not recorded in stats")
	}

	// A second pass over unchanged stats must not re-unlock.
	if again := engine.Evaluate(stats); len(again) != 0 {
		t.Errorf("re-evaluation unlocked %v", achievementIDs(again))
	}
}

func TestEvaluate_Thresholds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Stats)
		want   string
	}{
		{"sessions 10", func(s *Stats) { s.TotalSessions = 10 }, "getting_serious"},
		{"sessions 100", func(s *Stats) { s.TotalSessions = 100 }, "century_club"},
		{"completions 25", func(s *Stats) { s.TotalCompletions = 25 }, "finisher"},
		{"first match", func(s *Stats) { s.MatchesPlayed = 1 }, "first_duel"},
		{"10 wins", func(s *Stats) { s.MatchesWon = 10 }, "champion"},
		{"win streak 5", func(s *Stats) { s.ConsecutiveWins = 5 }, "winning_streak"},
		{"perfect match", func(s *Stats) { s.PerfectMatches = 1 }, "flawless_victory"},
		{"100 correct", func(s *Stats) { s.CorrectAnswers = 100 }, "sharp_shooter"},
		{"level 10", func(s *Stats) { s.HighestLevel = 10 }, "level_10"},
		{"hour session", func(s *Stats) { s.MaxSessionDurationSec = 3600 }, "deep_focus"},
		{"50 units", func(s *Stats) { s.MaxUnitsInSession = 50 }, "prolific"},
		{"10 hours total", func(s *Stats) { s.TotalStudySeconds = 36000 }, "ten_hours_in"},
		{
			"loss then win",
			func(s *Stats) { s.MatchesLost = 1; s.MatchesWon = 1 },
			"comeback",
		},
	}

	engine := NewAchievementEngine()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stats := newStats()
			tc.mutate(stats)
			unlocked := engine.Evaluate(stats)
			for _, a := range unlocked {
				if a.ID == tc.want {
					return
				}
			}
			t.Errorf("unlocked %v, want it to include %s", achievementIDs(unlocked), tc.want)
		})
	}
}

func TestEvaluate_BelowThresholdStaysLocked(t *testing.T) {
	engine := NewAchievementEngine()
	stats := newStats()
	stats.MatchesWon = 9
	stats.ConsecutiveWins = 4
	stats.CorrectAnswers = 99

	unlocked := engine.Evaluate(stats)
	for _, a := range unlocked {
		switch a.ID {
		case "champion", "winning_streak", "sharp_shooter":
			t.Errorf("%s unlocked below its threshold", a.ID)
		}
	}
}

func TestRegistry_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for _, a := range NewAchievementEngine().Registry() {
		if seen[a.ID] {
			t.Errorf("duplicate achievement ID %q", a.ID)
		}
		seen[a.ID] = true
		if a.Condition == nil {
			t.Errorf("achievement %q has no condition", a.ID)
		}
	}
}

func TestAchievementXP(t *testing.T) {
	cases := []struct {
		tier Tier
		want int
	}{
		{TierBronze, 50},
		{TierSilver, 100},
		{TierGold, 150},
		{TierPlatinum, 200},
		{Tier("unknown"), 50},
	}
	for _, tc := range cases {
		if got := AchievementXP(tc.tier); got != tc.want {
			t.Errorf("AchievementXP(%s) = %d, want %d", tc.tier, got, tc.want)
		}
	}
}

func achievementIDs(as []Achievement) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.ID
	}
	return out
}
