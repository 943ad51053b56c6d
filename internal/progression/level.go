package progression

// Level schedule: advancing from level L to L+1 costs 1000 + 200*L XP.
// Level 1 -> 2 costs 1200, 2 -> 3 costs 1400, and so on. The cost is
// strictly increasing, which makes LevelFor monotonic in totalXP.
const (
	levelBaseCost   = 1000
	levelCostPerLvl = 200
)

// LevelInfo is the derived position within the level schedule for a given
// cumulative XP total.
type LevelInfo struct {
	Level    int `json:"level"`
	XPInto   int `json:"xpInto"`   // XP accumulated within the current level
	XPToNext int `json:"xpToNext"` // total XP cost of the current level
	TotalXP  int `json:"totalXp"`
}

// XPToNextLevel returns the XP cost of advancing from the given level to
// the next one.
func XPToNextLevel(level int) int {
	if level < 1 {
		level = 1
	}
	return levelBaseCost + levelCostPerLvl*level
}

// LevelFor maps a cumulative XP total to its derived level position.
// Negative totals are treated as zero. Starting at level 1, the cost of
// each level is subtracted while the remainder covers it.
func LevelFor(totalXP int) LevelInfo {
	if totalXP < 0 {
		totalXP = 0
	}
	level := 1
	remaining := totalXP
	for remaining >= XPToNextLevel(level) {
		remaining -= XPToNextLevel(level)
		level++
	}
	return LevelInfo{
		Level:    level,
		XPInto:   remaining,
		XPToNext: XPToNextLevel(level),
		TotalXP:  totalXP,
	}
}
