package gamification

// XPDailyChallenge is awarded once per completed daily challenge.
const XPDailyChallenge = 50

// AchievementXP returns the XP award for unlocking an achievement of the
// given tier.
func AchievementXP(tier Tier) int {
	switch tier {
	case TierBronze:
		return 50
	case TierSilver:
		return 100
	case TierGold:
		return 150
	case TierPlatinum:
		return 200
	default:
		return 50
	}
}

// levelRewards returns the cosmetic reward IDs unlocked on reaching the
// given level. Level 1 is the entry level with no rewards.
func levelRewards(level int) []string {
	switch level {
	case 2:
		return []string{"bronze_badge"}
	case 3:
		return []string{"ocean_banner"}
	case 5:
		return []string{"night_theme"}
	case 7:
		return []string{"silver_badge"}
	case 10:
		return []string{"owl_avatar", "strategist_title"}
	case 15:
		return []string{"aurora_banner"}
	case 20:
		return []string{"gold_badge", "grandmaster_title"}
	default:
		return []string{}
	}
}
