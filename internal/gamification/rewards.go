package gamification

import (
	"errors"
	"fmt"
)

// RewardType identifies which profile slot a reward occupies. Each slot
// holds at most one active reward at a time.
type RewardType string

const (
	RewardTypeAvatar RewardType = "avatar"
	RewardTypeBadge  RewardType = "badge"
	RewardTypeTitle  RewardType = "title"
	RewardTypeTheme  RewardType = "theme"
	RewardTypeBanner RewardType = "banner"
)

// ErrNotUnlocked is returned when equipping a reward the user has not yet earned.
var ErrNotUnlocked = errors.New("reward not unlocked")

// ErrUnknownReward is returned when a reward ID does not exist in the registry.
var ErrUnknownReward = errors.New("unknown reward")

// ErrSlotMismatch is returned when an unequip call receives an unrecognised slot name.
var ErrSlotMismatch = errors.New("unknown slot type")

// Reward describes a single cosmetic item in the registry.
type Reward struct {
	ID   string
	Type RewardType
	Name string
	// UnlockedBy is the achievement ID that grants this reward. An empty
	// string means the reward is granted by reaching a level (see
	// levelRewards in xp.go).
	UnlockedBy string
}

// RewardRegistry holds the complete set of cosmetic rewards and provides
// equip and loadout operations against a Stats snapshot.
type RewardRegistry struct {
	rewards map[string]Reward // keyed by Reward.ID
}

// NewRewardRegistry creates a registry pre-loaded with all cosmetic rewards.
func NewRewardRegistry() *RewardRegistry {
	r := &RewardRegistry{rewards: make(map[string]Reward)}
	for _, rw := range buildRewardList() {
		r.rewards[rw.ID] = rw
	}
	return r
}

// Registry returns a copy of all rewards in an unspecified order.
func (r *RewardRegistry) Registry() []Reward {
	out := make([]Reward, 0, len(r.rewards))
	for _, rw := range r.rewards {
		out = append(out, rw)
	}
	return out
}

// RewardForAchievement returns the reward granted by the given achievement,
// or ok=false when the achievement has no attached reward.
func (r *RewardRegistry) RewardForAchievement(achievementID string) (Reward, bool) {
	for _, rw := range r.rewards {
		if rw.UnlockedBy == achievementID {
			return rw, true
		}
	}
	return Reward{}, false
}

// IsUnlocked reports whether the user has earned the named reward. A
// reward is earned when its UnlockedBy achievement appears in
// stats.AchievementsUnlocked, or, for level rewards, when the user's
// highest observed level has reached the level that grants it.
func (r *RewardRegistry) IsUnlocked(rewardID string, stats *Stats) bool {
	rw, ok := r.rewards[rewardID]
	if !ok {
		return false
	}
	if rw.UnlockedBy != "" {
		_, earned := stats.AchievementsUnlocked[rw.UnlockedBy]
		return earned
	}
	// Level reward: find the level that lists this ID and check progress.
	for level := 1; level <= maxRewardLevel; level++ {
		for _, id := range levelRewards(level) {
			if id == rewardID {
				return stats.HighestLevel >= level
			}
		}
	}
	return false
}

// maxRewardLevel is the highest level that grants a cosmetic reward.
const maxRewardLevel = 20

// Equip places rewardID into its slot on stats.Equipped. It returns
// ErrUnknownReward if the ID is not in the registry, and ErrNotUnlocked if
// the user has not yet earned it. The caller is responsible for persisting
// stats after a successful call.
func (r *RewardRegistry) Equip(rewardID string, stats *Stats) error {
	rw, ok := r.rewards[rewardID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReward, rewardID)
	}
	if !r.IsUnlocked(rewardID, stats) {
		return fmt.Errorf("%w: %s", ErrNotUnlocked, rewardID)
	}
	setEquippedSlot(&stats.Equipped, rw.Type, rewardID)
	return nil
}

// Unequip clears the given slot on stats.Equipped. It is a no-op when the
// slot is already empty. It returns ErrSlotMismatch for unrecognised slot
// names.
func (r *RewardRegistry) Unequip(slot RewardType, stats *Stats) error {
	if !validSlot(slot) {
		return fmt.Errorf("%w: %s", ErrSlotMismatch, slot)
	}
	setEquippedSlot(&stats.Equipped, slot, "")
	return nil
}

// setEquippedSlot writes id into the field of eq that corresponds to slot.
func setEquippedSlot(eq *Equipped, slot RewardType, id string) {
	switch slot {
	case RewardTypeAvatar:
		eq.Avatar = id
	case RewardTypeBadge:
		eq.Badge = id
	case RewardTypeTitle:
		eq.Title = id
	case RewardTypeTheme:
		eq.Theme = id
	case RewardTypeBanner:
		eq.Banner = id
	}
}

// validSlot reports whether slot is one of the defined RewardType constants.
func validSlot(slot RewardType) bool {
	switch slot {
	case RewardTypeAvatar, RewardTypeBadge, RewardTypeTitle,
		RewardTypeTheme, RewardTypeBanner:
		return true
	}
	return false
}

// buildRewardList returns the authoritative list of cosmetic rewards.
// Level rewards leave UnlockedBy empty; achievement rewards name the
// achievement ID that grants them.
func buildRewardList() []Reward {
	return []Reward{

		// Level rewards. IDs must match the strings returned by
		// levelRewards() in xp.go.

		{ID: "bronze_badge", Type: RewardTypeBadge, Name: "Bronze Badge"},     // level 2
		{ID: "ocean_banner", Type: RewardTypeBanner, Name: "Ocean Banner"},    // level 3
		{ID: "night_theme", Type: RewardTypeTheme, Name: "Night Theme"},       // level 5
		{ID: "silver_badge", Type: RewardTypeBadge, Name: "Silver Badge"},     // level 7
		{ID: "owl_avatar", Type: RewardTypeAvatar, Name: "Owl Avatar"},        // level 10
		{ID: "strategist_title", Type: RewardTypeTitle, Name: "Strategist"},   // level 10
		{ID: "aurora_banner", Type: RewardTypeBanner, Name: "Aurora Banner"},  // level 15
		{ID: "gold_badge", Type: RewardTypeBadge, Name: "Gold Badge"},         // level 20
		{ID: "grandmaster_title", Type: RewardTypeTitle, Name: "Grandmaster"}, // level 20

		// Achievement rewards

		{ID: "rookie_avatar", Type: RewardTypeAvatar, Name: "Rookie Avatar", UnlockedBy: "first_steps"},
		{ID: "bookworm_banner", Type: RewardTypeBanner, Name: "Bookworm Banner", UnlockedBy: "dedicated_learner"},
		{ID: "centurion_badge", Type: RewardTypeBadge, Name: "Centurion Badge", UnlockedBy: "century_club"},
		{ID: "scholar_title", Type: RewardTypeTitle, Name: "Scholar", UnlockedBy: "scholar"},
		{ID: "finisher_badge", Type: RewardTypeBadge, Name: "Finisher Badge", UnlockedBy: "finisher"},

		{ID: "duelist_avatar", Type: RewardTypeAvatar, Name: "Duelist Avatar", UnlockedBy: "first_duel"},
		{ID: "gladiator_banner", Type: RewardTypeBanner, Name: "Gladiator Banner", UnlockedBy: "gladiator"},
		{ID: "champion_title", Type: RewardTypeTitle, Name: "Champion", UnlockedBy: "champion"},
		{ID: "arena_master_theme", Type: RewardTypeTheme, Name: "Arena Master Theme", UnlockedBy: "arena_master"},
		{ID: "streak_badge", Type: RewardTypeBadge, Name: "Streak Badge", UnlockedBy: "winning_streak"},

		{ID: "flawless_banner", Type: RewardTypeBanner, Name: "Flawless Banner", UnlockedBy: "flawless_victory"},
		{ID: "sniper_badge", Type: RewardTypeBadge, Name: "Sniper Badge", UnlockedBy: "sharp_shooter"},
		{ID: "encyclopedia_title", Type: RewardTypeTitle, Name: "Encyclopedia", UnlockedBy: "walking_encyclopedia"},

		{ID: "focus_theme", Type: RewardTypeTheme, Name: "Focus Theme", UnlockedBy: "deep_focus"},
		{ID: "marathon_title", Type: RewardTypeTitle, Name: "Marathoner", UnlockedBy: "marathon"},
		{ID: "prolific_banner", Type: RewardTypeBanner, Name: "Prolific Banner", UnlockedBy: "prolific"},
		{ID: "veteran_avatar", Type: RewardTypeAvatar, Name: "Veteran Avatar", UnlockedBy: "ten_hours_in"},
	}
}
