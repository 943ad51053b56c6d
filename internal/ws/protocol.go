package ws

import (
	"github.com/quizarena/backend/internal/arena"
	"github.com/quizarena/backend/internal/gamification"
	"github.com/quizarena/backend/internal/session"
)

type MessageType string

const (
	MsgSnapshot            MessageType = "snapshot"
	MsgDelta               MessageType = "delta"
	MsgXPAwarded           MessageType = "xp_awarded"
	MsgLevelUp             MessageType = "level_up"
	MsgQuestion            MessageType = "question"
	MsgOpponentReveal      MessageType = "opponent_reveal"
	MsgMatchFinished       MessageType = "match_finished"
	MsgChallengeComplete   MessageType = "challenge_complete"
	MsgAchievementUnlocked MessageType = "achievement_unlocked"
	MsgError               MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Sessions []*session.Record `json:"sessions"`
}

type DeltaPayload struct {
	Updates []*session.Record `json:"updates"`
}

type XPAwardedPayload struct {
	Amount  int    `json:"amount"`
	TotalXP int    `json:"totalXp"`
	Level   int    `json:"level"`
	Streak  int    `json:"streak"`
	Source  string `json:"source,omitempty"`
}

type LevelUpPayload struct {
	Level    int `json:"level"`
	XPToNext int `json:"xpToNext"`
}

// QuestionPayload presents one arena question to the client. The correct
// option index never crosses the wire before the reveal.
type QuestionPayload struct {
	MatchID string   `json:"matchId"`
	Index   int      `json:"index"`
	Total   int      `json:"total"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type ChallengeCompletePayload struct {
	Challenge gamification.ChallengeProgress `json:"challenge"`
	XPEarned  int                            `json:"xpEarned"`
}

type AchievementRewardPayload struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AchievementUnlockedPayload struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Tier        string                    `json:"tier"`
	Reward      *AchievementRewardPayload `json:"reward,omitempty"`
}

// RevealPayload and ResultPayload reuse the engine's wire shapes.
type (
	RevealPayload = arena.Reveal
	ResultPayload = arena.Result
)

// ClientMessage is the inbound message shape. Only visibility control is
// accepted from clients; everything else arrives over the REST surface.
type ClientMessage struct {
	Type   string `json:"type"`
	Hidden bool   `json:"hidden"`
}
