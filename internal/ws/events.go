package ws

import (
	"log"
	"sync"

	"github.com/quizarena/backend/internal/arena"
	"github.com/quizarena/backend/internal/gamification"
	"github.com/quizarena/backend/internal/progression"
	"github.com/quizarena/backend/internal/session"
)

// BindEvents wires the engines' callbacks to the broadcaster and the
// gamification tracker. Must run before the recorder's first RecordWork
// and before the engine's first Start.
func BindEvents(ledger *progression.Ledger, recorder *session.Recorder, engine *arena.Engine, tracker *gamification.Tracker, trackerCh chan<- session.Event, b *Broadcaster) {
	recorder.OnEvent(func(ev session.Event) {
		select {
		case trackerCh <- ev:
		default:
			log.Printf("tracker event channel full, dropping %v", ev.Type)
		}
		b.QueueUpdate(ev.Record)
	})

	var levelMu sync.Mutex
	lastLevel := ledger.Snapshot().Level.Level
	ledger.OnAward(func(state progression.State, amount int) {
		tracker.ObserveLevel(state.Level.Level)
		b.Publish(MsgXPAwarded, XPAwardedPayload{
			Amount:  amount,
			TotalXP: state.TotalXP,
			Level:   state.Level.Level,
			Streak:  state.Streak,
		})

		levelMu.Lock()
		leveled := state.Level.Level > lastLevel
		if leveled {
			lastLevel = state.Level.Level
		}
		levelMu.Unlock()
		if leveled {
			b.Publish(MsgLevelUp, LevelUpPayload{
				Level:    state.Level.Level,
				XPToNext: state.Level.XPToNext,
			})
		}
	})

	engine.SetEvents(arena.Events{
		OnQuestion: func(matchID string, index, total int) {
			m := engine.Current()
			if m == nil || m.ID != matchID || index >= len(m.Questions) {
				return
			}
			b.Publish(MsgQuestion, questionPayload(m, index))
		},
		OnReveal: func(rev arena.Reveal) {
			b.Publish(MsgOpponentReveal, rev)
		},
		OnFinished: func(res arena.Result) {
			tracker.RecordMatch(res)
			b.Publish(MsgMatchFinished, res)
		},
	})

	tracker.OnChallenge(func(progress gamification.ChallengeProgress, xp int) {
		b.Publish(MsgChallengeComplete, ChallengeCompletePayload{
			Challenge: progress,
			XPEarned:  xp,
		})
	})

	tracker.OnAchievement(func(a gamification.Achievement, reward *gamification.Reward) {
		payload := AchievementUnlockedPayload{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Tier:        string(a.Tier),
		}
		if reward != nil {
			payload.Reward = &AchievementRewardPayload{
				Type: string(reward.Type),
				ID:   reward.ID,
				Name: reward.Name,
			}
		}
		b.Publish(MsgAchievementUnlocked, payload)
	})
}
