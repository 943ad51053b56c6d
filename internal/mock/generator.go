// Package mock drives the engines with simulated player activity so the
// dashboard and progression flows can be demoed without a real frontend.
package mock

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/quizarena/backend/internal/arena"
	"github.com/quizarena/backend/internal/questions"
	"github.com/quizarena/backend/internal/ranking"
	"github.com/quizarena/backend/internal/session"
	"github.com/quizarena/backend/internal/store"
)

// Generator plays a scripted study routine against the live engines:
// chat bursts, practice sets, visibility pauses, and full arena matches.
type Generator struct {
	recorder *session.Recorder
	engine   *arena.Engine
	rank     ranking.Ranking
	rng      *rand.Rand

	accuracy float64       // chance the simulated player answers correctly
	think    time.Duration // base delay before answering a question
}

func NewGenerator(recorder *session.Recorder, engine *arena.Engine, rank ranking.Ranking) *Generator {
	return &Generator{
		recorder: recorder,
		engine:   engine,
		rank:     rank,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		accuracy: 0.8,
		think:    time.Second,
	}
}

// rival seeds for the leaderboard so the demo board is never empty.
var rivals = []ranking.Entry{
	{UserID: "rival-nora", Score: 420, Accuracy: 0.84, TimeUsedSeconds: 96, Matches: 1},
	{UserID: "rival-jude", Score: 380, Accuracy: 0.76, TimeUsedSeconds: 110, Matches: 1},
	{UserID: "rival-sam", Score: 310, Accuracy: 0.62, TimeUsedSeconds: 128, Matches: 1},
}

var subjects = []string{"algebra", "history", "biology", "geography"}

func (g *Generator) Start(ctx context.Context) {
	for _, r := range rivals {
		if err := g.rank.Submit(ctx, r); err != nil {
			log.Printf("mock: seeding leaderboard: %v", err)
		}
	}
	go g.run(ctx)
}

// The routine cycles through fixed windows on a 2s tick: chat, a
// practice set that gets finished, a short hidden-tab pause, then an
// arena match before the cycle repeats.
const cyclePeriod = 40

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			g.advance(ctx, tick%cyclePeriod)
		}
	}
}

func (g *Generator) advance(ctx context.Context, phase int) {
	switch {
	case phase < 8: // chatting with the tutor
		if phase%2 == 0 {
			g.work(session.TypeChat, 1, nil)
		}

	case phase < 16: // grinding through a practice set
		g.work(session.TypePractice, 1+g.rng.Intn(3), store.Metadata{
			"set": "daily-review",
		})

	case phase == 16:
		if _, err := g.recorder.Finish(ctx, session.TypePractice); err != nil {
			log.Printf("mock: finishing practice: %v", err)
		}

	case phase == 18: // tab hidden for a stretch
		g.recorder.VisibilityLost()

	case phase == 22:
		g.recorder.VisibilityRestored()

	case phase == 24:
		go g.playMatch(ctx)

	case phase == cyclePeriod-1:
		if _, err := g.recorder.Finish(ctx, session.TypeChat); err != nil {
			log.Printf("mock: finishing chat: %v", err)
		}
	}
}

func (g *Generator) work(typ session.Type, units int, meta store.Metadata) {
	if _, err := g.recorder.RecordWork(typ, units, meta); err != nil {
		log.Printf("mock: recording %s work: %v", typ, err)
	}
}

// playMatch runs one arena match end to end, answering each question
// after a think delay and polling past the reveal window.
func (g *Generator) playMatch(ctx context.Context) {
	subject := subjects[g.rng.Intn(len(subjects))]
	m, err := g.engine.Start(ctx, subject)
	if err != nil {
		if !errors.Is(err, arena.ErrMatchInProgress) {
			log.Printf("mock: starting match: %v", err)
		}
		return
	}

	for i := range m.Questions {
		select {
		case <-ctx.Done():
			return
		case <-time.After(g.think * time.Duration(1+g.rng.Intn(4))):
		}

		choice := g.chooseAnswer(m.Questions[i])
		if err := g.engine.Answer(choice); err != nil {
			log.Printf("mock: answering question %d: %v", i, err)
			return
		}

		res, err := g.awaitNext(ctx)
		if err != nil {
			log.Printf("mock: advancing match: %v", err)
			return
		}
		if res != nil {
			log.Printf("mock: match over, %s %d-%d", res.Outcome, res.UserScore, res.OpponentScore)
			return
		}
	}
}

func (g *Generator) chooseAnswer(q questions.Question) int {
	if g.rng.Float64() < g.accuracy {
		return q.CorrectIndex
	}
	wrong := g.rng.Intn(len(q.Options) - 1)
	if wrong >= q.CorrectIndex {
		wrong++
	}
	return wrong
}

// awaitNext polls until the reveal window has passed and the match
// advances. A nil result means another question is up.
func (g *Generator) awaitNext(ctx context.Context) (*arena.Result, error) {
	for {
		res, err := g.engine.Next(ctx)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, arena.ErrNotRevealed) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
