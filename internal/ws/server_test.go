package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quizarena/backend/internal/arena"
	"github.com/quizarena/backend/internal/config"
	"github.com/quizarena/backend/internal/gamification"
	"github.com/quizarena/backend/internal/progression"
	"github.com/quizarena/backend/internal/questions"
	"github.com/quizarena/backend/internal/ranking"
	"github.com/quizarena/backend/internal/session"
	"github.com/quizarena/backend/internal/store"
)

type testStack struct {
	server   *Server
	ts       *httptest.Server
	recorder *session.Recorder
	engine   *arena.Engine
	tracker  *gamification.Tracker
	ledger   *progression.Ledger
	rank     *ranking.Memory
}

func poolQuestions() []questions.Question {
	qs := make([]questions.Question, 5)
	for i := range qs {
		qs[i] = questions.Question{
			Prompt:       fmt.Sprintf("question %d", i),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
		}
	}
	return qs
}

func newTestStack(t *testing.T, cfg *config.Config) *testStack {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}

	st, err := store.OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	ledger := progression.NewLedger("u1", 0, 0, st)

	recCfg := session.DefaultConfig()
	recCfg.HeartbeatInterval = time.Hour
	recorder := session.NewRecorder("u1", st, ledger, recCfg)
	t.Cleanup(recorder.Close)

	arenaCfg := arena.DefaultConfig()
	arenaCfg.RevealDelayMin = 0
	arenaCfg.RevealDelayMax = 0
	rank := ranking.NewMemory()
	engine := arena.NewEngine("u1", arenaCfg, questions.NewStaticProvider(poolQuestions()), ledger, recorder, st, rank)
	t.Cleanup(engine.Close)

	tracker, trackerCh, err := gamification.NewTracker(context.Background(), "u1", st, ledger)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	broadcaster := NewBroadcaster(recorder, nil, 10*time.Millisecond, time.Hour)
	t.Cleanup(broadcaster.Close)

	BindEvents(ledger, recorder, engine, tracker, trackerCh, broadcaster)

	srv := NewServer(cfg, ledger, recorder, engine, tracker, st, rank, broadcaster, nil)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return &testStack{
		server:   srv,
		ts:       ts,
		recorder: recorder,
		engine:   engine,
		tracker:  tracker,
		ledger:   ledger,
		rank:     rank,
	}
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	cfg := config.Default()
	cfg.Server.AuthToken = "secret"
	stack := newTestStack(t, cfg)

	cases := []struct {
		name   string
		mutate func(*http.Request)
		want   int
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized},
		{"wrong token", func(r *http.Request) {
			r.Header.Set("X-QuizArena-Token", "nope")
		}, http.StatusUnauthorized},
		{"query token", func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", "secret")
			r.URL.RawQuery = q.Encode()
		}, http.StatusOK},
		{"header token", func(r *http.Request) {
			r.Header.Set("X-QuizArena-Token", "secret")
		}, http.StatusOK},
		{"bearer token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer secret")
		}, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, stack.ts.URL+"/api/stats", nil)
			if err != nil {
				t.Fatal(err)
			}
			tc.mutate(req)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestSessionWorkAndFinish(t *testing.T) {
	stack := newTestStack(t, nil)

	resp := postJSON(t, stack.ts.URL+"/api/sessions/practice/work", map[string]interface{}{
		"units": 3,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("work status = %d", resp.StatusCode)
	}
	var rec session.Record
	decodeBody(t, resp, &rec)
	if rec.UnitsOfWork != 3 || rec.Type != session.TypePractice {
		t.Errorf("record = %+v, want 3 units of practice", rec)
	}

	resp = postJSON(t, stack.ts.URL+"/api/sessions/practice/finish", map[string]interface{}{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finish status = %d", resp.StatusCode)
	}
	var finish struct {
		XPEarned int `json:"xpEarned"`
	}
	decodeBody(t, resp, &finish)
	// 3 units at 10 XP plus the floored minute at 5 XP.
	if finish.XPEarned != 35 {
		t.Errorf("XPEarned = %d, want 35", finish.XPEarned)
	}

	resp = postJSON(t, stack.ts.URL+"/api/sessions/netflix/work", map[string]interface{}{"units": 1})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", resp.StatusCode)
	}
}

func TestArenaFlowOverREST(t *testing.T) {
	stack := newTestStack(t, nil)
	base := stack.ts.URL

	resp := postJSON(t, base+"/api/arena/start", map[string]string{"subject": "algebra"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	var q QuestionPayload
	decodeBody(t, resp, &q)
	if q.Total != 5 || q.Index != 0 || len(q.Options) != 4 {
		t.Fatalf("first question = %+v", q)
	}

	// Starting again while the match runs must conflict.
	resp = postJSON(t, base+"/api/arena/start", map[string]string{"subject": "algebra"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", resp.StatusCode)
	}

	m := stack.engine.Current()
	var result *arena.Result
	for i := 0; i < 5; i++ {
		resp = postJSON(t, base+"/api/arena/answer", map[string]int{
			"optionIndex": m.Questions[i].CorrectIndex,
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("answer %d status = %d", i, resp.StatusCode)
		}

		resp = postJSON(t, base+"/api/arena/next", map[string]string{})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("next %d status = %d", i, resp.StatusCode)
		}
		var step struct {
			Question *QuestionPayload `json:"question"`
			Result   *arena.Result    `json:"result"`
		}
		decodeBody(t, resp, &step)
		if step.Result != nil {
			result = step.Result
			break
		}
		if step.Question == nil || step.Question.Index != i+1 {
			t.Fatalf("next %d returned %+v", i, step)
		}
	}

	if result == nil {
		t.Fatal("match never finished")
	}
	if result.UserScore != 500 || result.Outcome != arena.OutcomeWin {
		t.Errorf("result = %+v, want a 500-point win", result)
	}

	top, _ := stack.rank.Top(context.Background(), 1)
	if len(top) != 1 || top[0].Score != 500 {
		t.Errorf("leaderboard = %+v", top)
	}
}

func TestProfileAndLeaderboardMasking(t *testing.T) {
	cfg := config.Default()
	stack := newTestStack(t, cfg)
	// Swap in a masking filter after construction.
	filter := &session.PrivacyFilter{MaskUserIDs: true}
	stack.server.filter = filter

	if err := stack.rank.Submit(context.Background(), ranking.Entry{UserID: "u1", Score: 100}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	resp, err := http.Get(stack.ts.URL + "/api/leaderboard")
	if err != nil {
		t.Fatal(err)
	}
	var entries []ranking.Entry
	decodeBody(t, resp, &entries)
	if len(entries) != 1 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].UserID == "u1" || entries[0].UserID == "" {
		t.Errorf("UserID = %q, want masked", entries[0].UserID)
	}

	resp, err = http.Get(stack.ts.URL + "/api/profile")
	if err != nil {
		t.Fatal(err)
	}
	var profile struct {
		UserID string `json:"userId"`
	}
	decodeBody(t, resp, &profile)
	if profile.UserID == "u1" {
		t.Error("profile user ID not masked")
	}
}

func TestEquipEndpoint(t *testing.T) {
	stack := newTestStack(t, nil)

	resp := postJSON(t, stack.ts.URL+"/api/rewards/equip", map[string]string{
		"rewardId": "champion_title",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("locked equip status = %d, want 403", resp.StatusCode)
	}

	stack.tracker.ObserveLevel(2)
	resp = postJSON(t, stack.ts.URL+"/api/rewards/equip", map[string]string{
		"rewardId": "bronze_badge",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("equip status = %d", resp.StatusCode)
	}
	var equipped gamification.Equipped
	decodeBody(t, resp, &equipped)
	if equipped.Badge != "bronze_badge" {
		t.Errorf("Badge = %q, want bronze_badge", equipped.Badge)
	}
}

func TestVisibilityOverWebSocket(t *testing.T) {
	stack := newTestStack(t, nil)

	if _, err := stack.recorder.RecordWork(session.TypeChat, 1, nil); err != nil {
		t.Fatalf("RecordWork: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(stack.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(ClientMessage{Type: "visibility", Hidden: true}); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		records := stack.recorder.Snapshot()
		if len(records) == 1 && records[0].Status == session.StatusPaused {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session never paused after visibility message")
}

func TestChallengesEndpoint(t *testing.T) {
	stack := newTestStack(t, nil)

	resp, err := http.Get(stack.ts.URL + "/api/challenges")
	if err != nil {
		t.Fatal(err)
	}
	var challenges []gamification.ChallengeProgress
	decodeBody(t, resp, &challenges)
	if len(challenges) != 3 {
		t.Errorf("got %d active challenges, want 3", len(challenges))
	}
}
