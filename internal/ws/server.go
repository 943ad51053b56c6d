package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/quizarena/backend/internal/arena"
	"github.com/quizarena/backend/internal/config"
	"github.com/quizarena/backend/internal/gamification"
	"github.com/quizarena/backend/internal/progression"
	"github.com/quizarena/backend/internal/ranking"
	"github.com/quizarena/backend/internal/session"
	"github.com/quizarena/backend/internal/store"
)

type Server struct {
	config          *config.Config
	ledger          *progression.Ledger
	recorder        *session.Recorder
	engine          *arena.Engine
	tracker         *gamification.Tracker
	store           store.Store
	ranking         ranking.Ranking
	broadcaster     *Broadcaster
	filter          *session.PrivacyFilter
	frontendDir     string
	dev             bool
	embeddedHandler http.Handler
	allowedOrigins  map[string]bool
	allowedHosts    map[string]bool
	authToken       string
}

func NewServer(cfg *config.Config, ledger *progression.Ledger, recorder *session.Recorder, engine *arena.Engine, tracker *gamification.Tracker, st store.Store, rank ranking.Ranking, broadcaster *Broadcaster, filter *session.PrivacyFilter) *Server {
	s := &Server{
		config:         cfg,
		ledger:         ledger,
		recorder:       recorder,
		engine:         engine,
		tracker:        tracker,
		store:          st,
		ranking:        rank,
		broadcaster:    broadcaster,
		filter:         filter,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      cfg.Server.AuthToken,
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// SetFrontend configures static frontend serving. Must be called before
// SetupRoutes.
func (s *Server) SetFrontend(dir string, dev bool, embedded http.Handler) {
	s.frontendDir = dir
	s.dev = dev
	s.embeddedHandler = embedded
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/profile", s.handleProfile)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionRoutes)
	mux.HandleFunc("/api/arena/start", s.handleArenaStart)
	mux.HandleFunc("/api/arena/answer", s.handleArenaAnswer)
	mux.HandleFunc("/api/arena/next", s.handleArenaNext)
	mux.HandleFunc("/api/arena/finish", s.handleArenaFinish)
	mux.HandleFunc("/api/challenges", s.handleChallenges)
	mux.HandleFunc("/api/achievements", s.handleAchievements)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("/api/rewards/equip", s.handleEquip)
	mux.HandleFunc("/api/config", s.handleConfig)

	if s.dev {
		log.Printf("Serving frontend from filesystem: %s", s.frontendDir)
		mux.Handle("/", http.FileServer(http.Dir(s.frontendDir)))
	} else if s.embeddedHandler != nil {
		log.Println("Serving embedded frontend")
		mux.Handle("/", s.embeddedHandler)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	log.Printf("WebSocket client connected: %s", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.handleClientMessage(data)
		}
	}()
}

// handleClientMessage reacts to inbound control messages. Visibility
// changes drive the recorder's pause/resume transitions.
func (s *Server) handleClientMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("bad client message: %v", err)
		return
	}
	switch msg.Type {
	case "visibility":
		if msg.Hidden {
			s.recorder.VisibilityLost()
		} else {
			s.recorder.VisibilityRestored()
		}
	default:
		log.Printf("unknown client message type %q", msg.Type)
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	type profilePayload struct {
		progression.State
		Equipped gamification.Equipped `json:"equipped"`
	}
	stats := s.tracker.Stats()
	payload := profilePayload{
		State:    s.ledger.Snapshot(),
		Equipped: stats.Equipped,
	}
	if s.filter != nil {
		payload.State.UserID = s.filter.MaskUserID(payload.State.UserID)
	}
	writeJSON(w, payload)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	records := s.recorder.Snapshot()
	if s.filter != nil {
		records = s.filter.FilterSlice(records)
	}
	writeJSON(w, records)
}

// handleSessionRoutes dispatches /api/sessions/{type}/work and
// /api/sessions/{type}/finish.
func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	typ := session.Type(parts[0])
	if !typ.Valid() {
		http.Error(w, "unknown session type", http.StatusBadRequest)
		return
	}

	switch parts[1] {
	case "work":
		var req struct {
			Units    int            `json:"units"`
			Metadata store.Metadata `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		rec, err := s.recorder.RecordWork(typ, req.Units, req.Metadata)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if s.filter != nil {
			rec = s.filter.Apply(rec)
		}
		writeJSON(w, rec)

	case "finish":
		xp, err := s.recorder.Finish(r.Context(), typ)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]int{"xpEarned": xp})

	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleArenaStart(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Subject string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	m, err := s.engine.Start(r.Context(), req.Subject)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, arena.ErrMatchInProgress) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, questionPayload(m, 0))
}

func (s *Server) handleArenaAnswer(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		OptionIndex int `json:"optionIndex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := s.engine.Answer(req.OptionIndex); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, arena.ErrNoMatch) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	// The opponent reveal follows over the WebSocket after its delay.
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleArenaNext(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := s.engine.Next(r.Context())
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, arena.ErrNoMatch) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	if res != nil {
		writeJSON(w, map[string]interface{}{"result": res})
		return
	}
	m := s.engine.Current()
	writeJSON(w, map[string]interface{}{"question": questionPayload(m, m.Current)})
}

func (s *Server) handleArenaFinish(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := s.engine.Finish(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, arena.ErrNoMatch) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleChallenges(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, s.tracker.Challenges())
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	type achievementPayload struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Tier        string `json:"tier"`
		Category    string `json:"category"`
		UnlockedAt  string `json:"unlockedAt,omitempty"`
	}
	registry, unlocked := s.tracker.Achievements()
	out := make([]achievementPayload, 0, len(registry))
	for _, a := range registry {
		p := achievementPayload{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Tier:        string(a.Tier),
			Category:    string(a.Category),
		}
		if ts, ok := unlocked[a.ID]; ok {
			p.UnlockedAt = ts.Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, p)
	}
	writeJSON(w, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, s.tracker.Stats())
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.ranking == nil {
		http.Error(w, "leaderboard not available", http.StatusServiceUnavailable)
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil || limit < 1 || limit > 100 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	entries, err := s.ranking.Top(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if s.filter != nil {
		for i := range entries {
			entries[i].UserID = s.filter.MaskUserID(entries[i].UserID)
		}
	}
	writeJSON(w, entries)
}

func (s *Server) handleEquip(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		RewardID string `json:"rewardId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	equipped, err := s.tracker.Equip(req.RewardID)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, gamification.ErrNotUnlocked) {
			status = http.StatusForbidden
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, equipped)
}

// handleConfig exposes the timing constants a client needs to mirror the
// engine's behavior (heartbeat cadence, question budget).
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, map[string]interface{}{
		"heartbeatIntervalMs": s.config.Engine.HeartbeatInterval.Milliseconds(),
		"questionTimeMs":      s.config.Engine.QuestionTime.Milliseconds(),
		"questionsPerMatch":   s.config.Engine.QuestionsPerMatch,
		"pointsPerCorrect":    s.config.Engine.PointsPerCorrect,
	})
}

func questionPayload(m *arena.Match, idx int) QuestionPayload {
	q := m.Questions[idx]
	return QuestionPayload{
		MatchID: m.ID,
		Index:   idx,
		Total:   len(m.Questions),
		Prompt:  q.Prompt,
		Options: q.Options,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-QuizArena-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
