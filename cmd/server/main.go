package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/quizarena/backend/internal/arena"
	"github.com/quizarena/backend/internal/config"
	"github.com/quizarena/backend/internal/frontend"
	"github.com/quizarena/backend/internal/gamification"
	"github.com/quizarena/backend/internal/mock"
	"github.com/quizarena/backend/internal/progression"
	"github.com/quizarena/backend/internal/questions"
	"github.com/quizarena/backend/internal/ranking"
	"github.com/quizarena/backend/internal/session"
	"github.com/quizarena/backend/internal/store"
	"github.com/quizarena/backend/internal/ws"
)

func main() {
	mockMode := flag.Bool("mock", false, "Drive the engines with simulated player activity")
	devMode := flag.Bool("dev", false, "Development mode (serve frontend from filesystem)")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	userID := cfg.Server.UserID
	profile, err := st.GetProfile(ctx, userID)
	if err != nil {
		log.Fatalf("Failed to load profile: %v", err)
	}
	ledger := progression.NewLedger(userID, profile.TotalXP, profile.Streak, st)

	recorder := session.NewRecorder(userID, st, ledger, session.Config{
		HeartbeatInterval: cfg.Engine.HeartbeatInterval,
		MinDuration:       cfg.Engine.MinSessionDuration,
		XPPerMinute:       cfg.Engine.XPPerMinute,
		XPPerUnit:         cfg.Engine.XPPerUnit,
	})
	defer recorder.Close()

	rank := openRanking(ctx, cfg)

	engine := arena.NewEngine(userID, arena.Config{
		QuestionsPerMatch: cfg.Engine.QuestionsPerMatch,
		QuestionTime:      cfg.Engine.QuestionTime,
		RevealDelayMin:    cfg.Engine.RevealDelayMin,
		RevealDelayMax:    cfg.Engine.RevealDelayMax,
		PointsPerCorrect:  cfg.Engine.PointsPerCorrect,
		OpponentAccuracy:  cfg.Engine.OpponentAccuracy,
		XPPerMinute:       cfg.Engine.XPPerMinute,
		XPPerQuestion:     cfg.Engine.XPPerUnit,
	}, openProvider(cfg), ledger, recorder, st, rank)
	defer engine.Close()

	tracker, trackerCh, err := gamification.NewTracker(ctx, userID, st, ledger)
	if err != nil {
		log.Fatalf("Failed to load gamification state: %v", err)
	}
	go tracker.Run(ctx)

	var filter *session.PrivacyFilter
	if cfg.Privacy.MaskUserIDs || len(cfg.Privacy.HiddenMetadataKeys) > 0 {
		filter = &session.PrivacyFilter{
			MaskUserIDs: cfg.Privacy.MaskUserIDs,
			HiddenKeys:  cfg.Privacy.HiddenMetadataKeys,
		}
	}

	broadcaster := ws.NewBroadcaster(recorder, filter, cfg.Engine.BroadcastThrottle, cfg.Engine.SnapshotInterval)
	defer broadcaster.Close()

	ws.BindEvents(ledger, recorder, engine, tracker, trackerCh, broadcaster)

	server := ws.NewServer(cfg, ledger, recorder, engine, tracker, st, rank, broadcaster, filter)
	server.SetFrontend(frontendDir(*devMode), *devMode, embeddedHandler(*devMode))

	if *mockMode {
		log.Println("Starting in mock mode")
		gen := mock.NewGenerator(recorder, engine, rank)
		gen.Start(ctx)
	}

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		recorder.Close()
		broadcaster.Close()
		engine.Close()
		st.Close()
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.Backend == "file" {
		return store.OpenFile(cfg.Store.FileDir)
	}
	return store.OpenDB(cfg.Store.SQLitePath)
}

// openRanking prefers Redis when configured and falls back to the
// in-process board on connection failure.
func openRanking(ctx context.Context, cfg *config.Config) ranking.Ranking {
	if cfg.Redis.Addr == "" {
		return ranking.NewMemory()
	}
	r, err := ranking.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Redis unavailable, using in-memory leaderboard: %v", err)
		return ranking.NewMemory()
	}
	return r
}

func openProvider(cfg *config.Config) questions.Provider {
	if cfg.Questions.ServiceURL != "" {
		return questions.NewHTTPProvider(cfg.Questions.ServiceURL, cfg.Questions.Timeout)
	}
	log.Println("No question service configured, using the built-in set")
	return questions.NewStaticProvider(questions.BuiltinSet())
}

func frontendDir(dev bool) string {
	if !dev {
		return ""
	}
	exe, _ := os.Executable()
	dir := filepath.Join(filepath.Dir(exe), "..", "..", "frontend")
	// If running with go run, the exe path is in a temp dir, use CWD instead
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		cwd, _ := os.Getwd()
		dir = filepath.Join(cwd, "..", "frontend")
	}
	return dir
}

// embeddedHandler returns the compiled-in frontend when built with
// -tags embed, otherwise a filesystem fallback if one exists.
func embeddedHandler(dev bool) http.Handler {
	if dev {
		return nil
	}
	if h := frontend.Handler(); h != nil {
		return h
	}
	cwd, _ := os.Getwd()
	fallback := filepath.Join(cwd, "..", "frontend")
	if _, err := os.Stat(fallback); err == nil {
		log.Printf("No embedded frontend, falling back to: %s", fallback)
		return http.FileServer(http.Dir(fallback))
	}
	return nil
}
