package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.UserID != "local" {
		t.Errorf("UserID = %q, want local", cfg.Server.UserID)
	}
	if cfg.Engine.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 30s", cfg.Engine.HeartbeatInterval)
	}
	if cfg.Engine.MinSessionDuration != 60*time.Second {
		t.Errorf("MinSessionDuration = %v, want 60s", cfg.Engine.MinSessionDuration)
	}
	if cfg.Engine.QuestionsPerMatch != 5 || cfg.Engine.PointsPerCorrect != 100 {
		t.Errorf("match constants = %d/%d, want 5/100",
			cfg.Engine.QuestionsPerMatch, cfg.Engine.PointsPerCorrect)
	}
	if cfg.Engine.OpponentAccuracy != 0.7 {
		t.Errorf("OpponentAccuracy = %v, want 0.7", cfg.Engine.OpponentAccuracy)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Redis.Addr = %q, want empty default", cfg.Redis.Addr)
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9000
  user_id: demo
engine:
  question_time: 20s
  opponent_accuracy: 0.5
store:
  backend: file
  file_dir: /tmp/state
redis:
  addr: localhost:6379
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 || cfg.Server.UserID != "demo" {
		t.Errorf("server = %d/%q, want 9000/demo", cfg.Server.Port, cfg.Server.UserID)
	}
	if cfg.Engine.QuestionTime != 20*time.Second {
		t.Errorf("QuestionTime = %v, want 20s", cfg.Engine.QuestionTime)
	}
	if cfg.Engine.OpponentAccuracy != 0.5 {
		t.Errorf("OpponentAccuracy = %v, want 0.5", cfg.Engine.OpponentAccuracy)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Engine.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %v, want default 30s", cfg.Engine.HeartbeatInterval)
	}
	if cfg.Store.Backend != "file" || cfg.Store.FileDir != "/tmp/state" {
		t.Errorf("store = %q/%q, want file//tmp/state", cfg.Store.Backend, cfg.Store.FileDir)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"unknown backend",
			"store:\n  backend: mongodb\n",
			"unknown store backend",
		},
		{
			"accuracy above one",
			"engine:\n  opponent_accuracy: 1.5\n",
			"opponent accuracy",
		},
		{
			"reveal range inverted",
			"engine:\n  reveal_delay_min: 5s\n  reveal_delay_max: 2s\n",
			"reveal delay",
		},
		{
			"malformed yaml",
			"server: [\n",
			"",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if tc.wantErr != "" && !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load of missing file succeeded, want error")
	}
}
