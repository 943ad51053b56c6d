package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Questions QuestionsConfig `yaml:"questions"`
	Privacy   PrivacyConfig   `yaml:"privacy"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	UserID         string   `yaml:"user_id"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// EngineConfig carries the timing and reward constants shared by the
// session recorder and the arena engine.
type EngineConfig struct {
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	MinSessionDuration time.Duration `yaml:"min_session_duration"`
	XPPerMinute        int           `yaml:"xp_per_minute"`
	XPPerUnit          int           `yaml:"xp_per_unit"`

	QuestionsPerMatch int           `yaml:"questions_per_match"`
	QuestionTime      time.Duration `yaml:"question_time"`
	RevealDelayMin    time.Duration `yaml:"reveal_delay_min"`
	RevealDelayMax    time.Duration `yaml:"reveal_delay_max"`
	PointsPerCorrect  int           `yaml:"points_per_correct"`
	OpponentAccuracy  float64       `yaml:"opponent_accuracy"`

	SnapshotInterval  time.Duration `yaml:"snapshot_interval"`
	BroadcastThrottle time.Duration `yaml:"broadcast_throttle"`
}

// StoreConfig selects the persistence backend: "sqlite" for the embedded
// database, "file" for the JSON state cache.
type StoreConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
	FileDir    string `yaml:"file_dir"`
}

// RedisConfig is optional; an empty Addr selects the in-memory leaderboard.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QuestionsConfig struct {
	ServiceURL string        `yaml:"service_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type PrivacyConfig struct {
	MaskUserIDs        bool     `yaml:"mask_user_ids"`
	HiddenMetadataKeys []string `yaml:"hidden_metadata_keys"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the production constants. Load unmarshals the file over
// these, so absent keys keep their defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:   8080,
			Host:   "0.0.0.0",
			UserID: "local",
		},
		Engine: EngineConfig{
			HeartbeatInterval:  30 * time.Second,
			MinSessionDuration: 60 * time.Second,
			XPPerMinute:        5,
			XPPerUnit:          10,
			QuestionsPerMatch:  5,
			QuestionTime:       30 * time.Second,
			RevealDelayMin:     2 * time.Second,
			RevealDelayMax:     5 * time.Second,
			PointsPerCorrect:   100,
			OpponentAccuracy:   0.7,
			SnapshotInterval:   5 * time.Second,
			BroadcastThrottle:  100 * time.Millisecond,
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			SQLitePath: "quizarena.db",
			FileDir:    ".",
		},
		Questions: QuestionsConfig{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "sqlite", "file":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Engine.OpponentAccuracy < 0 || c.Engine.OpponentAccuracy > 1 {
		return fmt.Errorf("opponent accuracy %v outside [0,1]", c.Engine.OpponentAccuracy)
	}
	if c.Engine.RevealDelayMax < c.Engine.RevealDelayMin {
		return fmt.Errorf("reveal delay max %v below min %v",
			c.Engine.RevealDelayMax, c.Engine.RevealDelayMin)
	}
	return nil
}
