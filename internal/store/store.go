// Package store abstracts the persistence collaborator behind the engine.
// Two implementations exist: DB (gorm over sqlite) and File (a JSON file
// cache with atomic writes). The engine treats both as best-effort: a
// failed write is logged and retried by the next heartbeat, never blocking
// a local state transition.
package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Metadata is a free-form attribute bag carried on sessions and completion
// records. The engine passes it through untouched.
type Metadata map[string]any

// Value implements driver.Valuer so Metadata persists as a JSON column.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = make(Metadata)
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", value)
	}
	return json.Unmarshal(data, m)
}

// SessionRecord is the persisted shape of an activity session. Records are
// keyed by (UserID, Type, StartTime); repeated upserts on the same key
// replace the previous row, which is how heartbeats converge to the latest
// state without creating duplicates.
type SessionRecord struct {
	UserID           string    `gorm:"primaryKey;size:64" json:"userId"`
	Type             string    `gorm:"primaryKey;size:16" json:"sessionType"`
	StartTime        time.Time `gorm:"primaryKey" json:"startTime"`
	LastUpdate       time.Time `json:"lastUpdate"`
	TimeSpentSeconds int       `json:"timeSpentSeconds"`
	UnitsOfWork      int       `json:"unitsOfWork"`
	Status           string    `gorm:"size:16" json:"status"`
	Metadata         Metadata  `gorm:"type:text" json:"metadata,omitempty"`
}

func (SessionRecord) TableName() string { return "study_sessions" }

// CompletionRecord is an append-only row written once per finalized unit of
// work (a match, a challenge, a session).
type CompletionRecord struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	UserID          string    `gorm:"size:64;index" json:"userId"`
	Kind            string    `gorm:"size:16" json:"kind"` // match | challenge | session
	XPEarned        int       `json:"xpEarned"`
	Score           int       `json:"score"`
	Accuracy        float64   `json:"accuracy"`
	TimeUsedSeconds int       `json:"timeUsedSeconds"`
	Metadata        Metadata  `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (CompletionRecord) TableName() string { return "completions" }

// Profile holds the server-side progression totals for a user. TotalXP is
// only ever increased, through AddUserXP, so concurrent awards from
// different features sum correctly.
type Profile struct {
	UserID    string    `gorm:"primaryKey;size:64" json:"userId"`
	TotalXP   int       `json:"totalXp"`
	Level     int       `json:"level"`
	Streak    int       `json:"streak"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Profile) TableName() string { return "profiles" }

// Store is the persistence collaborator interface.
type Store interface {
	// UpsertSession inserts or replaces the session row sharing the
	// record's (UserID, Type, StartTime) key. Last write wins.
	UpsertSession(ctx context.Context, rec *SessionRecord) error

	// AppendCompletion writes one completion row. Rows are never updated.
	AppendCompletion(ctx context.Context, rec *CompletionRecord) error

	// AddUserXP atomically adds amount to the user's persisted XP total,
	// creating the profile row if needed, and rederives the stored level.
	AddUserXP(ctx context.Context, userID string, amount int) error

	// GetProfile returns the user's profile, or a zero-valued profile if
	// none has been persisted yet.
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// LoadStats and SaveStats persist the gamification aggregate blob for
	// a user. LoadStats returns (nil, nil) when no blob exists.
	LoadStats(ctx context.Context, userID string) (json.RawMessage, error)
	SaveStats(ctx context.Context, userID string, data json.RawMessage) error

	Close() error
}
