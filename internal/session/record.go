package session

import (
	"encoding/json"
	"time"

	"github.com/quizarena/backend/internal/store"
)

// Type identifies the feature area that owns a session. At most one
// session per type is live at a time for a user.
type Type string

const (
	TypeChat     Type = "chat"
	TypePractice Type = "practice"
	TypeArena    Type = "arena"
)

// Valid reports whether t is one of the known session types.
func (t Type) Valid() bool {
	switch t {
	case TypeChat, TypePractice, TypeArena:
		return true
	}
	return false
}

// rewardsOnPause reports whether losing visibility grants XP for the work
// accumulated so far. Arena rewards flow through match finalize instead.
func (t Type) rewardsOnPause() bool {
	return t == TypeChat || t == TypePractice
}

// Status is the lifecycle state of a session. Completed is terminal: no
// further mutation is permitted once it is reached.
type Status int

const (
	StatusActive Status = iota
	StatusPaused
	StatusCompleted
)

var statusNames = map[Status]string{
	StatusActive:    "active",
	StatusPaused:    "paused",
	StatusCompleted: "completed",
}

var statusFromName = map[string]Status{
	"active":    StatusActive,
	"paused":    StatusPaused,
	"completed": StatusCompleted,
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := statusFromName[name]; ok {
		*s = v
	}
	return nil
}

// Record is the in-memory state of one activity session. It is keyed by
// (UserID, Type, StartTime); that key is also the persistence conflict key,
// so repeated flushes of the same record replace each other.
type Record struct {
	UserID           string         `json:"userId"`
	Type             Type           `json:"sessionType"`
	Status           Status         `json:"status"`
	StartTime        time.Time      `json:"startTime"`
	LastUpdate       time.Time      `json:"lastUpdate"`
	TimeSpentSeconds int            `json:"timeSpentSeconds"`
	UnitsOfWork      int            `json:"unitsOfWork"`
	Metadata         store.Metadata `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the record, duplicating the metadata map so
// the copy can be retained across broadcasts.
func (r *Record) Clone() *Record {
	c := *r
	if r.Metadata != nil {
		c.Metadata = make(store.Metadata, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// IsTerminal reports whether the record has reached its terminal state.
func (r *Record) IsTerminal() bool {
	return r.Status == StatusCompleted
}

// toStore converts the record to its persisted shape.
func (r *Record) toStore() *store.SessionRecord {
	return &store.SessionRecord{
		UserID:           r.UserID,
		Type:             string(r.Type),
		StartTime:        r.StartTime,
		LastUpdate:       r.LastUpdate,
		TimeSpentSeconds: r.TimeSpentSeconds,
		UnitsOfWork:      r.UnitsOfWork,
		Status:           r.Status.String(),
		Metadata:         r.Metadata,
	}
}
