package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quizarena/backend/internal/progression"
)

const stateFileName = "state.json"

// fileState is the on-disk layout of the File store. Sessions are keyed by
// their composite key string, so an upsert is a plain map assignment.
type fileState struct {
	Version     int                        `json:"version"`
	Sessions    map[string]*SessionRecord  `json:"sessions"`
	Completions []*CompletionRecord        `json:"completions"`
	Profiles    map[string]*Profile        `json:"profiles"`
	Stats       map[string]json.RawMessage `json:"stats"`
	LastUpdated time.Time                  `json:"lastUpdated"`
}

// File is the local-cache store implementation: a single JSON file written
// with the temp-file-then-rename pattern so a crash never leaves a torn
// state file behind.
type File struct {
	mu    sync.Mutex
	dir   string
	state *fileState
}

// OpenFile loads (or initializes) a file-backed store in dir.
func OpenFile(dir string) (*File, error) {
	f := &File{dir: dir}
	data, err := os.ReadFile(f.path())
	if err != nil {
		if os.IsNotExist(err) {
			f.state = newFileState()
			return f, nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	initFileState(&st)
	f.state = &st
	return f, nil
}

func (f *File) path() string { return filepath.Join(f.dir, stateFileName) }

func sessionKey(rec *SessionRecord) string {
	return fmt.Sprintf("%s|%s|%s", rec.UserID, rec.Type, rec.StartTime.UTC().Format(time.RFC3339))
}

func (f *File) UpsertSession(_ context.Context, rec *SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.state.Sessions[sessionKey(rec)] = &cp
	return f.saveLocked()
}

func (f *File) AppendCompletion(_ context.Context, rec *CompletionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	f.state.Completions = append(f.state.Completions, &cp)
	return f.saveLocked()
}

func (f *File) AddUserXP(_ context.Context, userID string, amount int) error {
	if amount <= 0 {
		return progression.ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.state.Profiles[userID]
	if !ok {
		p = &Profile{UserID: userID}
		f.state.Profiles[userID] = p
	}
	p.TotalXP += amount
	p.Level = progression.LevelFor(p.TotalXP).Level
	p.UpdatedAt = time.Now().UTC()
	return f.saveLocked()
}

func (f *File) GetProfile(_ context.Context, userID string) (*Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.state.Profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return &Profile{UserID: userID, Level: 1}, nil
}

func (f *File) LoadStats(_ context.Context, userID string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Stats[userID], nil
}

func (f *File) SaveStats(_ context.Context, userID string, data json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Stats[userID] = data
	return f.saveLocked()
}

func (f *File) Close() error { return nil }

// Sessions returns all persisted session records. Test helper and debug
// surface; the engine itself never reads sessions back.
func (f *File) Sessions() []*SessionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*SessionRecord, 0, len(f.state.Sessions))
	for _, rec := range f.state.Sessions {
		cp := *rec
		out = append(out, &cp)
	}
	return out
}

// Completions returns all persisted completion records.
func (f *File) Completions() []*CompletionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*CompletionRecord, 0, len(f.state.Completions))
	for _, rec := range f.state.Completions {
		cp := *rec
		out = append(out, &cp)
	}
	return out
}

// saveLocked writes the state file atomically. Callers hold f.mu.
func (f *File) saveLocked() error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	f.state.Version = 1
	f.state.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(f.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(f.dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path()); err != nil {
		return fmt.Errorf("renaming state file: %w", err)
	}
	committed = true
	return nil
}

func newFileState() *fileState {
	st := &fileState{}
	initFileState(st)
	return st
}

func initFileState(st *fileState) {
	if st.Sessions == nil {
		st.Sessions = make(map[string]*SessionRecord)
	}
	if st.Profiles == nil {
		st.Profiles = make(map[string]*Profile)
	}
	if st.Stats == nil {
		st.Stats = make(map[string]json.RawMessage)
	}
}
