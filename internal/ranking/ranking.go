// Package ranking is the leaderboard collaborator. Submissions are
// fire-and-forget from the engine's point of view: a failed update is
// logged by the caller and never blocks a finalize sequence.
package ranking

import (
	"context"
	"sort"
	"sync"
)

// Entry is one leaderboard submission or row.
type Entry struct {
	UserID          string  `json:"userId"`
	Score           int     `json:"score"`
	Accuracy        float64 `json:"accuracy"` // of the submitted match, not lifetime
	TimeUsedSeconds int     `json:"timeUsedSeconds"`
	Matches         int     `json:"matches"`
}

// Ranking accumulates scores per user and serves the top of the board.
type Ranking interface {
	// Submit adds a finalized match's score to the user's running total.
	Submit(ctx context.Context, e Entry) error
	// Top returns the highest-scoring users, best first.
	Top(ctx context.Context, n int) ([]Entry, error)
}

// Memory is the in-process fallback used when no Redis address is
// configured. Totals reset with the process.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry)}
}

func (m *Memory) Submit(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entries[e.UserID]
	if !ok {
		cur = &Entry{UserID: e.UserID}
		m.entries[e.UserID] = cur
	}
	cur.Score += e.Score
	cur.Accuracy = e.Accuracy
	cur.TimeUsedSeconds = e.TimeUsedSeconds
	cur.Matches++
	return nil
}

func (m *Memory) Top(_ context.Context, n int) ([]Entry, error) {
	m.mu.Lock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}
