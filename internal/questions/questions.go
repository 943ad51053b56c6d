// Package questions supplies quiz questions to the engine. The generation
// service is an opaque oracle: the engine only needs a prompt, a fixed set
// of options, and the index of the correct one.
package questions

import (
	"context"
	"errors"
	"fmt"
)

// Question is a single multiple-choice question.
type Question struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation,omitempty"`
}

// ErrNoQuestions is returned when the provider cannot supply any questions
// for the requested subject.
var ErrNoQuestions = errors.New("no questions available")

// Validate checks that the question is well formed: at least two options
// and a correct index inside the option range.
func (q *Question) Validate() error {
	if len(q.Options) < 2 {
		return fmt.Errorf("question %q has %d options, need at least 2", q.Prompt, len(q.Options))
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("question %q correct index %d out of range [0,%d)", q.Prompt, q.CorrectIndex, len(q.Options))
	}
	return nil
}

// Provider fetches a batch of questions for a subject.
type Provider interface {
	Fetch(ctx context.Context, subject string, count int) ([]Question, error)
}
