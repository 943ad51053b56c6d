package questions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func serveQuestions(t *testing.T, qs []Question) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req fetchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(fetchResponse{Questions: qs})
	}))
}

func TestHTTPFetch_ReturnsValidQuestions(t *testing.T) {
	qs := []Question{
		{Prompt: "2+2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
		{Prompt: "capital of France?", Options: []string{"Paris", "Lyon"}, CorrectIndex: 0},
	}
	srv := serveQuestions(t, qs)
	defer srv.Close()

	got, err := NewHTTPProvider(srv.URL, 0).Fetch(context.Background(), "math", 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("questions = %d, want 2", len(got))
	}
	if got[0].Prompt != "2+2?" {
		t.Errorf("first prompt = %q", got[0].Prompt)
	}
}

func TestHTTPFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(fetchResponse{Questions: []Question{
			{Prompt: "q", Options: []string{"a", "b"}, CorrectIndex: 0},
		}})
	}))
	defer srv.Close()

	if _, err := NewHTTPProvider(srv.URL, 0).Fetch(context.Background(), "x", 1); err != nil {
		t.Fatalf("Fetch after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestHTTPFetch_EmptyBatchFails(t *testing.T) {
	srv := serveQuestions(t, nil)
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, 0).Fetch(context.Background(), "x", 5)
	if !errors.Is(err, ErrNoQuestions) {
		t.Errorf("error = %v, want ErrNoQuestions", err)
	}
}

func TestHTTPFetch_MalformedQuestionFails(t *testing.T) {
	srv := serveQuestions(t, []Question{
		{Prompt: "bad", Options: []string{"only"}, CorrectIndex: 0},
	})
	defer srv.Close()

	if _, err := NewHTTPProvider(srv.URL, 0).Fetch(context.Background(), "x", 1); err == nil {
		t.Error("Fetch with one-option question = nil error, want validation failure")
	}
}

func TestStaticProvider_CyclesPool(t *testing.T) {
	p := NewStaticProvider([]Question{
		{Prompt: "a", Options: []string{"1", "2"}, CorrectIndex: 0},
		{Prompt: "b", Options: []string{"1", "2"}, CorrectIndex: 1},
	})
	got, err := p.Fetch(context.Background(), "x", 5)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("questions = %d, want 5", len(got))
	}
	if got[4].Prompt != "a" {
		t.Errorf("cycled prompt = %q, want a", got[4].Prompt)
	}
}

func TestQuestionValidate(t *testing.T) {
	cases := []struct {
		name    string
		q       Question
		wantErr bool
	}{
		{"valid", Question{Options: []string{"a", "b"}, CorrectIndex: 1}, false},
		{"one option", Question{Options: []string{"a"}, CorrectIndex: 0}, true},
		{"index out of range", Question{Options: []string{"a", "b"}, CorrectIndex: 2}, true},
		{"negative index", Question{Options: []string{"a", "b"}, CorrectIndex: -1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.q.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
