package guardrail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

type stubClassifier struct {
	verdict Verdict
	err     error
	calls   int
}

func (s *stubClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	s.calls++
	return s.verdict, s.err
}

func TestTermList(t *testing.T) {
	list := NewTermList([]string{"  Gore ", "", "piracy"})

	verdict, err := list.Classify(context.Background(), "Full movie PIRACY links")
	if err != nil {
		t.Fatal(err)
	}
	if !verdict.Blocked || len(verdict.Reasons) != 1 || verdict.Reasons[0] != "blocked term: piracy" {
		t.Errorf("Expected piracy block, got %+v", verdict)
	}

	verdict, _ = list.Classify(context.Background(), "nfl week 12 highlights")
	if verdict.Blocked {
		t.Errorf("Expected clean text to pass, got %+v", verdict)
	}
}

func TestChain(t *testing.T) {
	failing := &stubClassifier{err: errors.New("unreachable")}
	blocking := &stubClassifier{verdict: Verdict{Blocked: true, Reasons: []string{"policy"}}}
	after := &stubClassifier{}

	verdict, err := NewChain(failing, blocking, after).Classify(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Expected classifier failure to fail open, got %v", err)
	}
	if !verdict.Blocked {
		t.Error("Expected block from second classifier")
	}
	if after.calls != 0 {
		t.Error("Expected chain to stop at first block")
	}

	verdict, err = NewChain(failing).Classify(context.Background(), "anything")
	if err != nil || verdict.Blocked {
		t.Errorf("Expected pass when only classifier fails, got %+v, %v", verdict, err)
	}
}

func TestHTTPClassifier(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Expected JSON body, got %v", err)
		}
		json.NewEncoder(w).Encode(Verdict{Blocked: body["text"] == "bad request", Reasons: []string{"violence"}})
	}))
	defer server.Close()

	classifier := NewHTTPClassifier(server.URL, server.Client(), "test-agent")
	classifier.backoff = 0

	verdict, err := classifier.Classify(context.Background(), "bad request")
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if !verdict.Blocked || verdict.Reasons[0] != "violence" {
		t.Errorf("Expected blocked verdict, got %+v", verdict)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", calls.Load())
	}
}

func TestHTTPClassifierClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer server.Close()

	classifier := NewHTTPClassifier(server.URL, server.Client(), "test-agent")
	if _, err := classifier.Classify(context.Background(), "text"); err == nil {
		t.Fatal("Expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected no retry on client error, got %d calls", calls.Load())
	}
}
