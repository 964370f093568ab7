package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fortuna/internal/sentiment"
)

func TestClientClassifyMapsJudgments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Inputs) != 2 || req.Inputs[0] != "a fine day" {
			t.Fatalf("unexpected inputs %v", req.Inputs)
		}
		payload := [][]map[string]any{
			{
				{"label": "POSITIVE", "score": 0.98},
				{"label": "NEGATIVE", "score": 0.02},
			},
			{
				{"label": "NEGATIVE", "score": 0.87},
				{"label": "POSITIVE", "score": 0.13},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	judgments, err := client.Classify(context.Background(), []string{"a fine day", "a dark night"})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if len(judgments) != 2 {
		t.Fatalf("expected 2 judgments, got %d", len(judgments))
	}
	if judgments[0].Label != sentiment.LabelPositive || judgments[0].Confidence != 0.98 {
		t.Fatalf("unexpected first judgment %+v", judgments[0])
	}
	if judgments[1].Label != sentiment.LabelNegative || judgments[1].Confidence != 0.87 {
		t.Fatalf("unexpected second judgment %+v", judgments[1])
	}
}

func TestClientClassifyPicksTopCandidate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Candidates arrive unsorted; the highest score must win.
		payload := [][]map[string]any{
			{
				{"label": "negative", "score": 0.21},
				{"label": "positive", "score": 0.79},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	judgments, err := client.Classify(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if judgments[0].Label != sentiment.LabelPositive || judgments[0].Confidence != 0.79 {
		t.Fatalf("unexpected judgment %+v", judgments[0])
	}
}

func TestClientClassifySingleInputFlatResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := []map[string]any{
			{"label": "NEGATIVE", "score": 0.93},
			{"label": "POSITIVE", "score": 0.07},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	judgments, err := client.Classify(context.Background(), []string{"all is lost"})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if len(judgments) != 1 || judgments[0].Label != sentiment.LabelNegative {
		t.Fatalf("unexpected judgments %+v", judgments)
	}
}

func TestClientClassifyCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := [][]map[string]any{
			{{"label": "POSITIVE", "score": 0.9}},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.Classify(context.Background(), []string{"one", "two"})
	if err == nil {
		t.Fatal("expected count mismatch error")
	}
	if !strings.Contains(err.Error(), "1 results for 2 inputs") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestClientClassifyUnknownLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := [][]map[string]any{
			{{"label": "NEUTRAL", "score": 0.9}},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.Classify(context.Background(), []string{"meh"})
	if err == nil {
		t.Fatal("expected unknown label error")
	}
	if !strings.Contains(err.Error(), "unknown label") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestClientClassifyEmptyInput(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	judgments, err := client.Classify(context.Background(), nil)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if len(judgments) != 0 {
		t.Fatalf("expected no judgments, got %d", len(judgments))
	}
}

func TestClientRetriesOnHTTP503(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "model loading"})
			return
		}
		payload := [][]map[string]any{
			{{"label": "POSITIVE", "score": 0.95}},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	judgments, err := client.Classify(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if judgments[0].Label != sentiment.LabelPositive {
		t.Fatalf("unexpected judgment %+v", judgments[0])
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientDoesNotRetryOnHTTP400(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad request"})
	}))
	defer server.Close()

	client := NewClient(
		Config{BaseURL: server.URL},
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	_, err := client.Classify(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatal("expected classify to fail")
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}

func TestClientGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(
		Config{BaseURL: server.URL},
		WithSleeper(func(time.Duration) {}),
		WithRetryBackoff(0, 0),
		WithRetryMaxAttempts(3),
	)
	_, err := client.Classify(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatal("expected classify to fail")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if !strings.Contains(err.Error(), "http 500") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}
