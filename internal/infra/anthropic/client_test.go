package anthropic_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"speaksmart/internal/domain"
	"speaksmart/internal/infra/anthropic"
)

func TestClient_Reply(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Header.Get("x-api-key") != "test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)

		response := map[string]any{
			"content":     []map[string]string{{"type": "text", "text": "Hello!"}},
			"stop_reason": "end_turn",
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := anthropic.NewClientWithURL("test-key", "claude-test", 5*time.Second, server.URL)

	topK := float32(64)
	history := []domain.Message{
		{Role: domain.RoleUser, Text: "Hi"},
		{Role: domain.RoleModel, Text: "Hey"},
	}
	reply, err := client.Reply(context.Background(), history, "How are you?", domain.GenerationConfig{TopK: &topK})
	if err != nil {
		t.Fatalf("Reply error: %v", err)
	}

	if reply != "Hello!" {
		t.Errorf("reply: got %q, want Hello!", reply)
	}

	msgs, _ := got["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages: got %d, want 3", len(msgs))
	}
	if role := msgs[1].(map[string]any)["role"]; role != "assistant" {
		t.Errorf("history role: got %v, want assistant", role)
	}
	if got["top_k"] != float64(64) {
		t.Errorf("top_k: got %v, want 64", got["top_k"])
	}
	if got["max_tokens"] != float64(1024) {
		t.Errorf("max_tokens: got %v, want 1024", got["max_tokens"])
	}
}

func TestClient_RefusalIsEarlyStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"content":     []map[string]string{{"type": "text", "text": "Hello, I..."}},
			"stop_reason": "refusal",
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := anthropic.NewClientWithURL("test-key", "claude-test", 5*time.Second, server.URL)

	_, err := client.Reply(context.Background(), nil, "Hi", domain.GenerationConfig{})

	var early *domain.EarlyStopError
	if !errors.As(err, &early) {
		t.Fatalf("expected early stop, got %v", err)
	}
	if early.Partial != "Hello, I..." {
		t.Errorf("partial: got %q", early.Partial)
	}
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"message":"bad model"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := anthropic.NewClientWithURL("test-key", "claude-test", 5*time.Second, server.URL)

	_, err := client.Reply(context.Background(), nil, "Hi", domain.GenerationConfig{})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestClient_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := anthropic.NewClientWithURL("test-key", "claude-test", 5*time.Second, server.URL)

	_, err := client.Reply(context.Background(), nil, "Hi", domain.GenerationConfig{})
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected service unavailable, got %v", err)
	}
}
