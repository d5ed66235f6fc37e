package pushover_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"speaksmart/internal/infra/pushover"
)

func TestClient_Notify(t *testing.T) {
	var message, title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		message = r.PostForm.Get("message")
		title = r.PostForm.Get("title")
		w.Write([]byte(`{"status":1}`))
	}))
	defer server.Close()

	client := pushover.NewClientWithURL("token", "user", "", server.URL)

	if err := client.Notify(context.Background(), "Sorry, I couldn't understand what you said."); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if message != "Sorry, I couldn't understand what you said." {
		t.Errorf("message: got %q", message)
	}
	if title != "SpeakSmart" {
		t.Errorf("title: got %q, want SpeakSmart", title)
	}
}

func TestClient_NotifyWithoutCredentialsIsNoop(t *testing.T) {
	client := pushover.NewClientWithURL("", "", "", "http://127.0.0.1:1")

	if err := client.Notify(context.Background(), "hello"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestClient_NotifyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusBadRequest)
	}))
	defer server.Close()

	client := pushover.NewClientWithURL("token", "user", "", server.URL)

	if err := client.Notify(context.Background(), "hello"); err == nil {
		t.Error("expected error for non-200 response")
	}
}
