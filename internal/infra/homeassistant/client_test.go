package homeassistant_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"speaksmart/internal/infra/homeassistant"
)

func TestClient_Notify(t *testing.T) {
	var gotPath, gotAuth string
	var got map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	client := homeassistant.NewClient(server.URL+"/", "ha-token", "notify.mobile_app_phone", "")

	if err := client.Notify(context.Background(), "Sorry, I couldn't understand what you said."); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	if gotPath != "/api/services/notify/mobile_app_phone" {
		t.Errorf("path: got %s, want /api/services/notify/mobile_app_phone", gotPath)
	}
	if gotAuth != "Bearer ha-token" {
		t.Errorf("authorization: got %q", gotAuth)
	}
	if got["message"] != "Sorry, I couldn't understand what you said." {
		t.Errorf("message: got %q", got["message"])
	}
	if got["title"] != "SpeakSmart" {
		t.Errorf("title: got %q, want SpeakSmart", got["title"])
	}
}

func TestClient_NotifyDefaultService(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer server.Close()

	client := homeassistant.NewClient(server.URL, "ha-token", "", "Chat")

	if err := client.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if gotPath != "/api/services/persistent_notification/create" {
		t.Errorf("path: got %s", gotPath)
	}
}

func TestClient_NotifyUnauthorizedIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := homeassistant.NewClient(server.URL, "bad-token", "", "")

	if err := client.Notify(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for unauthorized response")
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestClient_NotifyInvalidService(t *testing.T) {
	client := homeassistant.NewClient("http://127.0.0.1:1", "token", "notify", "")

	if err := client.Notify(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for service without a name")
	}
}
