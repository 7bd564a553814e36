package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestNotifyShared(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", WithAPIURL(server.URL))

	if err := client.NotifyShared("alice@example.com", "Groceries"); err != nil {
		t.Fatalf("notify shared: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", received.To, "alice@example.com")
	}
	if received.From != "noreply@example.com" {
		t.Errorf("From = %q, want %q", received.From, "noreply@example.com")
	}
	if !strings.Contains(received.Subject, "Groceries") {
		t.Errorf("Subject = %q, want it to mention the list name", received.Subject)
	}
}

func TestNotifySharedNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com")

	if err := client.NotifyShared("alice@example.com", "Groceries"); err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}

func TestNotifySharedClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", WithAPIURL(server.URL))

	if err := client.NotifyShared("alice@example.com", "Groceries"); err == nil {
		t.Fatal("expected error for API failure")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call for a 4xx response, got %d", got)
	}
}

func TestNotifySharedRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", WithAPIURL(server.URL))

	if err := client.NotifyShared("alice@example.com", "Groceries"); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestConfigured(t *testing.T) {
	if !NewClient("token", "from@test.com").Configured() {
		t.Error("expected Configured() = true")
	}
	if NewClient("", "from@test.com").Configured() {
		t.Error("expected Configured() = false")
	}
}
