package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if client := NewClient(Config{APIKey: "   "}); client != nil {
		t.Fatal("blank api key must yield a nil client")
	}
	if client := NewClient(Config{APIKey: "sk-test"}); client == nil {
		t.Fatal("expected a client for a configured api key")
	}
}

func TestCheckModel(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"test/model","object":"model","created":1700000000,"owned_by":"test"}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL})
	if client == nil {
		t.Fatal("NewClient returned nil")
	}

	if err := CheckModel(context.Background(), client, "test/model"); err != nil {
		t.Fatalf("CheckModel: %v", err)
	}
	if !strings.HasSuffix(gotPath, "/models/test/model") {
		t.Fatalf("request path = %q, want /models/test/model suffix", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("authorization = %q", gotAuth)
	}
}

func TestCheckModelUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"model not found"}}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL})
	err := CheckModel(context.Background(), client, "missing/model")
	if err == nil || !strings.Contains(err.Error(), "unavailable") {
		t.Fatalf("CheckModel error = %v, want unavailable", err)
	}
}

func TestCheckModelValidation(t *testing.T) {
	t.Parallel()

	if err := CheckModel(context.Background(), nil, "test/model"); err == nil {
		t.Fatal("nil client must be rejected")
	}

	client := NewClient(Config{APIKey: "sk-test"})
	if err := CheckModel(context.Background(), client, "  "); err == nil {
		t.Fatal("blank model must be rejected")
	}
}
