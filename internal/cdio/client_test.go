package cdio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/changedetection-mcp/internal/validate"
)

func TestListWatches(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"uuid-1":{"url":"https://example.com"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret")
	result, err := c.ListWatches(context.Background())
	if err != nil {
		t.Fatalf("ListWatches: %v", err)
	}
	if gotPath != "/api/v1/watch" {
		t.Errorf("path = %q, want /api/v1/watch", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("x-api-key = %q, want secret", gotKey)
	}
	m, ok := result.(map[string]any)
	if !ok || len(m) != 1 {
		t.Errorf("result = %#v, want one-entry map", result)
	}
}

func TestNoAPIKeyHeaderWhenUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["X-Api-Key"]; ok {
			t.Error("x-api-key header sent despite empty key")
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if _, err := c.SystemInfo(context.Background()); err != nil {
		t.Fatalf("SystemInfo: %v", err)
	}
}

func TestEmptyBodyIsEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	result, err := c.ListWatches(context.Background())
	if err != nil {
		t.Fatalf("ListWatches: %v", err)
	}
	m, ok := result.(map[string]any)
	if !ok || len(m) != 0 {
		t.Errorf("result = %#v, want empty map", result)
	}
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "watch not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.GetWatch(context.Background(), "550e8400-e29b-41d4-a716-446655440000")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusNotFound {
		t.Errorf("Code = %d, want 404", se.Code)
	}
	if !strings.Contains(se.Body, "watch not found") {
		t.Errorf("Body = %q, want upstream body retained", se.Body)
	}
	if se.Auth() {
		t.Error("Auth() = true for 404")
	}
}

func TestStatusErrorAuth(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		c := New(srv.URL, "bad-key")
		_, err := c.SystemInfo(context.Background())
		srv.Close()

		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("status %d: err = %v, want *StatusError", code, err)
		}
		if !se.Auth() {
			t.Errorf("status %d: Auth() = false, want true", code)
		}
	}
}

func TestInvalidWatchIDMakesNoNetworkCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	for name, call := range map[string]func() (any, error){
		"GetWatch":     func() (any, error) { return c.GetWatch(context.Background(), "not-a-uuid") },
		"DeleteWatch":  func() (any, error) { return c.DeleteWatch(context.Background(), "not-a-uuid") },
		"TriggerCheck": func() (any, error) { return c.TriggerCheck(context.Background(), "not-a-uuid") },
		"GetHistory":   func() (any, error) { return c.GetHistory(context.Background(), "not-a-uuid") },
	} {
		_, err := call()
		var verr *validate.Error
		if !errors.As(err, &verr) {
			t.Errorf("%s: err = %v, want *validate.Error", name, err)
		}
	}
	if called {
		t.Error("upstream was called despite invalid watch ID")
	}
}

func TestCreateWatch(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte(`{"uuid":"new"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	longTag := strings.Repeat("t", 150)
	_, err := c.CreateWatch(context.Background(), "https://example.com/page", longTag)
	if err != nil {
		t.Fatalf("CreateWatch: %v", err)
	}
	if payload["url"] != "https://example.com/page" {
		t.Errorf("payload url = %q", payload["url"])
	}
	if len(payload["tag"]) != 100 {
		t.Errorf("tag length = %d, want truncated to 100", len(payload["tag"]))
	}
}

func TestCreateWatchRejectsBadURL(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.CreateWatch(context.Background(), "ftp://example.com", "")
	var verr *validate.Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *validate.Error", err)
	}
	if called {
		t.Error("upstream was called despite invalid URL")
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(srv.URL, "", WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	_, err := c.ListWatches(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestConnectionRefused(t *testing.T) {
	// Grab a port that nothing listens on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := New(addr, "")
	_, err := c.ListWatches(context.Background())
	if !errors.Is(err, ErrConnectionRefused) {
		t.Errorf("err = %v, want ErrConnectionRefused", err)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrTimeout, "timeout"},
		{ErrConnectionRefused, "connection_refused"},
		{&StatusError{Code: 500}, "http_status"},
		{errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.want {
			t.Errorf("errorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
