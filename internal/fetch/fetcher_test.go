package fetch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetcher_GetReturnsBodyAndContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer server.Close()

	f := New(Config{MaxRetries: 0, RetryBase: time.Millisecond})
	body, err := f.Get(t.Context(), server.URL, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !strings.Contains(string(body.Bytes), "hello") {
		t.Errorf("body = %q, want to contain %q", body.Bytes, "hello")
	}
	if !strings.HasPrefix(body.ContentType, "text/html") {
		t.Errorf("ContentType = %q, want text/html prefix", body.ContentType)
	}
}

func TestFetcher_SetsUserAgentAndHeaders(t *testing.T) {
	var ua, extra string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		extra = r.Header.Get("X-Probe")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := New(Config{UserAgent: "harvester/1.0", RetryBase: time.Millisecond})
	_, err := f.Get(t.Context(), server.URL, map[string]string{"X-Probe": "yes"})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ua != "harvester/1.0" {
		t.Errorf("User-Agent = %q, want %q", ua, "harvester/1.0")
	}
	if extra != "yes" {
		t.Errorf("X-Probe = %q, want %q", extra, "yes")
	}
}

func TestFetcher_RetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	f := New(Config{MaxRetries: 3, RetryBase: time.Millisecond})
	body, err := f.Get(t.Context(), server.URL, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(body.Bytes) != "recovered" {
		t.Errorf("body = %q, want %q", body.Bytes, "recovered")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}

func TestFetcher_DoesNotRetry4xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := New(Config{MaxRetries: 3, RetryBase: time.Millisecond})
	_, err := f.Get(t.Context(), server.URL, nil)

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("Get() error = %v, want *fetch.Error", err)
	}
	if fe.Kind != KindHTTP4xx || fe.Status != http.StatusNotFound {
		t.Errorf("error = %v, want http_4xx status 404", fe)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1 (no retry on 4xx)", got)
	}
}

func TestFetcher_ExhaustedRetriesReportTooMany(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "always failing", http.StatusBadGateway)
	}))
	defer server.Close()

	f := New(Config{MaxRetries: 2, RetryBase: time.Millisecond})
	_, err := f.Get(t.Context(), server.URL, nil)

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("Get() error = %v, want *fetch.Error", err)
	}
	if fe.Kind != KindTooManyRetries {
		t.Errorf("Kind = %s, want too_many_retries", fe.Kind)
	}
	var inner *Error
	if !errors.As(fe.Err, &inner) || inner.Kind != KindHTTP5xx {
		t.Errorf("wrapped error = %v, want http_5xx", fe.Err)
	}
}

func TestRobotsGate_DisallowedPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	g := NewRobotsGate("harvester/1.0", time.Second)
	if !g.Allows(t.Context(), server.URL+"/public/page") {
		t.Error("public path should be allowed")
	}
	if g.Allows(t.Context(), server.URL+"/private/page") {
		t.Error("private path should be disallowed")
	}
}

func TestRobotsGate_MissingRobotsAllowsAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	g := NewRobotsGate("harvester/1.0", time.Second)
	if !g.Allows(t.Context(), server.URL+"/anything") {
		t.Error("missing robots.txt should allow everything")
	}
}
