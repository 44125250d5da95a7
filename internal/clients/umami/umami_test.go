package umami

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

func testClient(baseURL string) *client {
	return &client{
		log:       logger.NewNop(),
		http:      &http.Client{Timeout: requestTimeout},
		baseURL:   baseURL,
		apiKey:    "test-key",
		websiteID: "site-1",
	}
}

func TestFetchWindowUnconfigured(t *testing.T) {
	c := &client{log: logger.NewNop(), http: &http.Client{}}

	events, err := c.FetchWindow(context.Background(), time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("len(events) = %d, want 0 when unconfigured", len(events))
	}
}

func TestFetchWindowDecodesEvents(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"e1","urlPath":"/course/1","eventName":"course_start","createdAt":"2026-08-20T10:00:00Z"}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	events, err := c.FetchWindow(context.Background(), time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("FetchWindow: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].EventName != "course_start" || events[0].URL != "/course/1" {
		t.Errorf("decoded event = %+v", events[0])
	}
}

func TestFetchWindowNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	events, err := c.FetchWindow(context.Background(), time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatal("expected an error on 403")
	}
	if len(events) != 0 {
		t.Errorf("len(events) = %d, want 0 on failure", len(events))
	}
}

func TestFetchWindowsMergesConcurrently(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"e","urlPath":"/","eventName":"page_view","createdAt":"2026-08-20T10:00:00Z"}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	now := time.Now()
	events, err := c.FetchWindows(context.Background(), []Window{
		{Start: now.Add(-3 * time.Hour), End: now.Add(-2 * time.Hour)},
		{Start: now.Add(-2 * time.Hour), End: now.Add(-time.Hour)},
		{Start: now.Add(-time.Hour), End: now},
	})
	if err != nil {
		t.Fatalf("FetchWindows: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("len(events) = %d, want 3 merged", len(events))
	}
}

func TestCheckHealth(t *testing.T) {
	t.Run("unconfigured is warning", func(t *testing.T) {
		c := &client{log: logger.NewNop(), http: &http.Client{}}
		report := c.CheckHealth(context.Background())
		if report.Status != types.HealthWarning {
			t.Errorf("Status = %q, want warning", report.Status)
		}
	})

	t.Run("reachable is healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[]}`))
		}))
		defer srv.Close()

		report := testClient(srv.URL).CheckHealth(context.Background())
		if report.Status != types.HealthHealthy {
			t.Errorf("Status = %q, want healthy", report.Status)
		}
	})

	t.Run("unreachable is critical", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusBadGateway)
		}))
		defer srv.Close()

		report := testClient(srv.URL).CheckHealth(context.Background())
		if report.Status != types.HealthCritical {
			t.Errorf("Status = %q, want critical", report.Status)
		}
		if report.Details["error"] == nil {
			t.Error("expected failure detail")
		}
	})
}
