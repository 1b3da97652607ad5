package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const fixtureICS = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//calstats//test//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:ev1\r\nDTSTART:20260812T100000Z\r\nDTEND:20260812T110000Z\r\n" +
	"SUMMARY:Sync\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

// ============================================================
// Fetching and caching
// ============================================================

func TestFetchOneCachesAndRevalidates(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(fixtureICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "work", URL: srv.URL}

	res, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if res.FromCache || string(res.Body) != fixtureICS {
		t.Fatalf("first fetch: from_cache=%v body_len=%d", res.FromCache, len(res.Body))
	}

	res, err = f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("revalidated fetch: %v", err)
	}
	if !res.FromCache || string(res.Body) != fixtureICS {
		t.Fatalf("expected 304 cache hit, got from_cache=%v", res.FromCache)
	}
	if hits != 2 {
		t.Fatalf("expected 2 server hits, got %d", hits)
	}
}

func TestFetchOneFallsBackToCacheOnServerError(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(fixtureICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "work", URL: srv.URL}

	if _, err := f.FetchOne(context.Background(), src); err != nil {
		t.Fatalf("priming fetch: %v", err)
	}

	healthy = false
	res, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("expected cached fallback, got error: %v", err)
	}
	if !res.FromCache || string(res.Body) != fixtureICS {
		t.Fatalf("fallback body wrong: from_cache=%v", res.FromCache)
	}
}

// FetchAll is all-or-nothing: a source with neither a body nor a cache
// fails the whole window.
func TestFetchAllFailsOnDeadSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	_, err := f.FetchAll(context.Background(), []Source{{ID: "dead", URL: srv.URL}})
	if err == nil {
		t.Fatal("expected FetchAll to fail")
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://example.com/private/feed.ics?token=abcd")
	if got != "https://example.com/...(redacted)" {
		t.Fatalf("redactURL: %q", got)
	}
	if got := redactURL("garbage"); got != "ics://...(redacted)" {
		t.Fatalf("redactURL fallback: %q", got)
	}
}
