package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/p4kb/p4kb/pkg/resilience"
)

func testFetcher() *Fetcher {
	return NewFetcher(FetcherOpts{Timeout: 2 * time.Second, RatePerSec: 1000, Burst: 1000})
}

func TestFetcher_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("%PDF-1.4 pretend"))
	}))
	defer srv.Close()

	body, err := testFetcher().Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "%PDF-1.4 pretend" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestFetcher_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher().Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error on 404")
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestFetcher_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := testFetcher()
	ctx := context.Background()
	for i := 0; i < resilience.DefaultBreakerOpts.FailThreshold; i++ {
		f.Get(ctx, srv.URL)
	}
	_, err := f.Get(ctx, srv.URL)
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after repeated failures, got %v", err)
	}
}

func TestFetcher_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := testFetcher().Get(ctx, srv.URL); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

func TestListExercises(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[
			{"name": "basic", "type": "dir", "html_url": "https://github.com/p4lang/tutorials/tree/master/exercises/basic"},
			{"name": "README.md", "type": "file", "html_url": "https://github.com/p4lang/tutorials/blob/master/exercises/README.md"},
			{"name": "firewall", "type": "dir", "html_url": "https://github.com/p4lang/tutorials/tree/master/exercises/firewall"}
		]`))
	}))
	defer srv.Close()

	refs, err := ListExercises(context.Background(), testFetcher(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 directory refs, got %d", len(refs))
	}
	if refs[0].Name != "basic" || refs[1].Name != "firewall" {
		t.Fatalf("unexpected refs: %+v", refs)
	}
	for _, r := range refs {
		if r.FileType != "directory" {
			t.Errorf("ref %s has type %q", r.Name, r.FileType)
		}
	}
}

func TestListExercises_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	if _, err := ListExercises(context.Background(), testFetcher(), srv.URL); err == nil {
		t.Fatal("expected decode error")
	}
}
