package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campuskit/advisor/internal/retrieval"
)

func TestSearchMapsOrganicResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "k" {
			t.Errorf("X-API-KEY = %q, want k", got)
		}
		w.Write([]byte(`{"organic":[
			{"title":"Enrolment dates","link":"https://uni.example/dates","snippet":"Semester 2 enrolment closes 14 January."},
			{"title":"Registry","link":"https://uni.example/registry","snippet":"Contact registry for late enrolment."}
		]}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "k", time.Second)
	results := c.Search(context.Background(), "semester 2 enrolment deadline", 5)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].SourceRef != "https://uni.example/dates" {
		t.Fatalf("first SourceRef = %q", results[0].SourceRef)
	}
	if results[0].SourceKind != retrieval.KindWeb {
		t.Fatalf("SourceKind = %q, want web", results[0].SourceKind)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("scores not descending: %v then %v", results[0].Score, results[1].Score)
	}
	if results[0].RetrievedAt.IsZero() {
		t.Fatalf("RetrievedAt not stamped")
	}
}

func TestSearchCollapsesProviderErrorToEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "k", time.Second)
	if results := c.Search(context.Background(), "anything", 3); results != nil {
		t.Fatalf("results = %v, want nil on provider error", results)
	}
}

func TestSearchTimeoutIsBoundedAndEmpty(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	timeout := 150 * time.Millisecond
	c := NewClient(ts.URL, "k", timeout)

	start := time.Now()
	results := c.Search(context.Background(), "slow provider", 3)
	elapsed := time.Since(start)

	if results != nil {
		t.Fatalf("results = %v, want nil on timeout", results)
	}
	if elapsed > timeout+300*time.Millisecond {
		t.Fatalf("Search blocked for %v, want ~%v", elapsed, timeout)
	}
}

func TestDisabledSearcher(t *testing.T) {
	var d Disabled
	if got := d.Search(context.Background(), "q", 5); got != nil {
		t.Fatalf("Disabled.Search = %v, want nil", got)
	}
}
