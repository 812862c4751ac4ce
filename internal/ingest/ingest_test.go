package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crucible-learn/crucible/internal/log"
)

type fakeInserter struct {
	docs  map[string]string // docID -> text
	empty bool              // mimic a disabled gateway
	err   error
}

func newFakeInserter() *fakeInserter {
	return &fakeInserter{docs: make(map[string]string)}
}

func (f *fakeInserter) Insert(_ context.Context, text, docID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.empty {
		return "", nil
	}
	if docID == "" {
		docID = "generated-id"
	}
	f.docs[docID] = text
	return docID, nil
}

type fakeAuditor struct {
	recorded []Source
	err      error
}

func (f *fakeAuditor) Record(_ context.Context, docID, kind, name string, chars int) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, Source{DocID: docID, Kind: kind, Name: name, Chars: chars})
	return nil
}

func (f *fakeAuditor) List(context.Context) ([]Source, error) {
	return f.recorded, f.err
}

const articleHTML = `<!DOCTYPE html>
<html><head><title>Caching</title></head><body>
<nav>Home | About | Contact</nav>
<article>
<h1>Caching strategies</h1>
<p>Caches trade freshness for latency. A cache-aside pattern loads data on
miss and writes through on update, while a write-back cache batches writes
at the cost of durability. Invalidation remains the hard part: TTLs bound
staleness but cannot eliminate it.</p>
<p>Cache stampedes occur when many clients miss simultaneously and all hit
the origin. Mitigations include request coalescing and probabilistic early
expiration.</p>
</article>
</body></html>`

func TestIngestURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(articleHTML))
		case "/missing":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	inserter := newFakeInserter()
	audit := &fakeAuditor{}
	svc := NewService(inserter, NewFetcher(5*time.Second), audit, log.NewNop())

	results := svc.IngestURLs(context.Background(), []string{
		server.URL + "/article",
		server.URL + "/missing",
	})
	if len(results) != 2 {
		t.Fatalf("IngestURLs() returned %d results, want 2", len(results))
	}

	if results[0].Error != "" {
		t.Fatalf("article ingest failed: %s", results[0].Error)
	}
	if results[0].DocID == "" {
		t.Error("article ingest returned no doc id")
	}
	text := inserter.docs[results[0].DocID]
	if !strings.Contains(text, "cache-aside") {
		t.Errorf("indexed text misses article content: %q", text)
	}
	if strings.Contains(text, "Home | About") {
		t.Error("indexed text contains navigation boilerplate")
	}

	// The 404 fails its item without aborting the batch.
	if results[1].Error == "" {
		t.Error("404 url ingested without error")
	}
	if results[1].DocID != "" {
		t.Error("failed url was assigned a doc id")
	}

	if len(audit.recorded) != 1 {
		t.Fatalf("audit recorded %d docs, want 1", len(audit.recorded))
	}
	if audit.recorded[0].Kind != "url" {
		t.Errorf("audit kind = %q, want url", audit.recorded[0].Kind)
	}
}

func TestIngestURLsDisabledGateway(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	audit := &fakeAuditor{}
	svc := NewService(&fakeInserter{empty: true}, NewFetcher(5*time.Second), audit, log.NewNop())

	results := svc.IngestURLs(context.Background(), []string{server.URL})
	if results[0].Error != "" {
		t.Fatalf("ingest with disabled gateway failed: %s", results[0].Error)
	}
	// A local id is assigned so the audit trail stays consistent.
	if results[0].DocID == "" {
		t.Error("no doc id assigned with disabled gateway")
	}
	if len(audit.recorded) != 1 || audit.recorded[0].DocID != results[0].DocID {
		t.Errorf("audit = %+v, want one record under %q", audit.recorded, results[0].DocID)
	}
}

func TestIngestPDFRejectsGarbage(t *testing.T) {
	svc := NewService(newFakeInserter(), NewFetcher(time.Second), &fakeAuditor{}, log.NewNop())
	if _, err := svc.IngestPDF(context.Background(), "notes.pdf", []byte("not a pdf")); err == nil {
		t.Fatal("IngestPDF() accepted garbage input")
	}
}

func TestExtractURLValidation(t *testing.T) {
	f := NewFetcher(time.Second)
	for _, raw := range []string{"", "not a url", "ftp://example.com/x"} {
		if _, err := f.ExtractURL(context.Background(), raw); err == nil {
			t.Errorf("ExtractURL(%q) accepted an invalid url", raw)
		}
	}
}

func TestExtractURLEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body></body></html>"))
	}))
	defer server.Close()

	_, err := NewFetcher(time.Second).ExtractURL(context.Background(), server.URL)
	if err == nil {
		t.Fatal("ExtractURL() accepted a page with no readable content")
	}
}
