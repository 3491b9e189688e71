package httpproto

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/latchpoint/edgeward/internal/cache"
	"github.com/latchpoint/edgeward/internal/pathresolver"
)

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>hi</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := pathresolver.New(root)
	if err != nil {
		t.Fatal(err)
	}
	c := cache.New(64, time.Minute)
	return NewHandler(r, c, 60), root
}

func reqGET(uri string) *Request {
	return &Request{Method: "GET", URI: uri, Version: "HTTP/1.1", KeepAlive: true}
}

func TestHandleServesExistingFile(t *testing.T) {
	h, _ := newTestHandler(t)
	resp, outcome := h.Handle(reqGET("/index.html"))
	if outcome.Status != 200 {
		t.Fatalf("status = %d, want 200", outcome.Status)
	}
	if resp.BodyKind != BodyMemory {
		t.Fatalf("BodyKind = %v, want BodyMemory for a small file", resp.BodyKind)
	}
}

func TestHandleRootMapsToIndex(t *testing.T) {
	h, _ := newTestHandler(t)
	_, outcome := h.Handle(reqGET("/"))
	if outcome.Status != 200 {
		t.Fatalf("status = %d, want 200", outcome.Status)
	}
}

func TestHandleMissingFileIs404(t *testing.T) {
	h, _ := newTestHandler(t)
	_, outcome := h.Handle(reqGET("/nope.html"))
	if outcome.Status != 404 {
		t.Fatalf("status = %d, want 404", outcome.Status)
	}
}

func TestHandlePathEscapeIs403(t *testing.T) {
	h, _ := newTestHandler(t)
	_, outcome := h.Handle(reqGET("/../../etc/passwd"))
	if outcome.Status != 403 {
		t.Fatalf("status = %d, want 403", outcome.Status)
	}
}

func TestHandleUnsupportedMethodIs501(t *testing.T) {
	h, _ := newTestHandler(t)
	req := &Request{Method: "POST", URI: "/index.html", Version: "HTTP/1.1", KeepAlive: true}
	_, outcome := h.Handle(req)
	if outcome.Status != 501 {
		t.Fatalf("status = %d, want 501", outcome.Status)
	}
}

func TestHandleSecondRequestHitsCache(t *testing.T) {
	h, _ := newTestHandler(t)
	_, first := h.Handle(reqGET("/index.html"))
	if first.CacheHit {
		t.Fatal("first request should be a cache miss")
	}
	_, second := h.Handle(reqGET("/index.html"))
	if !second.CacheHit {
		t.Fatal("second identical request should hit the cache")
	}
}

func TestHandleIfNoneMatchReturns304(t *testing.T) {
	h, _ := newTestHandler(t)
	resp, _ := h.Handle(reqGET("/index.html"))
	etag := ""
	for _, hd := range resp.Headers {
		if hd.Name == "ETag" {
			etag = hd.Value
		}
	}
	if etag == "" {
		t.Fatal("200 response missing ETag header")
	}

	req := reqGET("/index.html")
	req.Headers = []Header{{Name: "If-None-Match", Value: etag}}
	resp2, outcome := h.Handle(req)
	if outcome.Status != 304 {
		t.Fatalf("status = %d, want 304", outcome.Status)
	}
	if resp2.BodyKind != BodyNone {
		t.Fatalf("BodyKind = %v, want BodyNone for 304", resp2.BodyKind)
	}
}

func TestHandleHeadHasNoBody(t *testing.T) {
	h, _ := newTestHandler(t)
	req := &Request{Method: "HEAD", URI: "/index.html", Version: "HTTP/1.1", KeepAlive: true}
	resp, outcome := h.Handle(req)
	if outcome.Status != 200 {
		t.Fatalf("status = %d, want 200", outcome.Status)
	}
	if resp.BodyKind != BodyNone {
		t.Fatalf("BodyKind = %v, want BodyNone for HEAD", resp.BodyKind)
	}
}
