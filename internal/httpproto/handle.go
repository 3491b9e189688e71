package httpproto

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/latchpoint/edgeward/internal/cache"
	"github.com/latchpoint/edgeward/internal/compress"
	"github.com/latchpoint/edgeward/internal/pathresolver"
)

// Handler implements the GET/HEAD request-handling contract: resolve,
// validate, consult the cache, serve from file or cache, and hand small
// freshly-assembled bodies back to the cache for next time.
type Handler struct {
	Resolver          *pathresolver.Resolver
	Cache             *cache.Cache
	KeepAliveTimeout  int
	ServerName        string
	MaxCompressibleSz int64 // 10 MiB, file size ceiling for in-memory compression
	MaxCacheableSz    int64 // 1 MiB, ceiling for pre-assembling wire bytes into the cache
}

// NewHandler builds a Handler with the documented default size ceilings.
func NewHandler(r *pathresolver.Resolver, c *cache.Cache, keepAliveTimeout int) *Handler {
	return &Handler{
		Resolver:          r,
		Cache:             c,
		KeepAliveTimeout:  keepAliveTimeout,
		ServerName:        "edgeward",
		MaxCompressibleSz: 10 << 20,
		MaxCacheableSz:    1 << 20,
	}
}

// Outcome records how a request was resolved, for the access log.
type Outcome struct {
	Status    int
	CacheHit  bool
	BytesSent int64
}

// Handle runs one request through the full pipeline and returns the
// response to render plus the outcome summary for logging.
func (h *Handler) Handle(req *Request) (*Response, Outcome) {
	if req.Method != "GET" && req.Method != "HEAD" {
		resp := NewError(501, true)
		h.finish(resp, req)
		return resp, Outcome{Status: 501}
	}

	uri := req.URI
	if idx := strings.IndexByte(uri, '?'); idx >= 0 {
		uri = uri[:idx]
	}
	if uri == "/" {
		uri = "/index.html"
	}

	canonical, err := h.Resolver.Resolve(uri)
	if err != nil {
		resp := NewError(403, true)
		h.finish(resp, req)
		return resp, Outcome{Status: 403}
	}

	encoding := compress.Negotiate(req.Header("Accept-Encoding"))
	vary := varyFromAlgo(encoding)

	now := time.Now()
	// HEAD always takes the stat/assemble path below so it gets correctly
	// suppressed-body headers; cache entries are pre-rendered GET wire
	// blobs with the body baked in, which HEAD cannot reuse verbatim.
	if entry, ok := h.Cache.Lookup(canonical, vary, now); ok && req.Method == "GET" {
		if inm := req.Header("If-None-Match"); inm != "" && IfNoneMatchSatisfied(inm, entry.ETag) {
			resp := h.notModified(entry.ETag, req)
			h.finish(resp, req)
			return resp, Outcome{Status: 304, CacheHit: true}
		}
		resp := &Response{
			Status:    200,
			Reason:    "OK",
			BodyKind:  BodyCache,
			CacheBody: entry.Bytes,
			KeepAlive: req.KeepAlive,
		}
		return resp, Outcome{Status: 200, CacheHit: true, BytesSent: int64(len(entry.Bytes))}
	}

	info, statErr := os.Stat(canonical)
	if statErr != nil {
		resp := NewError(404, false)
		resp.KeepAlive = req.KeepAlive
		h.finish(resp, req)
		return resp, Outcome{Status: 404}
	}

	etag := etagFor(info)

	if inm := req.Header("If-None-Match"); inm != "" {
		if IfNoneMatchSatisfied(inm, etag) {
			resp := h.notModified(etag, req)
			h.finish(resp, req)
			return resp, Outcome{Status: 304}
		}
	} else if ims := req.Header("If-Modified-Since"); ims != "" {
		if t, ok := ParseHTTPDate(ims); ok {
			if !info.ModTime().Truncate(time.Second).After(t.Truncate(time.Second)) {
				resp := h.notModified(etag, req)
				h.finish(resp, req)
				return resp, Outcome{Status: 304}
			}
		}
	}

	resp, bytesSent := h.serve(canonical, info, etag, encoding, vary, req, now)
	h.finish(resp, req)
	return resp, Outcome{Status: resp.Status, BytesSent: bytesSent}
}

func varyFromAlgo(a compress.Algorithm) cache.VaryKey {
	switch a {
	case compress.Gzip:
		return cache.VaryGzip
	case compress.Deflate:
		return cache.VaryDeflate
	default:
		return cache.VaryNone
	}
}

func etagFor(info os.FileInfo) string {
	inode, mtime := statInodeMtime(info)
	return MakeETag(inode, uint64(info.Size()), mtime)
}

func (h *Handler) notModified(etag string, req *Request) *Response {
	resp := &Response{
		Status:    304,
		Reason:    "Not Modified",
		BodyKind:  BodyNone,
		KeepAlive: req.KeepAlive,
	}
	resp.AddHeader("ETag", etag)
	resp.AddHeader("Cache-Control", "public, max-age=300, must-revalidate")
	resp.AddHeader("Content-Length", "0")
	return resp
}

// serve assembles a 200 response for a file that passed all conditional checks.
func (h *Handler) serve(canonical string, info os.FileInfo, etag string, encoding compress.Algorithm, vary cache.VaryKey, req *Request, now time.Time) (*Response, int64) {
	mimeType := MIMEType(canonical)

	resp := &Response{Status: 200, Reason: "OK", KeepAlive: req.KeepAlive}
	resp.AddHeader("Content-Type", mimeType)
	resp.AddHeader("Last-Modified", FormatHTTPDate(info.ModTime()))
	resp.AddHeader("ETag", etag)
	resp.AddHeader("Vary", "Accept-Encoding, User-Agent")
	resp.AddHeader("Cache-Control", CacheControl(canonical))

	eligible := compress.Eligible(mimeType) && encoding != compress.None && info.Size() <= h.MaxCompressibleSz

	if eligible {
		raw, err := os.ReadFile(canonical)
		if err == nil {
			level := compress.LevelForMIME(mimeType)
			compressed, cerr := compress.Compress(raw, encoding, level)
			if cerr == nil {
				resp.AddHeader("Content-Encoding", encoding.String())
				resp.AddHeader("Content-Length", strconv.Itoa(len(compressed)))
				resp.BodyKind = BodyMemory
				resp.MemoryBody = compressed
				if req.Method == "HEAD" {
					resp.BodyKind = BodyNone
				}
				h.maybeCache(canonical, vary, etag, resp, now)
				return resp, int64(len(compressed))
			}
			// ErrExpanded or a compression failure: fall through to uncompressed.
		}
	}

	f, err := os.Open(canonical)
	if err != nil {
		e := NewError(404, false)
		e.KeepAlive = req.KeepAlive
		return e, 0
	}

	resp.AddHeader("Content-Length", strconv.FormatInt(info.Size(), 10))

	if req.Method == "HEAD" {
		f.Close()
		resp.BodyKind = BodyNone
		return resp, info.Size()
	}

	if info.Size() < h.MaxCacheableSz {
		raw, rerr := os.ReadFile(canonical)
		f.Close()
		if rerr == nil {
			resp.BodyKind = BodyMemory
			resp.MemoryBody = raw
			h.maybeCache(canonical, vary, etag, resp, now)
			return resp, info.Size()
		}
		resp.BodyKind = BodyMemory
		resp.MemoryBody = nil
		return resp, 0
	}

	resp.BodyKind = BodyFile
	resp.FileHandle = f
	resp.FileOffset = 0
	resp.FileLength = info.Size()
	return resp, info.Size()
}

// maybeCache hands a fully assembled wire representation to the cache
// for future hits. Small uncompressed bodies are cheap enough to cache
// unconditionally; small compressed bodies qualify too, since the wire
// bytes are already sitting in memory either way.
func (h *Handler) maybeCache(canonical string, vary cache.VaryKey, etag string, resp *Response, now time.Time) {
	if int64(len(resp.MemoryBody)) >= h.MaxCacheableSz {
		return
	}
	wire := assembleWireBytes(resp)
	h.Cache.Insert(canonical, vary, etag, wire, now)
}

func assembleWireBytes(resp *Response) []byte {
	head := RenderHead(resp)
	out := make([]byte, 0, len(head)+len(resp.MemoryBody))
	out = append(out, head...)
	out = append(out, resp.MemoryBody...)
	return out
}

// finish applies the keep-alive header and the client-error forced-close rule.
func (h *Handler) finish(resp *Response, req *Request) {
	if isClientErrorForcingClose(resp.Status) {
		resp.KeepAlive = false
	}
	if resp.KeepAlive {
		resp.AddHeader("Connection", "keep-alive")
		resp.AddHeader("Keep-Alive", "timeout="+strconv.Itoa(h.KeepAliveTimeout))
	} else {
		resp.AddHeader("Connection", "close")
	}
	resp.AddHeader("Server", h.ServerName)
}

func isClientErrorForcingClose(status int) bool {
	switch status {
	case 400, 403, 413, 501, 505:
		return true
	default:
		return false
	}
}
