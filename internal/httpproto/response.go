package httpproto

import (
	"fmt"
	"os"
	"strconv"
)

// BodyKind tags which of the three body sources a Response carries.
// Exactly one is ever active, matching the data model's invariant.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyMemory
	BodyFile
	BodyCache
)

// Response is one assembled HTTP response, not yet serialized to wire
// bytes. Headers is ordered because HTTP header order is observable and
// this server's own Cache-Control/ETag/Last-Modified ordering is worth
// keeping stable across hits and misses.
type Response struct {
	Status    int
	Reason    string
	Headers   []Header
	KeepAlive bool

	BodyKind BodyKind

	MemoryBody []byte

	FileHandle *os.File
	FileOffset int64
	FileLength int64

	CacheBody []byte // body_from_cache: a borrowed slice, never mutated
}

func (r *Response) AddHeader(name, value string) {
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
}

// StatusText returns the canonical reason phrase for known codes.
func StatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 304:
		return "Not Modified"
	case 400:
		return "Bad Request"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 413:
		return "Request Entity Too Large"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 505:
		return "HTTP Version Not Supported"
	default:
		return "Unknown"
	}
}

// RenderHead serializes the status line and headers into a single
// contiguous buffer, ready to be written ahead of (and coalesced with) the body.
func RenderHead(r *Response) []byte {
	buf := make([]byte, 0, 512)
	buf = append(buf, "HTTP/1.1 "...)
	buf = append(buf, strconv.Itoa(r.Status)...)
	buf = append(buf, ' ')
	reason := r.Reason
	if reason == "" {
		reason = StatusText(r.Status)
	}
	buf = append(buf, reason...)
	buf = append(buf, "\r\n"...)

	for _, h := range r.Headers {
		buf = append(buf, h.Name...)
		buf = append(buf, ": "...)
		buf = append(buf, h.Value...)
		buf = append(buf, "\r\n"...)
	}
	buf = append(buf, "\r\n"...)
	return buf
}

// BodyLength reports the length of whichever body source is active, 0 for BodyNone.
func BodyLength(r *Response) int64 {
	switch r.BodyKind {
	case BodyMemory:
		return int64(len(r.MemoryBody))
	case BodyFile:
		return r.FileLength
	case BodyCache:
		return int64(len(r.CacheBody))
	default:
		return 0
	}
}

// NewError builds a minimal error response with the given status and a
// plain-text body. Callers force forceClose for malformed or oversized
// requests, where the connection's framing can no longer be trusted.
func NewError(status int, forceClose bool) *Response {
	body := []byte(fmt.Sprintf("%d %s\n", status, StatusText(status)))
	r := &Response{
		Status:     status,
		Reason:     StatusText(status),
		BodyKind:   BodyMemory,
		MemoryBody: body,
		KeepAlive:  !forceClose,
	}
	r.AddHeader("Content-Type", "text/plain")
	r.AddHeader("Content-Length", strconv.Itoa(len(body)))
	return r
}
