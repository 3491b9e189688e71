// Package httpproto implements HTTP/1.1 request parsing, conditional
// validation, MIME/cache-control policy, and response rendering for the
// GET/HEAD-only surface this server supports.
package httpproto

import (
	"bytes"
	"errors"
)

const (
	maxMethodLen = 15
	maxURILen    = 2047
	maxVersionLen = 15
	MaxHeaders    = 256
	MaxHeaderSize = 8 * 1024
)

// ParseErrorKind classifies why parsing failed.
type ParseErrorKind int

const (
	Malformed ParseErrorKind = iota
	TooLarge
	UnsupportedVersion
)

// ParseError carries the classified parse failure.
type ParseError struct {
	Kind ParseErrorKind
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case TooLarge:
		return "httpproto: request too large"
	case UnsupportedVersion:
		return "httpproto: unsupported version"
	default:
		return "httpproto: malformed request"
	}
}

// ErrIncomplete is a sentinel (not a *ParseError) meaning the buffer
// does not yet contain a full request; the caller should wait for more bytes.
var ErrIncomplete = errors.New("httpproto: incomplete request")

// Header is one ordered name/value pair as received on the wire.
type Header struct {
	Name  string
	Value string
}

// Request is one parsed HTTP request. Every string here is a copy, not
// a slice of the connection's read buffer — the read buffer is reused
// and memmove'd for pipelined requests, so nothing in a Request may
// alias it past the call to Parse.
type Request struct {
	Method    string
	URI       string
	Version   string
	Headers   []Header
	KeepAlive bool
}

// Header looks up a request header case-insensitively, returning "" if absent.
func (r *Request) Header(name string) string {
	for _, h := range r.Headers {
		if equalFoldASCII(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Parse scans data for one complete request terminated by CRLFCRLF and
// returns it along with the number of bytes it consumed. If no CRLFCRLF
// appears yet, it returns ErrIncomplete (not a hard parse failure) so the
// connection loop can keep waiting for more bytes — unless data already
// exceeds the connection buffer capacity, which the caller reports as
// TooLarge since no more bytes are coming for this slot.
func Parse(data []byte) (*Request, int, error) {
	headerEnd := bytes.Index(data, []byte("\r\n\r\n"))
	if headerEnd == -1 {
		return nil, 0, ErrIncomplete
	}
	block := data[:headerEnd]
	consumed := headerEnd + 4

	var line, headerBlock []byte
	if lineEnd := bytes.IndexByte(block, '\n'); lineEnd == -1 {
		// No header lines: the whole block is the request line.
		line = block
	} else {
		line = block[:lineEnd]
		headerBlock = block[lineEnd+1:]
	}
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 == -1 || sp1 > maxMethodLen {
		return nil, 0, &ParseError{Kind: Malformed}
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 == -1 {
		return nil, 0, &ParseError{Kind: Malformed}
	}

	method := string(line[:sp1])
	uri := string(rest[:sp2])
	version := string(rest[sp2+1:])

	if len(uri) > maxURILen || len(version) > maxVersionLen {
		return nil, 0, &ParseError{Kind: Malformed}
	}
	if version != "HTTP/1.0" && version != "HTTP/1.1" {
		return nil, 0, &ParseError{Kind: UnsupportedVersion}
	}

	req := &Request{
		Method:  method,
		URI:     uri,
		Version: version,
	}

	if err := parseHeaders(req, headerBlock); err != nil {
		return nil, 0, err
	}

	req.KeepAlive = deriveKeepAlive(req)

	return req, consumed, nil
}

func parseHeaders(req *Request, data []byte) error {
	for len(data) > 0 {
		lineEnd := bytes.IndexByte(data, '\n')
		var line []byte
		if lineEnd == -1 {
			line = data
			data = nil
		} else {
			line = data[:lineEnd]
			data = data[lineEnd+1:]
		}
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		name := string(bytes.TrimSpace(line[:colon]))
		value := bytes.TrimLeft(line[colon+1:], " \t")
		if len(value) > MaxHeaderSize {
			value = value[:MaxHeaderSize]
		}
		if len(req.Headers) >= MaxHeaders {
			continue
		}
		req.Headers = append(req.Headers, Header{Name: name, Value: string(value)})
	}
	return nil
}

func deriveKeepAlive(req *Request) bool {
	conn := req.Header("Connection")
	switch req.Version {
	case "HTTP/1.1":
		return !equalFoldASCII(conn, "close")
	default: // HTTP/1.0
		return equalFoldASCII(conn, "keep-alive")
	}
}
