// Package compress implements the gzip/deflate encoding step applied to
// compressible response bodies before they are cached or sent.
package compress

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"errors"
	"strings"
)

// Algorithm identifies a negotiated content encoding.
type Algorithm int

const (
	None Algorithm = iota
	Gzip
	Deflate
)

func (a Algorithm) String() string {
	switch a {
	case Gzip:
		return "gzip"
	case Deflate:
		return "deflate"
	default:
		return "none"
	}
}

// ErrExpanded is returned when compression would more than double the
// input size; the caller should fall back to an uncompressed body.
var ErrExpanded = errors.New("compress: output larger than twice input")

// LevelForMIME selects a deflate level by content type: default for
// text-ish content, maximum for fonts/SVG (compressed once, served many
// times), minimum for already-dense binary formats.
func LevelForMIME(mime string) int {
	switch {
	case strings.HasPrefix(mime, "font/"), mime == "image/svg+xml",
		mime == "application/font-woff", mime == "application/x-font-ttf":
		return 9
	case mime == "image/png", mime == "image/jpeg", mime == "image/gif",
		mime == "application/octet-stream":
		return 1
	default:
		return 6
	}
}

// Negotiate reduces an Accept-Encoding header into the small enumeration
// the response cache keys on: gzip takes priority over deflate.
func Negotiate(acceptEncoding string) Algorithm {
	lower := strings.ToLower(acceptEncoding)
	if strings.Contains(lower, "gzip") {
		return Gzip
	}
	if strings.Contains(lower, "deflate") {
		return Deflate
	}
	return None
}

// Compress encodes data with the given algorithm and level. It returns
// ErrExpanded (not a hard failure) if the result is more than twice the
// input size, since the caller's correct response to that is to serve
// the original bytes uncompressed, not to error out the request.
func Compress(data []byte, algo Algorithm, level int) ([]byte, error) {
	var buf bytes.Buffer

	switch algo {
	case Gzip:
		w, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case Deflate:
		w, err := flate.NewWriter(&buf, level)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	default:
		return data, nil
	}

	if len(data) > 0 && buf.Len() > 2*len(data) {
		return nil, ErrExpanded
	}
	return buf.Bytes(), nil
}

// compressiblePrefixes mirrors the original server's eligibility
// table: text-ish formats compress well, already-compressed binary
// formats do not.
var compressiblePrefixes = []string{
	"text/",
	"application/javascript",
	"application/json",
	"application/xml",
	"application/xhtml+xml",
	"image/svg+xml",
	"font/",
	"application/font-woff",
	"application/x-font-ttf",
}

// Eligible reports whether content of the given MIME type should be
// considered for compression at all.
func Eligible(mime string) bool {
	for _, p := range compressiblePrefixes {
		if strings.HasPrefix(mime, p) {
			return true
		}
	}
	return false
}
