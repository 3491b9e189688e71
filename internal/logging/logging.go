// Package logging sets up the process-wide zerolog logger: a readable
// console writer in development mode, structured JSON otherwise, each
// worker tagging its own lines with a worker_id field.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// OpenAccessLog opens the configured access-log sink for appending,
// creating its parent directory if needed. The returned file is never
// rotated; operators rotate it externally (logrotate, copytruncate).
func OpenAccessLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// New builds a logger for one process. workerID is -1 for the
// supervisor itself, which logs without a worker_id field.
func New(dev bool, workerID int) zerolog.Logger {
	var w io.Writer = os.Stdout
	if dev {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(w).With().Timestamp().Logger()
	if workerID >= 0 {
		logger = logger.With().Int("worker_id", workerID).Logger()
	}
	return logger
}

// AccessEvent is the structured fields one completed exchange logs.
type AccessEvent struct {
	ConnID   string
	PeerIP   string
	Method   string
	Path     string
	Status   int
	Bytes    int64
	Duration time.Duration
	CacheHit bool
}

// LogAccess writes one access-log line, sanitizing the client-controlled
// path so a crafted request cannot inject control characters into the
// log stream.
func LogAccess(logger zerolog.Logger, ev AccessEvent) {
	logger.Info().
		Str("conn", ev.ConnID).
		Str("peer", ev.PeerIP).
		Str("method", sanitize(ev.Method)).
		Str("path", sanitize(ev.Path)).
		Int("status", ev.Status).
		Int64("bytes", ev.Bytes).
		Dur("duration", ev.Duration).
		Bool("cache_hit", ev.CacheHit).
		Msg("request")
}

// sanitize strips bytes a malicious request could use to forge extra
// structured-log fields or terminal escape sequences.
func sanitize(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7f {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
