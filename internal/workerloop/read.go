package workerloop

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/latchpoint/edgeward/internal/httpproto"
)

// handleReadable drains the socket under edge-triggered semantics (loop
// until EAGAIN), then parses and dispatches whatever complete requests
// the buffer now holds.
func (l *Loop) handleReadable(c *connection) {
	for {
		if c.filled >= len(c.buf) {
			break
		}

		n, err := unix.Read(c.fd, c.buf[c.filled:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			if err == unix.EINTR {
				continue
			}
			l.closeConnection(c.fd, "read error")
			return
		}
		if n == 0 {
			l.closeConnection(c.fd, "peer closed")
			return
		}

		c.filled += n
		c.bytesTotal += int64(n)
		c.lastActivity = time.Now()
	}

	l.processBuffered(c)
}

// processBuffered parses and dispatches as many complete requests as the
// buffer holds, in order, memmove'ing any trailing partial request to the
// buffer head. It stops early if a response suspends on write-readiness,
// since only one response may be in flight per connection at a time.
func (l *Loop) processBuffered(c *connection) {
	for {
		req, consumed, err := httpproto.Parse(c.buf[:c.filled])
		if err != nil {
			if err == httpproto.ErrIncomplete {
				if c.filled >= len(c.buf) {
					l.sendOverflowAndClose(c)
				}
				return
			}
			l.dispatchParseError(c, err)
			return
		}

		remaining := c.filled - consumed
		copy(c.buf, c.buf[consumed:c.filled])
		c.filled = remaining

		start := time.Now()
		resp, outcome := l.cfg.Handler.Handle(req)

		if !l.dispatchResponse(c, resp, req, outcome, start) {
			return
		}
		if c.state == stateWriting {
			// Suspended on a short write; the rest of the buffered
			// requests, if any, wait for the next writable-triggered drain.
			return
		}
		if !c.keepAlive {
			return
		}
		if c.filled == 0 {
			return
		}
		// More pipelined data already buffered: parse the next request
		// immediately rather than waiting for another readiness event.
	}
}

func (l *Loop) dispatchParseError(c *connection, err error) {
	pe, ok := err.(*httpproto.ParseError)
	status := 400
	if ok && pe.Kind == httpproto.UnsupportedVersion {
		status = 505
	}
	l.writeAndClose(c, httpproto.NewError(status, true))
}

func (l *Loop) sendOverflowAndClose(c *connection) {
	l.writeAndClose(c, httpproto.NewError(413, true))
}

// writeAndClose makes a best-effort attempt to deliver an error response
// before tearing the connection down; a client too slow to accept it is
// not waited on.
func (l *Loop) writeAndClose(c *connection, resp *httpproto.Response) {
	p := newPendingFromResponse(resp)
	resume(c.fd, p)
	p.release()
	l.closeConnection(c.fd, "error response")
}

// dispatchResponse attempts to send resp immediately. On WouldBlock it
// suspends the response on the connection and switches the socket to
// write-readiness. Returns false if the connection was closed.
func (l *Loop) dispatchResponse(c *connection, resp *httpproto.Response, req *httpproto.Request, outcome httpproto.Outcome, start time.Time) bool {
	c.keepAlive = resp.KeepAlive
	p := newPendingFromResponse(resp)

	switch resume(c.fd, p) {
	case sendDone:
		p.release()
		l.logAccess(c, req, outcome, start)
		if !resp.KeepAlive {
			l.closeConnection(c.fd, "no keep-alive")
			return false
		}
		return true
	case sendWouldBlock:
		c.pending = p
		c.state = stateWriting
		if err := l.poller.ModifyToWrite(c.fd); err != nil {
			p.release()
			l.closeConnection(c.fd, "modify-to-write failed")
			return false
		}
		l.logAccess(c, req, outcome, start)
		return true
	default:
		p.release()
		l.closeConnection(c.fd, "send failed")
		return false
	}
}

func (l *Loop) logAccess(c *connection, req *httpproto.Request, outcome httpproto.Outcome, start time.Time) {
	if l.cfg.StatsRegistry != nil {
		l.cfg.StatsRegistry.Requests.WithLabelValues(statusClass(outcome.Status)).Inc()
	}
	if l.cfg.AccessLog == nil {
		return
	}
	l.cfg.AccessLog(c.connID, c.peerIP, req.Method, req.URI, outcome.Status, outcome.BytesSent, time.Since(start), outcome.CacheHit)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
