package workerloop

import (
	"golang.org/x/sys/unix"

	"github.com/latchpoint/edgeward/internal/sendfile"
)

// sendResult tells the caller whether a pending response finished,
// needs another writable wakeup, or the connection must be torn down.
type sendResult int

const (
	sendDone sendResult = iota
	sendWouldBlock
	sendFailed
)

// resume drains as much of p as the socket will currently accept,
// advancing every cursor so a later writable wakeup resumes exactly
// where this call left off.
func resume(fd int, p *pendingResponse) sendResult {
	if p.isCache {
		return writeBytes(fd, p.bodyCache, &p.headSent)
	}

	if p.headSent < len(p.head) {
		res := writeBytes(fd, p.head, &p.headSent)
		if res != sendDone {
			return res
		}
	}

	if p.bodyFile != nil {
		for p.fileSent < p.fileLength {
			n, err := sendfile.Send(fd, int(p.bodyFile.Fd()), &p.fileOffset, int(p.fileLength-p.fileSent))
			p.fileSent += int64(n)
			if err == sendfile.ErrWouldBlock {
				return sendWouldBlock
			}
			if err != nil {
				return sendFailed
			}
			if n == 0 {
				return sendWouldBlock
			}
		}
		return sendDone
	}

	return writeBytes(fd, p.bodyMemory, &p.bodySent)
}

// writeBytes writes buf[*sent:] to fd, advancing *sent on partial progress.
func writeBytes(fd int, buf []byte, sent *int) sendResult {
	for *sent < len(buf) {
		n, err := unix.Write(fd, buf[*sent:])
		if n > 0 {
			*sent += n
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return sendWouldBlock
			}
			if err == unix.EINTR {
				continue
			}
			// ECONNRESET / EPIPE during send are expected client-side
			// failures, not server errors; treat identically to WouldBlock's
			// opposite: drop the connection without logging at error level.
			return sendFailed
		}
		if n == 0 {
			return sendWouldBlock
		}
	}
	return sendDone
}
