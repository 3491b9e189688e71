// Package sendfile wraps the zero-copy file-to-socket transfer syscall
// with the resumable-offset contract the connection loop needs: EAGAIN
// (or a zero-byte send) returns WouldBlock with the offset already
// advanced, so a later writable wakeup can resume exactly where the last
// attempt left off instead of re-sending bytes. A short write returns
// the count sent and a nil error; the caller calls again for the rest.
package sendfile

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock signals the socket isn't ready for more bytes right now.
var ErrWouldBlock = errors.New("sendfile: would block")

// Send transfers up to remaining bytes from fileFd to connFd starting at
// *offset, advancing *offset by however much was actually sent. It
// returns the number of bytes sent this call and either nil, ErrWouldBlock,
// or a hard I/O error.
func Send(connFd, fileFd int, offset *int64, remaining int) (int, error) {
	if remaining <= 0 {
		return 0, nil
	}

	const chunk = 1 << 20 // 1 MiB per call
	want := remaining
	if want > chunk {
		want = chunk
	}

	n, err := unix.Sendfile(connFd, fileFd, offset, want)
	if n > 0 {
		// Linux's Sendfile already advances *offset; callers on platforms
		// where it doesn't must add n themselves. golang.org/x/sys/unix's
		// Linux implementation advances offset in place, which is what we
		// rely on here.
	}
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return n, ErrWouldBlock
		}
		return n, err
	}
	if n == 0 && remaining > 0 {
		return 0, ErrWouldBlock
	}
	return n, nil
}
