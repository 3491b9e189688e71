//go:build darwin || freebsd || netbsd || openbsd

package workerloop

import "golang.org/x/sys/unix"

func setKeepaliveTimers(fd, idleSecs, intervalSecs, probes int) {
	// macOS/BSD expose the idle-before-first-probe knob as TCP_KEEPALIVE;
	// per-probe interval/count tuning is not portably available.
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPALIVE, idleSecs)
}
