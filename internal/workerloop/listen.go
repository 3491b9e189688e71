package workerloop

import (
	"golang.org/x/sys/unix"
)

// Listen creates a non-blocking TCP listening socket bound to port with
// SO_REUSEPORT set, so every worker process can bind the same port
// independently and let the kernel distribute accepts across them —
// the "each independently binds with the equivalent of port reuse"
// option the design notes sanction as equivalent to descriptor
// inheritance. SO_REUSEADDR and a best-effort congestion-control
// selection are applied the way the original listener setup did;
// neither failing is fatal.
func Listen(port int, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM, 0)
	if err != nil {
		fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
		if err != nil {
			return -1, err
		}
		return bindListen(fd, port, backlog, false)
	}
	return bindListen(fd, port, backlog, true)
}

func bindListen(fd, port, backlog int, v6 bool) (int, error) {
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	// Best-effort congestion control; not every kernel build exposes bbr.
	_ = unix.SetsockoptString(fd, unix.IPPROTO_TCP, unix.TCP_CONGESTION, "bbr")

	if v6 {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
		addr := &unix.SockaddrInet6{Port: port}
		if err := unix.Bind(fd, addr); err != nil {
			unix.Close(fd)
			return -1, err
		}
	} else {
		addr := &unix.SockaddrInet4{Port: port}
		if err := unix.Bind(fd, addr); err != nil {
			unix.Close(fd)
			return -1, err
		}
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}

	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, err
	}

	return fd, nil
}
