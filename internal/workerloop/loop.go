// Package workerloop implements the per-process readiness loop: accept
// batching through the rate limiter, non-blocking read/parse/dispatch,
// partial-write suspension, keep-alive reuse, and timeout-driven
// eviction. Exactly one Loop runs per worker process, single-threaded,
// with no shared mutable state against any other worker.
package workerloop

import (
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/latchpoint/edgeward/internal/bufpool"
	"github.com/latchpoint/edgeward/internal/httpproto"
	"github.com/latchpoint/edgeward/internal/poller"
	"github.com/latchpoint/edgeward/internal/ratelimit"
	"github.com/latchpoint/edgeward/internal/stats"
)

const (
	acceptBatchCap    = 2000
	sweepInterval      = 1 * time.Second
	slowThreshold      = 10 * time.Second
	slowByteThreshold  = 4
	emergencyEvictions = 10
	emergencyIdleAge    = 5 * time.Second
)

// AccessLogFunc is invoked once per completed exchange.
type AccessLogFunc func(connID, peerIP, method, path string, status int, bytes int64, dur time.Duration, cacheHit bool)

// Config wires a Loop's dependencies.
type Config struct {
	ListenFD        int
	BufPool         *bufpool.Pool
	Limiter         *ratelimit.Limiter
	Handler         *httpproto.Handler
	MaxConnections  int
	IdleTimeout     time.Duration
	Logger          zerolog.Logger
	AccessLog       AccessLogFunc
	WorkerID        int
	StatsRegistry   *stats.Registry
}

func (c *Config) workerIDLabel() string { return strconv.Itoa(c.WorkerID) }

// Loop is one worker process's single-threaded event loop.
type Loop struct {
	cfg    Config
	poller poller.Poller
	conns  map[int]*connection

	shuttingDown bool
	done         chan struct{}
}

// New constructs a Loop bound to an already-listening, non-blocking socket.
func New(cfg Config) (*Loop, error) {
	p, err := poller.New()
	if err != nil {
		return nil, err
	}
	if err := p.AddRead(cfg.ListenFD); err != nil {
		p.Close()
		return nil, err
	}
	return &Loop{
		cfg:    cfg,
		poller: p,
		conns:  make(map[int]*connection, cfg.MaxConnections),
		done:   make(chan struct{}),
	}, nil
}

// Shutdown requests the loop stop accepting and drain; Run returns once
// all connections have closed or the caller's deadline (enforced by the
// supervisor, not here) expires.
func (l *Loop) Shutdown() {
	l.shuttingDown = true
}

// Run blocks, servicing readiness events until Shutdown is called and
// every connection has drained.
func (l *Loop) Run() error {
	defer l.poller.Close()

	lastSweep := time.Now()
	idleCycles := 0

	for {
		if l.shuttingDown && len(l.conns) == 0 {
			close(l.done)
			return nil
		}

		events, err := l.poller.Wait(1000)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			idleCycles++
			backoffIdle(idleCycles)
		} else {
			idleCycles = 0
		}

		for _, ev := range events {
			if ev.Fd == l.cfg.ListenFD {
				if !l.shuttingDown {
					l.acceptLoop()
				}
				continue
			}
			l.handleEvent(ev)
		}

		if time.Since(lastSweep) >= sweepInterval {
			l.sweepConnections()
			lastSweep = time.Now()
		}
	}
}

// backoffIdle mirrors the original worker's idle-cycle backoff tiers: a
// lightly loaded worker sleeps progressively longer instead of busy-polling.
func backoffIdle(cycles int) {
	switch {
	case cycles < 4:
		return
	case cycles < 20:
		time.Sleep(2 * time.Millisecond)
	default:
		time.Sleep(10 * time.Millisecond)
	}
}

func (l *Loop) acceptLoop() {
	accepted := 0
	for accepted < acceptBatchCap {
		nfd, sa, err := unix.Accept4(l.cfg.ListenFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			if err == unix.EMFILE || err == unix.ENFILE {
				if l.emergencyEvict() > 0 {
					continue
				}
				return
			}
			l.cfg.Logger.Debug().Err(err).Msg("accept error")
			return
		}
		accepted++

		peerIP := peerIPFromSockaddr(sa)

		verdict := l.cfg.Limiter.Admit(peerIP, time.Now())
		if verdict != ratelimit.Admitted {
			l.cfg.Logger.Debug().Str("peer", peerIP).Str("verdict", verdict.String()).Msg("connection denied")
			unix.Close(nfd)
			continue
		}

		if len(l.conns) >= l.cfg.MaxConnections {
			l.cfg.Limiter.Release(peerIP)
			unix.Close(nfd)
			continue
		}

		tuneSocket(nfd)

		buf, perr := l.cfg.BufPool.Acquire()
		if perr != nil {
			l.cfg.Limiter.Release(peerIP)
			unix.Close(nfd)
			continue
		}

		if err := l.poller.AddRead(nfd); err != nil {
			l.cfg.BufPool.Release(buf)
			l.cfg.Limiter.Release(peerIP)
			unix.Close(nfd)
			continue
		}

		l.conns[nfd] = newConnection(nfd, peerIP, buf)
		if l.cfg.StatsRegistry != nil {
			l.cfg.StatsRegistry.Connections.WithLabelValues(l.cfg.workerIDLabel()).Inc()
		}
	}
}

func tuneSocket(fd int) {
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, 65536)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, 65536)
	setKeepaliveTimers(fd, 60, 10, 6)
}

func peerIPFromSockaddr(sa unix.Sockaddr) string {
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(addr.Addr[:]).String()
	case *unix.SockaddrInet6:
		return net.IP(addr.Addr[:]).String()
	default:
		return "unknown"
	}
}

func (l *Loop) emergencyEvict() int {
	now := time.Now()
	evicted := 0
	for fd, c := range l.conns {
		if evicted >= emergencyEvictions {
			break
		}
		if now.Sub(c.lastActivity) > emergencyIdleAge {
			l.closeConnection(fd, "emergency eviction under fd pressure")
			evicted++
		}
	}
	if evicted == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	return evicted
}

func (l *Loop) handleEvent(ev poller.Event) {
	c, ok := l.conns[ev.Fd]
	if !ok {
		return
	}

	if ev.Hangup || ev.Err {
		l.closeConnection(ev.Fd, "hangup")
		return
	}

	c.lastActivity = time.Now()

	if ev.Writable && c.state == stateWriting {
		l.handleWritable(c)
		return
	}
	if ev.Readable {
		l.handleReadable(c)
	}
}

func (l *Loop) sweepConnections() {
	now := time.Now()
	for fd, c := range l.conns {
		if c.bytesTotal > 0 && c.bytesTotal < slowByteThreshold && now.Sub(c.startedAt) >= slowThreshold {
			l.closeConnection(fd, "slow client")
			continue
		}
		if now.Sub(c.lastActivity) >= l.cfg.IdleTimeout {
			l.closeConnection(fd, "idle timeout")
		}
	}
}

func (l *Loop) closeConnection(fd int, reason string) {
	c, ok := l.conns[fd]
	if !ok {
		return
	}
	delete(l.conns, fd)

	l.poller.Remove(fd)
	unix.Close(fd)

	if c.pending != nil {
		c.pending.release()
	}
	l.cfg.BufPool.Release(c.buf)
	l.cfg.Limiter.Release(c.peerIP)
	if l.cfg.StatsRegistry != nil {
		l.cfg.StatsRegistry.Connections.WithLabelValues(l.cfg.workerIDLabel()).Dec()
	}

	l.cfg.Logger.Debug().Str("conn", c.connID).Str("peer", c.peerIP).Str("reason", reason).Msg("connection closed")
}
