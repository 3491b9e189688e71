//go:build darwin || freebsd || netbsd || openbsd

package poller

import "golang.org/x/sys/unix"

// kqueuePoller is the BSD/macOS kqueue implementation, used when a
// worker process is run on a non-Linux development host. EV_CLEAR gives
// the edge-triggered behavior the connection loop depends on.
type kqueuePoller struct {
	kq     int
	events []unix.Kevent_t
}

func New() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueuePoller{
		kq:     kq,
		events: make([]unix.Kevent_t, 1024),
	}, nil
}

func (p *kqueuePoller) change(fd int, filter int16, flags uint16) error {
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
	}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func (p *kqueuePoller) AddRead(fd int) error {
	return p.change(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR)
}

func (p *kqueuePoller) AddWrite(fd int) error {
	return p.change(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE|unix.EV_CLEAR)
}

func (p *kqueuePoller) ModifyToRead(fd int) error {
	if err := p.change(fd, unix.EVFILT_WRITE, unix.EV_DELETE); err != nil {
		_ = err
	}
	return p.AddRead(fd)
}

func (p *kqueuePoller) ModifyToWrite(fd int) error {
	if err := p.change(fd, unix.EVFILT_READ, unix.EV_DELETE); err != nil {
		_ = err
	}
	return p.AddWrite(fd)
}

func (p *kqueuePoller) Remove(fd int) error {
	_ = p.change(fd, unix.EVFILT_READ, unix.EV_DELETE)
	_ = p.change(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	return nil
}

func (p *kqueuePoller) Wait(timeoutMillis int) ([]Event, error) {
	var ts *unix.Timespec
	if timeoutMillis >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMillis / 1000),
			Nsec: int64(timeoutMillis%1000) * 1e6,
		}
	}
	n, err := unix.Kevent(p.kq, nil, p.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		out = append(out, Event{
			Fd:       int(ev.Ident),
			Readable: ev.Filter == unix.EVFILT_READ,
			Writable: ev.Filter == unix.EVFILT_WRITE,
			Hangup:   ev.Flags&unix.EV_EOF != 0,
			Err:      ev.Flags&unix.EV_ERROR != 0,
		})
	}
	return out, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}
