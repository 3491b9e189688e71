package workerloop

// handleWritable resumes a suspended response. Once it finishes, the
// connection either goes back to read-readiness for the next request
// (draining any pipelined bytes already sitting in the buffer first) or,
// if the response demanded close, is torn down.
func (l *Loop) handleWritable(c *connection) {
	p := c.pending
	if p == nil {
		l.closeConnection(c.fd, "writable with no pending response")
		return
	}

	switch resume(c.fd, p) {
	case sendWouldBlock:
		return
	case sendFailed:
		p.release()
		l.closeConnection(c.fd, "send failed")
		return
	}

	keepAlive := p.keepAliveAfter
	p.release()
	c.pending = nil

	if !keepAlive {
		l.closeConnection(c.fd, "no keep-alive")
		return
	}

	c.state = stateReading
	if err := l.poller.ModifyToRead(c.fd); err != nil {
		l.closeConnection(c.fd, "modify-to-read failed")
		return
	}

	if c.filled > 0 {
		l.processBuffered(c)
	}
}
