package workerloop

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/latchpoint/edgeward/internal/httpproto"
)

// connState tracks what a connection's socket is currently registered for.
type connState int

const (
	stateReading connState = iota
	stateWriting
)

// connection is the per-socket state the loop tracks: a pooled read
// buffer with a fill offset, keep-alive and timing fields, and at most
// one suspended response pending writable readiness.
type connection struct {
	fd      int
	peerIP  string
	connID  string
	state   connState

	buf    []byte // pooled, fixed capacity
	filled int    // bytes currently held, awaiting a full request

	startedAt    time.Time
	lastActivity time.Time
	bytesTotal   int64

	keepAlive bool

	pending *pendingResponse
}

// pendingResponse is the tagged variant described in the design notes:
// the three body sources plus the cursor needed to resume a short write.
type pendingResponse struct {
	head       []byte
	headSent   int

	bodyMemory []byte
	bodySent   int

	bodyFile    *os.File
	fileOffset  int64
	fileSent    int64
	fileLength  int64

	bodyCache []byte // alias of head+body already combined (BodyCache)
	isCache   bool

	keepAliveAfter bool
}

func newConnection(fd int, peerIP string, buf []byte) *connection {
	now := time.Now()
	return &connection{
		fd:           fd,
		peerIP:       peerIP,
		connID:       uuid.NewString(),
		state:        stateReading,
		buf:          buf,
		startedAt:    now,
		lastActivity: now,
		keepAlive:    true,
	}
}

// resetForNextRequest drops per-exchange state while keeping the
// connection and its buffer alive for the next pipelined/keep-alive request.
func (c *connection) resetForNextRequest() {
	c.pending = nil
}

func newPendingFromResponse(resp *httpproto.Response) *pendingResponse {
	p := &pendingResponse{keepAliveAfter: resp.KeepAlive}

	if resp.BodyKind == httpproto.BodyCache {
		p.isCache = true
		p.bodyCache = resp.CacheBody
		return p
	}

	p.head = httpproto.RenderHead(resp)

	switch resp.BodyKind {
	case httpproto.BodyMemory:
		p.bodyMemory = resp.MemoryBody
	case httpproto.BodyFile:
		p.bodyFile = resp.FileHandle
		p.fileOffset = resp.FileOffset
		p.fileLength = resp.FileLength
	}
	return p
}

func (p *pendingResponse) done() bool {
	if p.isCache {
		return p.headSent >= len(p.bodyCache)
	}
	if p.headSent < len(p.head) {
		return false
	}
	if p.bodyFile != nil {
		return p.fileSent >= p.fileLength
	}
	return p.bodySent >= len(p.bodyMemory)
}

func (p *pendingResponse) release() {
	if p.bodyFile != nil {
		p.bodyFile.Close()
		p.bodyFile = nil
	}
}
