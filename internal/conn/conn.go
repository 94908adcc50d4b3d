// ABOUTME: TCP client connection with reader task and request/response correlation
// ABOUTME: One session: writer mutex, PendingRequest registry, reconnect-friendly stop
package conn

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-go/internal/errs"
	"github.com/Resonate-Protocol/resonate-go/internal/wire"
)

// Receiver is notified of messages that are not replies to an
// outstanding request, and of fatal errors from the reader task.
type Receiver interface {
	OnMessage(h wire.Header, body []byte)
	OnException(err error)
}

// maxTimeoutSum is the cumulative unanswered-request duration after
// which the link is treated as dead, per spec.md §4.C/§5.
const maxTimeoutSum = 10 * time.Second

// pendingRequest is shared between the caller that issued SendRequest
// and the reader goroutine that may fulfill it.
type pendingRequest struct {
	id    uint16
	reply chan wire.Frame
}

// Conn is one TCP session with a Resonate-protocol server.
type Conn struct {
	receiver Receiver

	writeMu sync.Mutex // serializes writer access; never held across pendingMu
	nc      net.Conn

	active atomic.Bool

	pendingMu sync.Mutex
	pending   map[uint16]*pendingRequest
	nextID    uint16

	sumMu      sync.Mutex
	sumTimeout time.Duration

	readerDone chan struct{}
	stopOnce   sync.Once
}

// New creates a Conn that routes unsolicited messages and fatal
// errors to receiver.
func New(receiver Receiver) *Conn {
	return &Conn{
		receiver: receiver,
		pending:  make(map[uint16]*pendingRequest),
		nextID:   1,
	}
}

// Start resolves host:port, connects, and spawns the reader task.
func (c *Conn) Start(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	nc, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return errs.New(errs.KindNetwork, "conn.Start", err)
	}

	c.nc = nc
	c.active.Store(true)
	c.readerDone = make(chan struct{})
	c.stopOnce = sync.Once{}

	go c.reader()
	return nil
}

// Stop signals inactive, shuts the socket down in both directions,
// and joins the reader. Idempotent.
func (c *Conn) Stop() {
	c.stopOnce.Do(func() {
		c.active.Store(false)
		if c.nc != nil {
			_ = c.nc.Close()
		}
	})
	if c.readerDone != nil {
		<-c.readerDone
	}
	c.failAllPending()
}

// Active reports whether the connection believes it is usable.
func (c *Conn) Active() bool { return c.active.Load() }

// Send stamps and writes one message. At most one writer is in
// flight at a time.
func (c *Conn) Send(typ wire.Type, body []byte) error {
	if !c.active.Load() {
		return errs.New(errs.KindNetwork, "conn.Send", fmt.Errorf("connection not active"))
	}
	h := wire.NewHeader(typ, 0, 0, len(body))

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := wire.WriteFrame(c.nc, h, body); err != nil {
		return errs.New(errs.KindNetwork, "conn.Send", err)
	}
	return nil
}

// SendRequest assigns the next request id, registers a pending slot,
// sends the message, and waits up to timeout for a reply whose
// RefersTo matches. It returns (nil, nil) on a per-call timeout short
// of the cumulative limit, and a Timeout error once sumTimeout
// exceeds 10s of contiguous unanswered requests.
func (c *Conn) SendRequest(typ wire.Type, body []byte, timeout time.Duration) (*wire.Frame, error) {
	if !c.active.Load() {
		return nil, errs.New(errs.KindNetwork, "conn.SendRequest", fmt.Errorf("connection not active"))
	}

	id := c.nextRequestID()
	req := &pendingRequest{id: id, reply: make(chan wire.Frame, 1)}

	c.pendingMu.Lock()
	c.pending[id] = req
	c.pendingMu.Unlock()

	h := wire.NewHeader(typ, id, 0, len(body))

	c.writeMu.Lock()
	err := wire.WriteFrame(c.nc, h, body)
	c.writeMu.Unlock()

	if err != nil {
		c.removePending(id)
		return nil, errs.New(errs.KindNetwork, "conn.SendRequest", err)
	}

	select {
	case frame := <-req.reply:
		c.resetSumTimeout()
		return &frame, nil
	case <-time.After(timeout):
		c.removePending(id)
		return nil, c.accumulateTimeout(timeout)
	}
}

// accumulateTimeout adds d to the running cumulative timeout and, once
// it exceeds maxTimeoutSum, returns a fatal Timeout error; otherwise
// it returns nil so the caller reports a plain per-call timeout.
func (c *Conn) accumulateTimeout(d time.Duration) error {
	c.sumMu.Lock()
	defer c.sumMu.Unlock()
	c.sumTimeout += d
	if c.sumTimeout > maxTimeoutSum {
		return errs.New(errs.KindTimeout, "conn.SendRequest", fmt.Errorf("no reply for %v", c.sumTimeout))
	}
	return nil
}

func (c *Conn) resetSumTimeout() {
	c.sumMu.Lock()
	c.sumTimeout = 0
	c.sumMu.Unlock()
}

func (c *Conn) nextRequestID() uint16 {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	id := c.nextID
	c.nextID++
	if c.nextID > 9999 {
		c.nextID = 1
	}
	return id
}

func (c *Conn) removePending(id uint16) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *Conn) failAllPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, req := range c.pending {
		close(req.reply)
		delete(c.pending, id)
	}
}

// reader runs for the lifetime of the connection: read header, read
// body, stamp Received, dispatch to a pending request or the
// receiver. It never panics — every error routes to OnException.
func (c *Conn) reader() {
	defer close(c.readerDone)

	for c.active.Load() {
		frame, err := wire.ReadFrame(c.nc)
		if err != nil {
			if c.active.Load() {
				c.receiver.OnException(errs.New(errs.KindNetwork, "conn.reader", err))
			}
			c.active.Store(false)
			return
		}

		if frame.Header.RefersTo != 0 {
			c.pendingMu.Lock()
			req, ok := c.pending[frame.Header.RefersTo]
			if ok {
				delete(c.pending, frame.Header.RefersTo)
			}
			c.pendingMu.Unlock()

			if ok {
				req.reply <- frame
				continue
			}
		}

		c.receiver.OnMessage(frame.Header, frame.Body)
	}
}
