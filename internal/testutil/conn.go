package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nocturn-hq/concierge-widget/internal/transport"
)

// ErrDialRefused is returned by FakeDialer when no connection is queued.
var ErrDialRefused = errors.New("dial refused")

// FakeConn is an in-memory duplex connection. Frames pushed with Push are
// read in order; ServerClose ends the read side with the given error.
type FakeConn struct {
	inbound chan []byte
	closed  chan struct{}

	mu        sync.Mutex
	written   [][]byte
	writeErr  error
	serverErr error
	closeOnce sync.Once
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (c *FakeConn) Push(frame string) {
	c.inbound <- []byte(frame)
}

// ServerClose makes ReadMessage return err, as if the server went away.
func (c *FakeConn) ServerClose(err error) {
	c.mu.Lock()
	c.serverErr = err
	c.mu.Unlock()
	_ = c.Close()
}

// FailWrites makes every later WriteMessage return err.
func (c *FakeConn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *FakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return websocket.TextMessage, data, nil
	case <-c.closed:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.serverErr != nil {
			return 0, nil, c.serverErr
		}
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (c *FakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	default:
	}
	if messageType == websocket.TextMessage {
		c.written = append(c.written, append([]byte(nil), data...))
	}
	return nil
}

func (c *FakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Written returns the text frames written so far.
func (c *FakeConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func (c *FakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// FakeDialer hands out queued connections in order and refuses once the
// queue is empty.
type FakeDialer struct {
	mu      sync.Mutex
	queue   []*FakeConn
	targets []string
}

func NewFakeDialer(conns ...*FakeConn) *FakeDialer {
	return &FakeDialer{queue: conns}
}

func (d *FakeDialer) Queue(conn *FakeConn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, conn)
}

func (d *FakeDialer) Dial(ctx context.Context, target string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets = append(d.targets, target)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(d.queue) == 0 {
		return nil, ErrDialRefused
	}
	conn := d.queue[0]
	d.queue = d.queue[1:]
	return conn, nil
}

func (d *FakeDialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.targets)
}

func (d *FakeDialer) Targets() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.targets...)
}
