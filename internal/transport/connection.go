/*
 * MIT License
 *
 * Copyright (c) 2026 movsoftware contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package transport

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/movsoftware/filerelay/internal/wire"
	liberr "github.com/movsoftware/filerelay/pkg/errors"
	"github.com/movsoftware/filerelay/pkg/logger"
)

// Connection wraps one accepted or dialed socket (TCP or TLS) and
// multiplexes every Channel announced over it (§4.3). Exactly one reader
// goroutine and one writer goroutine are started per Connection; all
// other access goes through the thread-safe methods below.
type Connection struct {
	conn net.Conn
	kind Kind

	root *Root
	log  logger.Logger

	keepaliveSeconds int32
	lastActivity     atomic.Int64 // unix seconds of the last byte received, updated by the reader

	out *outboundQueue

	idsMu sync.Mutex
	ids   *bitset.BitSet // allocated local channel ids (0..65534; 65535 reserved)

	channelsMu sync.RWMutex
	channels   map[uint16]*Channel // localID -> Channel, this connection only

	closedCh  chan struct{}
	closeOnce sync.Once
	closeErr  error

	wg sync.WaitGroup
}

func newConnection(conn net.Conn, kind Kind, root *Root, keepaliveSeconds int32, log logger.Logger) *Connection {
	c := &Connection{
		conn:             conn,
		kind:             kind,
		root:             root,
		log:              log,
		keepaliveSeconds: keepaliveSeconds,
		out:              newOutboundQueue(),
		ids:              bitset.New(uint(wire.ControlChannel)),
		channels:         make(map[uint16]*Channel),
		closedCh:         make(chan struct{}),
	}
	c.lastActivity.Store(time.Now().Unix())
	return c
}

// start launches the reader and writer worker goroutines (§4.3.3/§4.3.4).
func (c *Connection) start() {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.readLoop()
	}()
	go func() {
		defer c.wg.Done()
		c.writeLoop()
	}()
}

// stagnantAfter returns how long a connection may go without receiving a
// byte before it is considered dead (§4.3.3): twice the keepalive, or
// defaultStagnantSeconds when keepalive is 0.
func (c *Connection) stagnantAfter() time.Duration {
	if c.keepaliveSeconds <= 0 {
		return defaultStagnantSeconds * time.Second
	}
	return 2 * time.Duration(c.keepaliveSeconds) * time.Second
}

func (c *Connection) touch() {
	c.lastActivity.Store(time.Now().Unix())
}

func (c *Connection) idleFor() time.Duration {
	last := c.lastActivity.Load()
	return time.Since(time.Unix(last, 0))
}

// allocLocalID reserves the lowest free 16-bit id below the reserved
// control channel value.
func (c *Connection) allocLocalID() (uint16, error) {
	c.idsMu.Lock()
	defer c.idsMu.Unlock()

	for i := uint(0); i < uint(wire.ControlChannel); i++ {
		if !c.ids.Test(i) {
			c.ids.Set(i)
			return uint16(i), nil
		}
	}
	return 0, liberr.New(liberr.KindGeneric, liberr.MinPkgTransport+1, "no free local channel ids")
}

func (c *Connection) freeLocalID(id uint16) {
	c.idsMu.Lock()
	defer c.idsMu.Unlock()
	c.ids.Clear(uint(id))
}

func (c *Connection) registerChannel(ch *Channel) {
	c.channelsMu.Lock()
	defer c.channelsMu.Unlock()
	c.channels[ch.localID] = ch
}

func (c *Connection) unregisterChannel(localID uint16) {
	c.channelsMu.Lock()
	ch, ok := c.channels[localID]
	delete(c.channels, localID)
	c.channelsMu.Unlock()
	if ok {
		c.freeLocalID(localID)
		_ = ch
	}
}

func (c *Connection) lookupChannel(localID uint16) (*Channel, bool) {
	c.channelsMu.RLock()
	defer c.channelsMu.RUnlock()
	ch, ok := c.channels[localID]
	return ch, ok
}

// enqueue pushes an application message to the tail of the outbound
// queue.
func (c *Connection) enqueue(msg *wire.Message) error {
	select {
	case <-c.closedCh:
		return liberr.New(liberr.KindClosed, liberr.MinPkgTransport+2, "connection is closed")
	default:
	}
	// The select above only checked closedCh; the queue can still close in
	// the gap before PushBack runs (Close closes c.out before closedCh), so
	// PushBack's own return value — not the select — is what's authoritative.
	if !c.out.PushBack(msg) {
		return liberr.New(liberr.KindClosed, liberr.MinPkgTransport+2, "connection is closed")
	}
	return nil
}

// sendControl pushes a system control message to the head of the
// outbound queue, bounding its latency behind any in-flight application
// traffic (§5). The message is simply dropped if the connection has
// already closed, matching the best-effort nature of its callers (e.g.
// Channel.Close's CHANNEL_KILL).
func (c *Connection) sendControl(msg *wire.Message) {
	c.out.PushFront(msg)
}

// Close stops accepting new outbound work, drops whatever is still queued
// (running each message's destructor, without writing it), then tears
// down the socket and every Channel still open on it.
func (c *Connection) Close(cause error) {
	c.closeOnce.Do(func() {
		c.closeErr = cause
		c.out.Close()
		_ = c.conn.SetDeadline(time.Now())
		_ = c.conn.Close()
		close(c.closedCh)

		c.channelsMu.Lock()
		chans := make([]*Channel, 0, len(c.channels))
		for _, ch := range c.channels {
			chans = append(chans, ch)
		}
		c.channelsMu.Unlock()

		for _, ch := range chans {
			ch.markClosed(cause)
		}

		if c.log != nil {
			if cause != nil {
				c.log.Warning("connection closed", cause, nil)
			} else {
				c.log.Debug("connection closed", nil, nil)
			}
		}
	})
}

// Done reports the connection's terminal closed state (the in-process
// substitute for a routed CHANNEL_DIED broadcast, §4.3.6).
func (c *Connection) Done() <-chan struct{} {
	return c.closedCh
}

// Wait blocks until both worker goroutines have exited.
func (c *Connection) Wait() {
	c.wg.Wait()
}
