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
	"sync"
	"sync/atomic"

	"github.com/movsoftware/filerelay/internal/multiqueue"
	"github.com/movsoftware/filerelay/internal/wire"
	liberr "github.com/movsoftware/filerelay/pkg/errors"
	"github.com/movsoftware/filerelay/pkg/logger"
)

// Channel is one logical, independently-framed stream multiplexed over a
// Connection (§3/§4.3.2). It is created locally (Connecting), becomes
// Connected once the peer answers CHANNEL_REPLY, and transitions once,
// monotonically, to Closed on CHANNEL_KILL or on its owning Connection's
// death.
//
// A Channel never owns its own goroutine: inbound messages are delivered
// by the Connection's reader into the owning Group's Multiqueue, and
// outbound messages are pushed onto the Connection's outboundQueue. The
// Channel itself is the handle a caller blocks on.
type Channel struct {
	globalID   int32 // Root-scoped id, used for Root's dictionaries
	localID    uint16
	subqueueID int64 // this channel's subqueue within its Group's multiqueue

	conn  *Connection
	group *Group
	log   logger.Logger

	state atomic.Int32 // ChannelState

	mu        sync.Mutex
	pendingCh chan struct{} // closed once Connecting -> Connected or Closed
	closedCh  chan struct{} // closed once -> Closed; safe to select on repeatedly
	closeOnce sync.Once

	closeErr error
}

func newChannel(globalID int32, localID uint16, conn *Connection, group *Group, log logger.Logger) *Channel {
	c := &Channel{
		globalID:  globalID,
		localID:   localID,
		conn:      conn,
		group:     group,
		log:       log,
		pendingCh: make(chan struct{}),
		closedCh:  make(chan struct{}),
	}
	c.state.Store(int32(ChannelCreated))
	c.subqueueID = group.queue.NewSubqueue()
	return c
}

// GlobalID returns the Root-scoped identifier used to key Root's
// channel/group dictionaries.
func (c *Channel) GlobalID() int32 { return c.globalID }

// LocalID returns the connection-scoped 16-bit id used on the wire.
func (c *Channel) LocalID() uint16 { return c.localID }

// Connection returns the Connection this channel is multiplexed over —
// used by receiverengine to correlate a freshly-adopted data channel back
// to the control channel's negotiated peer version on the same socket.
func (c *Channel) Connection() *Connection { return c.conn }

// State returns the channel's current lifecycle state.
func (c *Channel) State() ChannelState {
	return ChannelState(c.state.Load())
}

// Done returns a channel closed exactly once, when this Channel reaches
// ChannelClosed — the idiomatic Go substitute for a routed CHANNEL_DIED
// notification (§4.3.6 realization note).
func (c *Channel) Done() <-chan struct{} {
	return c.closedCh
}

// Connected returns a channel closed once the handshake completes
// (CHANNEL_REPLY received) or the channel dies before that happens; check
// State() afterward to distinguish the two outcomes.
func (c *Channel) Connected() <-chan struct{} {
	return c.pendingCh
}

// Err returns the reason the channel closed, if any.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// announce moves the channel to Connecting and queues CHANNEL_ANNOUNCE on
// the control channel; it returns without waiting, and the caller then
// waits on Connected(). It is invoked by the Group right after
// construction.
func (c *Channel) announce(name string) error {
	body := []byte(name)
	msg, err := wire.New(wire.ControlChannel, uint16(CtrlChannelAnnounce), encodeAnnounce(c.localID, body))
	if err != nil {
		return err
	}
	c.state.Store(int32(ChannelConnecting))
	c.conn.sendControl(msg)
	return nil
}

// markConnected transitions either Connecting -> Connected (the
// initiating side, on receipt of the peer's CHANNEL_REPLY) or Created ->
// Connected (the accepting side, immediately on adoption) to Connected,
// waking anyone blocked on Connected(). A second call is a no-op.
func (c *Channel) markConnected() {
	swapped := c.state.CompareAndSwap(int32(ChannelConnecting), int32(ChannelConnected))
	if !swapped {
		swapped = c.state.CompareAndSwap(int32(ChannelCreated), int32(ChannelConnected))
	}
	if swapped {
		close(c.pendingCh)
	}
}

// markClosed performs the one-shot, monotonic transition to Closed,
// removes this channel's subqueue from its Group, and wakes every
// waiter on Done()/Connected().
func (c *Channel) markClosed(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeErr = cause
		c.mu.Unlock()

		c.state.Store(int32(ChannelClosed))
		c.group.queue.RemoveSubqueue(c.subqueueID)
		c.group.forget(c.globalID)

		select {
		case <-c.pendingCh:
		default:
			close(c.pendingCh)
		}
		close(c.closedCh)

		if c.log != nil {
			fields := logger.Fields{"channel": c.globalID, "local_id": c.localID}
			if cause != nil {
				c.log.WithFields(fields).Warning("channel closed", cause, nil)
			} else {
				c.log.WithFields(fields).Debug("channel closed", nil, nil)
			}
		}
	})
}

// Send enqueues an application message for delivery on this channel. It
// rewrites the header's Channel field to this channel's LocalID so
// callers never have to thread wire ids through application code.
func (c *Channel) Send(typ uint16, segments [][]byte) error {
	return c.SendWithDrop(typ, segments, nil)
}

// SendWithDrop is Send, but onDrop is attached to the message before it is
// enqueued and invoked once the writer is done with it — either after the
// write completes or fails, or immediately if the queue is torn down
// before the message is ever popped. Callers holding a reference (e.g. a
// memory-mapped file segment) that must outlive the non-blocking enqueue
// call should acquire it before calling this and release it in onDrop,
// rather than around the enqueue alone.
func (c *Channel) SendWithDrop(typ uint16, segments [][]byte, onDrop func()) error {
	if c.State() != ChannelConnected {
		return liberr.New(liberr.KindClosed, liberr.MinPkgTransport+10, "channel is not connected")
	}
	msg, err := wire.NewScatter(c.localID, typ, segments)
	if err != nil {
		return err
	}
	msg.OnDrop = onDrop
	return c.conn.enqueue(msg)
}

// Recv blocks for the next inbound application message addressed to this
// channel specifically (via Multiqueue.GetOne, so it never steals a
// message destined for a sibling channel in the same Group).
func (c *Channel) Recv() (*wire.Message, error) {
	v, res := c.group.queue.GetOne(c.subqueueID)
	switch res {
	case multiqueue.GetOK:
		return v, nil
	case multiqueue.GetShutdown:
		return nil, liberr.New(liberr.KindClosed, liberr.MinPkgTransport+11, "channel group shut down")
	case multiqueue.GetRemoved:
		return nil, liberr.New(liberr.KindClosed, liberr.MinPkgTransport+13, "channel closed")
	default:
		return nil, liberr.New(liberr.KindGeneric, liberr.MinPkgTransport+12, "receive disabled on channel group")
	}
}

// Close sends CHANNEL_KILL to the peer (best-effort) and transitions this
// channel to Closed locally.
func (c *Channel) Close() error {
	if c.State() == ChannelClosed {
		return nil
	}
	msg, err := wire.New(wire.ControlChannel, uint16(CtrlChannelKill), encodeKill(c.localID))
	if err == nil {
		c.conn.sendControl(msg)
	}
	c.markClosed(nil)
	return nil
}

func encodeAnnounce(localID uint16, name []byte) []byte {
	buf := make([]byte, 2+len(name))
	buf[0] = byte(localID >> 8)
	buf[1] = byte(localID)
	copy(buf[2:], name)
	return buf
}

func encodeKill(localID uint16) []byte {
	return []byte{byte(localID >> 8), byte(localID)}
}
