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

	"github.com/movsoftware/filerelay/internal/multiqueue"
	"github.com/movsoftware/filerelay/internal/wire"
)

// Group is a named collection of Channels drained as one logical stream
// (§4.2/§4.3.2): every channel opened under the same name — whether from
// one Connection or many, across however many reconnects — shares a
// single Multiqueue, so a reader can fetch the next message without
// caring which underlying socket or channel it arrived on.
//
// The spec's fully generic "a Root may be shared by multiple Groups,
// created on first reference and destroyed on last" lifecycle is
// deliberately simplified here to a single refcount on Root itself
// (see DESIGN.md) — Group does not itself need reference counting
// because a Group's lifetime is exactly its caller's.
type Group struct {
	name string
	root *Root

	order multiqueue.Order
	queue *multiqueue.Multiqueue[*wire.Message]

	mu       sync.RWMutex
	channels map[int32]*Channel

	adopted chan *Channel

	closeOnce sync.Once
}

func newGroup(root *Root, name string, order multiqueue.Order) *Group {
	g := &Group{
		name:     name,
		root:     root,
		order:    order,
		channels: make(map[int32]*Channel),
		adopted:  make(chan *Channel, 16),
	}
	g.queue = multiqueue.New[*wire.Message](order, func(m *wire.Message) { m.Drop() })
	return g
}

// Name returns the group's identifying name, used as the CHANNEL_ANNOUNCE
// payload so the accepting side can route the new channel to the right
// Group.
func (g *Group) Name() string { return g.name }

// Adopted delivers every Channel accepted into this Group from an inbound
// CHANNEL_ANNOUNCE — the way a long-running server-side worker discovers
// new per-peer channels to service without polling Count().
func (g *Group) Adopted() <-chan *Channel {
	return g.adopted
}

// Open creates and announces a new Channel on conn under this Group,
// returning once the peer's CHANNEL_REPLY has completed the handshake or
// the channel/connection dies first.
func (g *Group) Open(conn *Connection) (*Channel, error) {
	localID, err := conn.allocLocalID()
	if err != nil {
		return nil, err
	}

	globalID := g.root.nextGlobalID()
	ch := newChannel(globalID, localID, conn, g, g.root.log)

	g.mu.Lock()
	g.channels[globalID] = ch
	g.mu.Unlock()
	g.root.registerChannel(ch)
	conn.registerChannel(ch)

	if err := ch.announce(g.name); err != nil {
		g.forget(globalID)
		conn.unregisterChannel(localID)
		return nil, err
	}

	select {
	case <-ch.Connected():
	case <-conn.Done():
	}
	return ch, nil
}

// adopt registers a Channel created on the accepting side of a handshake
// (i.e. in response to an inbound CHANNEL_ANNOUNCE).
func (g *Group) adopt(ch *Channel) {
	g.mu.Lock()
	g.channels[ch.globalID] = ch
	g.mu.Unlock()
	g.root.registerChannel(ch)
	ch.markConnected()

	// Block rather than drop under backpressure: this runs on the
	// Connection's single reader goroutine, so a silent drop here means
	// the channel is fully handshaked and registered but nobody ever
	// calls Recv() on it — the transfer it carries never starts. Only
	// bail out if the channel dies before its consumer catches up.
	select {
	case g.adopted <- ch:
	case <-ch.Done():
	}
}

// forget drops a channel from this group's bookkeeping once closed.
func (g *Group) forget(globalID int32) {
	g.mu.Lock()
	delete(g.channels, globalID)
	g.mu.Unlock()
	g.root.unregisterChannel(globalID)
}

// Get blocks for the next inbound application message addressed to any
// channel in this group, fairly or unfairly drained per the Group's
// configured Order.
func (g *Group) Get() (*wire.Message, multiqueue.GetResult) {
	return g.queue.Get()
}

// Count returns the number of channels currently live in this group.
func (g *Group) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.channels)
}

// Close tears down every channel currently in this group and releases
// its reference on Root, which closes Root itself once its last Group is
// gone (§3's multi-root-sharing lifecycle, simplified per DESIGN.md).
// Safe to call more than once; only the first call has an effect.
func (g *Group) Close() {
	g.closeOnce.Do(func() {
		g.teardown()
		g.root.releaseGroup()
	})
}

// teardown tears down every channel currently in this group and shuts
// down its multiqueue, without touching Root's refcount — used by Root
// itself while it is already unwinding every Group at once.
func (g *Group) teardown() {
	g.mu.Lock()
	chans := make([]*Channel, 0, len(g.channels))
	for _, ch := range g.channels {
		chans = append(chans, ch)
	}
	g.mu.Unlock()

	for _, ch := range chans {
		_ = ch.Close()
	}
	g.queue.Shutdown()
}
