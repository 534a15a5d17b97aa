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

	"github.com/movsoftware/filerelay/internal/dictionary"
	"github.com/movsoftware/filerelay/internal/multiqueue"
	"github.com/movsoftware/filerelay/pkg/logger"
)

// Root is the process-wide registry of every live Connection, Channel and
// Group (§3 "Root: next-channel counter, channel->channel map,
// channel->group map"). It owns the global id space used to key its own
// ordered dictionaries — distinct from the 16-bit wire-local id a Channel
// uses for framing (see DESIGN.md for why the two are kept separate).
//
// NEW_CONNECTION / CHANNEL_DIED, which the spec describes as in-process-
// only notifications, are realized here as plain Go channels (Accepted(),
// Channel.Done(), Connection.Done()) rather than as routed control
// messages — the idiomatic substitute for an event bus that never leaves
// the process.
type Root struct {
	log logger.Logger

	counter atomic.Int32

	channels *dictionary.Dictionary[*Channel]

	groupsMu sync.Mutex
	groups   map[string]*Group

	refCount atomic.Int32

	accepted chan *Connection

	onIncomingChannel func(conn *Connection, localID uint16, name string) *Channel

	closedCh  chan struct{}
	closeOnce sync.Once
}

// NewRoot constructs an empty Root. log may be nil.
func NewRoot(log logger.Logger) *Root {
	r := &Root{
		log:      log,
		channels: dictionary.New[*Channel](),
		groups:   make(map[string]*Group),
		accepted: make(chan *Connection, 16),
		closedCh: make(chan struct{}),
	}
	r.onIncomingChannel = r.acceptIncomingChannel
	return r
}

func (r *Root) nextGlobalID() int32 {
	return r.counter.Add(1)
}

func (r *Root) registerChannel(ch *Channel) {
	r.channels.Put(ch.globalID, ch)
}

func (r *Root) unregisterChannel(globalID int32) {
	r.channels.Delete(globalID)
}

// Group returns the named Group, creating it (with the given drain
// order) on first reference. Every subsequent call for the same name
// returns the same Group regardless of order — the order only takes
// effect at creation time.
func (r *Root) Group(name string, order multiqueue.Order) *Group {
	r.groupsMu.Lock()
	defer r.groupsMu.Unlock()

	if g, ok := r.groups[name]; ok {
		return g
	}
	r.refCount.Add(1)
	g := newGroup(r, name, order)
	r.groups[name] = g
	return g
}

// acceptIncomingChannel is the default onIncomingChannel handler: it
// routes an inbound CHANNEL_ANNOUNCE to the named Group (creating it,
// fair-ordered, if this is the first channel ever announced under that
// name) and adopts the resulting Channel into both the Group and Root.
func (r *Root) acceptIncomingChannel(conn *Connection, localID uint16, name string) *Channel {
	g := r.Group(name, multiqueue.Fair)
	globalID := r.nextGlobalID()
	ch := newChannel(globalID, localID, conn, g, r.log)
	g.adopt(ch)
	return ch
}

// Accepted delivers newly-accepted inbound Connections — the in-process
// substitute for a routed NEW_CONNECTION notification.
func (r *Root) Accepted() <-chan *Connection {
	return r.accepted
}

func (r *Root) notifyAccepted(conn *Connection) {
	select {
	case r.accepted <- conn:
	case <-r.closedCh:
	}
}

// Done reports whether the Root itself has been closed (every Group's
// refcount dropped to zero, or Close was called directly).
func (r *Root) Done() <-chan struct{} {
	return r.closedCh
}

// Close tears down every Group (and transitively every Channel) known to
// this Root.
func (r *Root) Close() {
	r.closeOnce.Do(func() {
		r.groupsMu.Lock()
		groups := make([]*Group, 0, len(r.groups))
		for _, g := range r.groups {
			groups = append(groups, g)
		}
		r.groupsMu.Unlock()

		for _, g := range groups {
			g.closeOnce.Do(g.teardown)
		}
		close(r.closedCh)
	})
}

// releaseGroup decrements Root's simplified group refcount; once it
// reaches zero the Root closes itself (see the simplification note on
// Group above and in DESIGN.md).
func (r *Root) releaseGroup() {
	if r.refCount.Add(-1) <= 0 {
		r.Close()
	}
}
