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

package senderengine

import (
	"regexp"
	"sync/atomic"

	"github.com/movsoftware/filerelay/internal/multiqueue"
	"github.com/movsoftware/filerelay/internal/xfer"
	"github.com/movsoftware/filerelay/pkg/config"
)

// highPriorityFloor is the threshold above which a work item's 0-100
// priority earns the HIGH subqueue (§4.8: "values above 50 are HIGH; 50
// and below are LOW").
const highPriorityFloor = 50

// peer is one remote receiver this engine dials out to: an identity, the
// addresses it may be reached at, the filter regex selecting which
// intake files belong to it, and a prioritized, unfair multiqueue of
// pending SendItems (HIGH always drains before LOW, since Unfair always
// serves the first-inserted subqueue and HIGH is created first).
type peer struct {
	ident     string
	addresses []string
	filter    *regexp.Regexp

	queue  *multiqueue.Multiqueue[xfer.SendItem]
	highID int64
	lowID  int64

	disconnect atomic.Bool
	version    atomic.Uint32

	// popped delivers items pulled off queue by the peer's single popper
	// goroutine; closed once queue shuts down. Consumed by serveConnection
	// so a reconnect never needs to spawn a fresh blocking popper.
	popped chan poppedItem
}

// poppedItem is one item handed from a peer's popper goroutine to
// whichever connection worker is currently serving that peer.
type poppedItem struct {
	item xfer.SendItem
}

func newPeer(spec config.Peer) (*peer, error) {
	p := &peer{
		ident:     spec.Ident,
		addresses: spec.Addresses,
	}
	if spec.Filter != "" {
		re, err := regexp.Compile(spec.Filter)
		if err != nil {
			return nil, err
		}
		p.filter = re
	}
	p.queue = multiqueue.New[xfer.SendItem](multiqueue.Unfair, func(xfer.SendItem) {})
	p.highID = p.queue.NewSubqueue()
	p.lowID = p.queue.NewSubqueue()
	p.popped = make(chan poppedItem)
	return p, nil
}

// matches reports whether name is routed to this peer; a peer with no
// filter configured matches every file.
func (p *peer) matches(name string) bool {
	return p.filter == nil || p.filter.MatchString(name)
}

// enqueue places item onto the peer's HIGH or LOW subqueue per priority.
func (p *peer) enqueue(item xfer.SendItem, priority int) error {
	id := p.lowID
	if priority > highPriorityFloor {
		id = p.highID
	}
	return p.queue.PushBack(id, item)
}

// requeueLow pushes item back to the head of the LOW subqueue, used on
// LocalFailed/Failed retry (§4.4/§4.8) and on connection-unavailable
// push-back.
func (p *peer) requeueLow(item xfer.SendItem) error {
	return p.queue.PushFront(p.lowID, item)
}
