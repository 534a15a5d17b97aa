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
	"time"

	"github.com/movsoftware/filerelay/internal/wire"
)

// outboundQueue is the per-connection deque of messages awaiting write
// (§3 Connection: "outbound deque of messages awaiting write"). It has
// its own synchronization, independent of the root mutex (§5). Control
// messages are pushed to the front to bound their latency (§5 "control
// messages are pushed to the front").
type outboundQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*wire.Message
	closed bool
}

func newOutboundQueue() *outboundQueue {
	q := &outboundQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// PushBack enqueues an application message at the tail. It reports false,
// and drops m itself, if the queue was already closed — closing the gap
// between a caller's own "is this still open" check and the push, which
// would otherwise let Close's drain pass over m before it ever lands in
// q.items and silently lose it without ever invoking m.Drop().
func (q *outboundQueue) PushBack(m *wire.Message) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		m.Drop()
		return false
	}
	q.items = append(q.items, m)
	q.cond.Broadcast()
	q.mu.Unlock()
	return true
}

// PushFront enqueues a control/priority message at the head. See PushBack
// for the closed-queue behavior.
func (q *outboundQueue) PushFront(m *wire.Message) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		m.Drop()
		return false
	}
	q.items = append([]*wire.Message{m}, q.items...)
	q.cond.Broadcast()
	q.mu.Unlock()
	return true
}

// Pop waits up to timeout for an item. ok is false on timeout; closed is
// true once the queue has been torn down and drained.
func (q *outboundQueue) Pop(timeout time.Duration) (m *wire.Message, ok bool, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for len(q.items) == 0 && !q.closed {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false, false
		}
		timer := time.AfterFunc(remaining, func() {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		})
		q.cond.Wait()
		timer.Stop()
	}

	if len(q.items) == 0 && q.closed {
		return nil, false, true
	}

	m = q.items[0]
	q.items = q.items[1:]
	return m, true, false
}

// Close marks the queue closed, drains any residual messages (invoking
// their destructors), and wakes every waiter.
func (q *outboundQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for _, m := range q.items {
		m.Drop()
	}
	q.items = nil
	q.cond.Broadcast()
}
