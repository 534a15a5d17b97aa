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

// Package multiqueue implements the set-of-subqueues-drained-as-one-queue
// abstraction described in §4.2: a group of FIFO subqueues that can be
// drained fairly (round-robin) or unfairly (strict first-nonempty), with
// independent enable/disable of the add and remove sides, and a terminal
// shutdown that never deadlocks a waiting getter.
package multiqueue

import (
	"sync"
	"unsafe"

	liberr "github.com/movsoftware/filerelay/pkg/errors"
)

// Order selects how subqueues are drained relative to each other.
type Order int

const (
	// Fair cycles through non-empty subqueues round-robin.
	Fair Order = iota
	// Unfair always drains the first-inserted non-empty subqueue.
	Unfair
)

// GetResult classifies why Get returned without an element.
type GetResult int

const (
	GetOK GetResult = iota
	GetDisabled
	GetShutdown
	// GetRemoved is returned by GetOne when its subqueue is removed (via
	// RemoveSubqueue) while it is blocked waiting on it.
	GetRemoved
)

// Destructor is invoked on every element still queued at teardown time.
type Destructor[T any] func(T)

type subqueue[T any] struct {
	id    int64
	items []T
}

func (s *subqueue[T]) pushBack(v T)  { s.items = append(s.items, v) }
func (s *subqueue[T]) pushFront(v T) { s.items = append([]T{v}, s.items...) }
func (s *subqueue[T]) pop() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	v := s.items[0]
	s.items = s.items[1:]
	return v, true
}

// Multiqueue is a set of named subqueues drained as a single logical FIFO.
type Multiqueue[T any] struct {
	mu   sync.Mutex
	cond *sync.Cond

	order   Order
	destroy Destructor[T]

	subs    map[int64]*subqueue[T]
	order_  []int64 // insertion order of subqueue ids, for Unfair + round-robin cursor
	lastIdx int     // index into order_ of the subqueue last served, for Fair

	addDisabled bool
	getDisabled bool
	shutdown    bool

	nextID int64
}

// New constructs an empty Multiqueue with the given drain order. destroy,
// if non-nil, is applied to every element still present at Shutdown.
func New[T any](order Order, destroy Destructor[T]) *Multiqueue[T] {
	m := &Multiqueue[T]{
		order:   order,
		destroy: destroy,
		subs:    make(map[int64]*subqueue[T]),
		lastIdx: -1,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// NewSubqueue allocates a fresh, empty subqueue owned by this multiqueue
// and returns its id, used for later PushBack/PushFront/Move calls.
func (m *Multiqueue[T]) NewSubqueue() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.subs[id] = &subqueue[T]{id: id}
	m.order_ = append(m.order_, id)
	return id
}

// RemoveSubqueue drops a subqueue entirely (used when, e.g., a peer is
// permanently removed). Any items it held are lost without running the
// destructor — callers that care must drain it first.
func (m *Multiqueue[T]) RemoveSubqueue(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.subs, id)
	for i, v := range m.order_ {
		if v == id {
			m.order_ = append(m.order_[:i], m.order_[i+1:]...)
			break
		}
	}
	m.cond.Broadcast()
}

// SetAddEnabled toggles whether PushBack/PushFront accept new elements.
func (m *Multiqueue[T]) SetAddEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDisabled = !enabled
}

// SetGetEnabled toggles whether Get blocks for new elements. Disabling it
// unblocks every waiting getter with GetDisabled.
func (m *Multiqueue[T]) SetGetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getDisabled = !enabled
	if !enabled {
		m.cond.Broadcast()
	}
}

// Shutdown is a stronger, terminal disable: no further add or get is ever
// possible again, and every current/future waiter on Get unblocks with
// GetShutdown. The destructor (if any) runs over every element still
// present in every subqueue.
func (m *Multiqueue[T]) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return
	}
	m.shutdown = true
	m.addDisabled = true
	m.getDisabled = true

	if m.destroy != nil {
		for _, id := range m.order_ {
			s := m.subs[id]
			for {
				v, ok := s.pop()
				if !ok {
					break
				}
				m.destroy(v)
			}
		}
	}

	m.cond.Broadcast()
}

// PushBack enqueues v at the tail of the named subqueue.
func (m *Multiqueue[T]) PushBack(subqueueID int64, v T) error {
	return m.push(subqueueID, v, false)
}

// PushFront enqueues v at the head of the named subqueue, used for
// requeue-on-retry semantics.
func (m *Multiqueue[T]) PushFront(subqueueID int64, v T) error {
	return m.push(subqueueID, v, true)
}

func (m *Multiqueue[T]) push(subqueueID int64, v T, front bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return liberr.New(liberr.KindClosed, liberr.MinPkgMultiqueue+1, "multiqueue is shut down")
	}
	if m.addDisabled {
		return liberr.New(liberr.KindGeneric, liberr.MinPkgMultiqueue+2, "add is disabled on this multiqueue")
	}

	s, ok := m.subs[subqueueID]
	if !ok {
		return liberr.New(liberr.KindGeneric, liberr.MinPkgMultiqueue+3, "unknown subqueue")
	}

	if front {
		s.pushFront(v)
	} else {
		s.pushBack(v)
	}
	m.cond.Broadcast()
	return nil
}

// Get blocks until some subqueue is non-empty, Get is disabled, or the
// multiqueue is shut down.
func (m *Multiqueue[T]) Get() (T, GetResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if m.shutdown {
			var zero T
			return zero, GetShutdown
		}
		if v, ok := m.popLocked(); ok {
			return v, GetOK
		}
		if m.getDisabled {
			var zero T
			return zero, GetDisabled
		}
		m.cond.Wait()
	}
}

// GetOne blocks until the single named subqueue has an element, Get is
// disabled, or the multiqueue is shut down. Unlike Get, it never serves
// an element belonging to a different subqueue — this is what lets a
// single channel wait for its own replies without stealing messages
// destined for sibling channels in the same group.
func (m *Multiqueue[T]) GetOne(subqueueID int64) (T, GetResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if m.shutdown {
			var zero T
			return zero, GetShutdown
		}
		s, ok := m.subs[subqueueID]
		if !ok {
			var zero T
			return zero, GetRemoved
		}
		if v, ok := s.pop(); ok {
			return v, GetOK
		}
		if m.getDisabled {
			var zero T
			return zero, GetDisabled
		}
		m.cond.Wait()
	}
}

// TryGet returns immediately, never blocking.
func (m *Multiqueue[T]) TryGet() (T, GetResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		var zero T
		return zero, GetShutdown, false
	}
	if v, ok := m.popLocked(); ok {
		return v, GetOK, true
	}
	if m.getDisabled {
		var zero T
		return zero, GetDisabled, false
	}
	var zero T
	return zero, GetOK, false
}

func (m *Multiqueue[T]) popLocked() (T, bool) {
	switch m.order {
	case Unfair:
		for _, id := range m.order_ {
			s := m.subs[id]
			if v, ok := s.pop(); ok {
				return v, true
			}
		}
	default: // Fair
		n := len(m.order_)
		if n == 0 {
			break
		}
		for i := 1; i <= n; i++ {
			idx := (m.lastIdx + i) % n
			if idx < 0 {
				continue
			}
			s := m.subs[m.order_[idx]]
			if v, ok := s.pop(); ok {
				m.lastIdx = idx
				return v, true
			}
		}
	}
	var zero T
	return zero, false
}

// Move atomically relocates subqueue id from src to dst, preserving its
// queued items and placing it last in the destination's insertion order,
// with respect to concurrent Get/Push on either multiqueue.
func Move[T any](src, dst *Multiqueue[T], id int64) error {
	if src == dst {
		return nil
	}

	// Lock order: always the lower pointer address first to avoid
	// deadlocking against a concurrent Move in the opposite direction.
	first, second := src, dst
	if addr(src) > addr(dst) {
		first, second = dst, src
	}

	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	s, ok := src.subs[id]
	if !ok {
		return liberr.New(liberr.KindGeneric, liberr.MinPkgMultiqueue+4, "unknown subqueue")
	}

	delete(src.subs, id)
	for i, v := range src.order_ {
		if v == id {
			src.order_ = append(src.order_[:i], src.order_[i+1:]...)
			break
		}
	}

	dst.subs[id] = s
	dst.order_ = append(dst.order_, id)
	if dst.nextID < id {
		dst.nextID = id
	}

	dst.cond.Broadcast()
	return nil
}

func addr[T any](m *Multiqueue[T]) uintptr {
	return uintptr(unsafe.Pointer(m))
}
