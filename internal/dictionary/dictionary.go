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

// Package dictionary implements the int32-keyed ordered map the transport
// uses for channel, connection and group indexing (§4.1). Iteration always
// yields ascending keys; a single writer and many concurrent readers are
// safe, and readers see a consistent point-in-time snapshot.
package dictionary

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Dictionary is an ordered map from int32 to V.
type Dictionary[V any] struct {
	mu      sync.RWMutex
	data    map[int32]V
	keys    []int32
	dirty   bool
}

// New returns an empty Dictionary.
func New[V any]() *Dictionary[V] {
	return &Dictionary[V]{
		data: make(map[int32]V),
	}
}

// Put inserts or replaces the value at key. Reinsertion overwrites.
func (d *Dictionary[V]) Put(key int32, value V) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.data[key]; !ok {
		d.dirty = true
	}
	d.data[key] = value
}

// Delete removes key, if present. A no-op otherwise.
func (d *Dictionary[V]) Delete(key int32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.data[key]; ok {
		delete(d.data, key)
		d.dirty = true
	}
}

// Get returns the value stored at key.
func (d *Dictionary[V]) Get(key int32) (V, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	v, ok := d.data[key]
	return v, ok
}

// Count returns the number of entries currently stored.
func (d *Dictionary[V]) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.data)
}

// sortedKeys rebuilds the ascending key slice if the map was mutated since
// the last rebuild. Callers must not hold d.mu: this method takes the read
// lock itself and switches to the write lock only when a rebuild is needed.
func (d *Dictionary[V]) sortedKeys() []int32 {
	d.mu.RLock()
	if !d.dirty {
		keys := make([]int32, len(d.keys))
		copy(keys, d.keys)
		d.mu.RUnlock()
		return keys
	}
	d.mu.RUnlock()

	d.mu.Lock()
	if d.dirty {
		keys := make([]int32, 0, len(d.data))
		for k := range d.data {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		d.keys = keys
		d.dirty = false
	}
	keys := make([]int32, len(d.keys))
	copy(keys, d.keys)
	d.mu.Unlock()

	return keys
}

// First returns the smallest key currently stored.
func (d *Dictionary[V]) First() (int32, V, bool) {
	keys := d.sortedKeys()
	if len(keys) == 0 {
		var zero V
		return 0, zero, false
	}
	v, _ := d.Get(keys[0])
	return keys[0], v, true
}

// Last returns the largest key currently stored.
func (d *Dictionary[V]) Last() (int32, V, bool) {
	keys := d.sortedKeys()
	if len(keys) == 0 {
		var zero V
		return 0, zero, false
	}
	k := keys[len(keys)-1]
	v, _ := d.Get(k)
	return k, v, true
}

// NextGreater returns the smallest stored key strictly greater than key.
func (d *Dictionary[V]) NextGreater(key int32) (int32, V, bool) {
	keys := d.sortedKeys()
	i, _ := slices.BinarySearch(keys, key+1)
	for ; i < len(keys); i++ {
		if keys[i] > key {
			v, _ := d.Get(keys[i])
			return keys[i], v, true
		}
	}
	var zero V
	return 0, zero, false
}

// PrevLess returns the largest stored key strictly less than key.
func (d *Dictionary[V]) PrevLess(key int32) (int32, V, bool) {
	keys := d.sortedKeys()
	for i := len(keys) - 1; i >= 0; i-- {
		if keys[i] < key {
			v, _ := d.Get(keys[i])
			return keys[i], v, true
		}
	}
	var zero V
	return 0, zero, false
}

// Iterator yields keys in ascending order over a snapshot of the key set
// taken when Open is called; keys added or deleted later are not seen by
// an already-open iterator. Values are read when Next is called, so a key
// deleted after Open yields the zero value of V and a replaced value is
// returned as replaced.
type Iterator[V any] struct {
	d    *Dictionary[V]
	keys []int32
	pos  int
}

// Open returns a new Iterator snapshotting the current ascending key set.
func (d *Dictionary[V]) Open() *Iterator[V] {
	return &Iterator[V]{d: d, keys: d.sortedKeys()}
}

// Next returns the next (key, value) pair, or ok=false once exhausted.
func (it *Iterator[V]) Next() (key int32, value V, ok bool) {
	if it.pos >= len(it.keys) {
		var zero V
		return 0, zero, false
	}
	k := it.keys[it.pos]
	it.pos++
	v, _ := it.d.Get(k)
	return k, v, true
}

// Close releases the iterator's snapshot. It is always safe to call and
// makes the iterator reusable only by calling Open again.
func (it *Iterator[V]) Close() {
	it.keys = nil
	it.pos = 0
}
