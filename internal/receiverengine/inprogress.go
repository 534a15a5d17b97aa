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

package receiverengine

import "sync"

// inodeSet is the production xfer.InProgress: one mutex-guarded set of
// placeholder inodes shared by every connection worker in the process
// (§4.9: "one global mutex guards the in-progress inode set ... so two
// connections cannot both create the same placeholder successfully").
type inodeSet struct {
	mu  sync.Mutex
	set map[uint64]struct{}

	// createMu is a separate lock from mu: it serializes the whole
	// stat/remove/recreate/TryRegister sequence in createPlaceholder across
	// workers, and createPlaceholder calls TryRegister/Contains (which lock
	// mu internally) while holding it. Reusing mu for both would deadlock.
	createMu sync.Mutex
}

func newInodeSet() *inodeSet {
	return &inodeSet{set: make(map[uint64]struct{})}
}

func (s *inodeSet) TryRegister(ino uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[ino]; ok {
		return false
	}
	s.set[ino] = struct{}{}
	return true
}

func (s *inodeSet) Contains(ino uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[ino]
	return ok
}

func (s *inodeSet) Release(ino uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.set, ino)
}

func (s *inodeSet) Lock()   { s.createMu.Lock() }
func (s *inodeSet) Unlock() { s.createMu.Unlock() }
