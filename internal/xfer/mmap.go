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

package xfer

import (
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	liberr "github.com/movsoftware/filerelay/pkg/errors"
)

// mmapView is a reference-counted memory map of a file, used read-only
// on the send side and read-write on the receive side (§9: "memory maps
// are reference-counted"). Every Send/Receive call that borrows a slice
// into the mapping holds a reference via Acquire/Release; the mapping is
// only unmapped once the last reference is released, mirroring the
// teacher's file/progress refcount-free-on-drop pattern.
type mmapView struct {
	data []byte
	refs atomic.Int32
}

// mmapReadOnly maps size bytes of f read-only, starting at offset 0.
func mmapReadOnly(f *os.File, size int64) (*mmapView, error) {
	if size == 0 {
		return &mmapView{data: []byte{}}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindMemory, liberr.MinPkgXfer+1, "mmap (read-only) failed", err)
	}
	v := &mmapView{data: data}
	v.refs.Store(1)
	return v, nil
}

// mmapReadWrite maps size bytes of f read-write, starting at offset 0.
// The caller must have already extended f to size bytes.
func mmapReadWrite(f *os.File, size int64) (*mmapView, error) {
	if size == 0 {
		return &mmapView{data: []byte{}}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindMemory, liberr.MinPkgXfer+2, "mmap (read-write) failed", err)
	}
	v := &mmapView{data: data}
	v.refs.Store(1)
	return v, nil
}

// Acquire increments the reference count; callers must pair every
// Acquire with a later Release.
func (v *mmapView) Acquire() {
	v.refs.Add(1)
}

// Release decrements the reference count, unmapping once it reaches
// zero. Safe to call from any goroutine.
func (v *mmapView) Release() error {
	if v.refs.Add(-1) == 0 && len(v.data) > 0 {
		data := v.data
		v.data = nil
		return unix.Munmap(data)
	}
	return nil
}

// Slice returns the byte range [offset:offset+n) of the mapping. Callers
// must hold an Acquire for the lifetime of any slice they retain beyond
// the current call.
func (v *mmapView) Slice(offset, n int64) []byte {
	return v.data[offset : offset+n]
}

// Len returns the total mapped length.
func (v *mmapView) Len() int64 {
	return int64(len(v.data))
}
