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

// Package diskspace implements the §4.6 admission test: a destination
// directory may be guarded by a minimum free-bytes floor, a maximum
// used-fraction ceiling, or both. Admission is checked against gopsutil's
// live disk.Usage figure minus a running in-flight reservation, so
// concurrent admits never over-commit the same free space twice.
package diskspace

import (
	"sync"

	"github.com/shirou/gopsutil/v3/disk"

	liberr "github.com/movsoftware/filerelay/pkg/errors"
	"github.com/movsoftware/filerelay/pkg/logger"
)

// Limits configures the two independent admission bounds. A zero value
// disables that particular bound; if both are zero, admission is always
// granted (§4.6: "if neither bound is configured, the check is skipped").
type Limits struct {
	MinFreeBytes  uint64
	MaxUsedFraction float64
}

func (l Limits) enabled() bool {
	return l.MinFreeBytes > 0 || l.MaxUsedFraction > 0
}

// Admitter guards one destination directory's disk-space admission test
// under a single mutex, tracking in-flight reservations so a burst of
// concurrent receives can't all observe the same free space as available.
type Admitter struct {
	limits   Limits
	log      logger.Logger
	usageFn  func(path string) (*disk.UsageStat, error)

	mu       sync.Mutex
	preAlloc uint64
}

// NewAdmitter returns an Admitter enforcing limits for the directory it is
// later called with. A zero Limits disables the admission test entirely.
func NewAdmitter(limits Limits, log logger.Logger) *Admitter {
	return NewAdmitterWithUsage(limits, log, disk.Usage)
}

// NewAdmitterWithUsage is NewAdmitter with the disk.Usage probe replaced,
// letting tests exercise the admission arithmetic against a fixed
// free/used/total triple instead of the real filesystem.
func NewAdmitterWithUsage(limits Limits, log logger.Logger, usageFn func(path string) (*disk.UsageStat, error)) *Admitter {
	return &Admitter{
		limits:  limits,
		log:     log,
		usageFn: usageFn,
	}
}

// Admit checks whether size additional bytes may be committed to path
// without violating either configured bound, reserving them (via the
// running pre_alloc counter) on success. Every successful Admit must be
// matched by exactly one later Release of the same size.
func (a *Admitter) Admit(path string, size int64) bool {
	if !a.limits.enabled() || size < 0 {
		return true
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	usage, err := a.usageFn(path)
	if err != nil {
		if a.log != nil {
			a.log.Warning("disk usage probe failed, admitting by default", liberr.Wrap(liberr.KindSystem, liberr.MinPkgDiskspace+1, "disk.Usage failed", err), nil)
		}
		return true
	}

	free := usage.Free
	if a.preAlloc > free {
		free = 0
	} else {
		free -= a.preAlloc
	}

	if a.limits.MinFreeBytes > 0 && free < a.limits.MinFreeBytes+uint64(size) {
		return false
	}

	if a.limits.MaxUsedFraction > 0 && usage.Total > 0 {
		projectedUsed := usage.Used + a.preAlloc + uint64(size)
		if float64(projectedUsed)/float64(usage.Total) > a.limits.MaxUsedFraction {
			return false
		}
	}

	a.preAlloc += uint64(size)
	return true
}

// Release returns a previously admitted reservation to the pool. Safe to
// call even when the admission test is disabled (size is simply ignored).
func (a *Admitter) Release(size int64) {
	if !a.limits.enabled() || size <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if uint64(size) > a.preAlloc {
		a.preAlloc = 0
		return
	}
	a.preAlloc -= uint64(size)
}

// InFlight returns the current pre_alloc counter, for tests and metrics.
func (a *Admitter) InFlight() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.preAlloc
}
