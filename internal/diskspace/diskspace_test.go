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

package diskspace_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/movsoftware/filerelay/internal/diskspace"
)

func fixedUsage(free, used, total uint64) func(string) (*disk.UsageStat, error) {
	return func(string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Free: free, Used: used, Total: total}, nil
	}
}

var _ = Describe("Admitter", func() {
	It("skips the check entirely when no bound is configured", func() {
		a := diskspace.NewAdmitterWithUsage(diskspace.Limits{}, nil, fixedUsage(0, 1000, 1000))
		Expect(a.Admit("/dst", 999999)).To(BeTrue())
	})

	It("rejects a request that would breach the minimum free-bytes floor", func() {
		a := diskspace.NewAdmitterWithUsage(diskspace.Limits{MinFreeBytes: 100}, nil, fixedUsage(150, 850, 1000))
		Expect(a.Admit("/dst", 40)).To(BeTrue())
		Expect(a.InFlight()).To(Equal(uint64(40)))
		Expect(a.Admit("/dst", 40)).To(BeFalse())
	})

	It("releases a reservation so a later admit can succeed again", func() {
		a := diskspace.NewAdmitterWithUsage(diskspace.Limits{MinFreeBytes: 100}, nil, fixedUsage(150, 850, 1000))
		Expect(a.Admit("/dst", 40)).To(BeTrue())
		Expect(a.Admit("/dst", 40)).To(BeFalse())
		a.Release(40)
		Expect(a.InFlight()).To(Equal(uint64(0)))
		Expect(a.Admit("/dst", 40)).To(BeTrue())
	})

	It("rejects a request that would breach the max-used-fraction ceiling", func() {
		a := diskspace.NewAdmitterWithUsage(diskspace.Limits{MaxUsedFraction: 0.9}, nil, fixedUsage(200, 800, 1000))
		Expect(a.Admit("/dst", 50)).To(BeTrue())
		Expect(a.Admit("/dst", 200)).To(BeFalse())
	})
})
