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

package linkcopy_test

import (
	"os"
	"path/filepath"
	"syscall"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/movsoftware/filerelay/internal/linkcopy"
)

var _ = Describe("LinkOrCopy", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "linkcopy-test-")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("hard-links when src and dst are on the same device", func() {
		src := filepath.Join(dir, "src.txt")
		dst := filepath.Join(dir, "dst.txt")
		Expect(os.WriteFile(src, []byte("hello"), 0o644)).To(Succeed())

		Expect(linkcopy.LinkOrCopy(src, dst, false)).To(Succeed())

		srcInfo, err := os.Stat(src)
		Expect(err).NotTo(HaveOccurred())
		dstInfo, err := os.Stat(dst)
		Expect(err).NotTo(HaveOccurred())
		srcStat := srcInfo.Sys().(*syscall.Stat_t)
		dstStat := dstInfo.Sys().(*syscall.Stat_t)
		Expect(dstStat.Ino).To(Equal(srcStat.Ino))
	})

	It("treats an existing link to the same inode as already done", func() {
		src := filepath.Join(dir, "src.txt")
		dst := filepath.Join(dir, "dst.txt")
		Expect(os.WriteFile(src, []byte("hello"), 0o644)).To(Succeed())
		Expect(os.Link(src, dst)).To(Succeed())

		Expect(linkcopy.LinkOrCopy(src, dst, false)).To(Succeed())
	})

	It("copies instead of linking when a different file already occupies dst", func() {
		src := filepath.Join(dir, "src.txt")
		dst := filepath.Join(dir, "dst.txt")
		Expect(os.WriteFile(src, []byte("hello"), 0o644)).To(Succeed())
		Expect(os.WriteFile(dst, []byte("unrelated"), 0o644)).To(Succeed())

		Expect(linkcopy.LinkOrCopy(src, dst, false)).To(Succeed())

		got, err := os.ReadFile(dst)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte("hello")))
	})

	It("always copies when unique is set, even on the same device", func() {
		src := filepath.Join(dir, "src.txt")
		dst := filepath.Join(dir, "dst.txt")
		Expect(os.WriteFile(src, []byte("hello"), 0o644)).To(Succeed())

		Expect(linkcopy.LinkOrCopy(src, dst, true)).To(Succeed())

		srcInfo, err := os.Stat(src)
		Expect(err).NotTo(HaveOccurred())
		dstInfo, err := os.Stat(dst)
		Expect(err).NotTo(HaveOccurred())
		srcStat := srcInfo.Sys().(*syscall.Stat_t)
		dstStat := dstInfo.Sys().(*syscall.Stat_t)
		Expect(dstStat.Ino).NotTo(Equal(srcStat.Ino))
	})
})
