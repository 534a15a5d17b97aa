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

// White-box test for the unexported outboundQueue; lives in package
// transport specifically to reach it without exporting a type that is
// purely a Connection implementation detail.
package transport

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/movsoftware/filerelay/internal/wire"
)

var _ = Describe("outboundQueue", func() {
	It("drops a message pushed after Close instead of losing it silently", func() {
		q := newOutboundQueue()
		q.Close()

		dropped := make(chan struct{}, 1)
		msg := &wire.Message{OnDrop: func() { dropped <- struct{}{} }}

		ok := q.PushBack(msg)
		Expect(ok).To(BeFalse())
		Expect(dropped).To(Receive())
	})

	It("drops a control message pushed to the front after Close", func() {
		q := newOutboundQueue()
		q.Close()

		dropped := make(chan struct{}, 1)
		msg := &wire.Message{OnDrop: func() { dropped <- struct{}{} }}

		ok := q.PushFront(msg)
		Expect(ok).To(BeFalse())
		Expect(dropped).To(Receive())
	})
})
