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

package wire

// decodeState tracks which part of a message the Decoder is currently
// assembling, so that an arbitrarily small read (including zero or one
// byte) never loses progress.
type decodeState int

const (
	stateHeader decodeState = iota
	stateBody
)

// Decoder incrementally reassembles messages from a byte stream that may
// arrive in arbitrarily small pieces. It never blocks; callers push bytes
// in via Feed and drain completed messages from the returned slice.
type Decoder struct {
	state derivedState
}

// derivedState is the actual mutable decode state, split out so zero
// value of Decoder is directly usable.
type derivedState struct {
	phase   decodeState
	hdrBuf  [HeaderSize]byte
	hdrGot  int
	hdr     Header
	body    []byte
	bodyGot int
}

// NewDecoder returns a ready-to-use Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes p (which may hold zero, one, or many complete/partial
// messages) and returns every message that became complete as a result.
// Internal state — the partially built message, the current destination
// pointer, and the remaining byte count — is preserved across calls so a
// caller may feed one byte at a time with identical results to feeding
// the whole stream at once (§8 "partial-IO correctness").
func (d *Decoder) Feed(p []byte) []*Message {
	var out []*Message
	s := &d.state

	for len(p) > 0 {
		switch s.phase {
		case stateHeader:
			n := copy(s.hdrBuf[s.hdrGot:], p)
			s.hdrGot += n
			p = p[n:]

			if s.hdrGot == HeaderSize {
				s.hdr = DecodeHeader(s.hdrBuf[:])
				s.hdrGot = 0
				if s.hdr.Size == 0 {
					out = append(out, &Message{Header: s.hdr})
					s.phase = stateHeader
				} else {
					s.body = make([]byte, s.hdr.Size)
					s.bodyGot = 0
					s.phase = stateBody
				}
			}

		case stateBody:
			n := copy(s.body[s.bodyGot:], p)
			s.bodyGot += n
			p = p[n:]

			if s.bodyGot == len(s.body) {
				out = append(out, &Message{Header: s.hdr, Segments: [][]byte{s.body}})
				s.hdrGot = 0
				s.phase = stateHeader
			}
		}
	}

	return out
}

// Encoder serializes a Message to its wire form, tracking how much of
// the header and how many bytes of which segment have already been
// emitted so a partial write resumes without re-popping the message or
// re-computing the header bytes (§4.3.1).
type Encoder struct {
	hdrBuf    [HeaderSize]byte
	hdrDone   bool
	hdrSent   int
	segIdx    int
	segSent   int
	msg       *Message
	remaining int
}

// NewEncoderFor begins encoding msg. Write each slice Next returns (e.g.
// to a net.Conn) and report the bytes written with Advance until Done
// reports true.
func NewEncoderFor(msg *Message) *Encoder {
	e := &Encoder{msg: msg}
	EncodeHeader(msg.Header, e.hdrBuf[:])
	e.remaining = int(msg.Header.Size)
	return e
}

// Done reports whether the whole message (header + every segment) has
// been fully handed to the writer.
func (e *Encoder) Done() bool {
	return e.hdrSent == HeaderSize && e.segIdx >= len(e.msg.Segments)
}

// Next returns the next contiguous slice of bytes to write. It never
// spans the header/body boundary or a segment boundary, so the caller's
// partial-write bookkeeping stays a simple byte count. Returns nil once
// Done is true.
func (e *Encoder) Next() []byte {
	if e.hdrSent < HeaderSize {
		return e.hdrBuf[e.hdrSent:]
	}
	for e.segIdx < len(e.msg.Segments) {
		seg := e.msg.Segments[e.segIdx]
		if e.segSent < len(seg) {
			return seg[e.segSent:]
		}
		e.segIdx++
		e.segSent = 0
	}
	return nil
}

// Advance records that n bytes of the slice last returned by Next have
// been successfully written, advancing the internal cursor accordingly
// so the next Next() call resumes exactly where the partial write left
// off.
func (e *Encoder) Advance(n int) {
	if e.hdrSent < HeaderSize {
		e.hdrSent += n
		return
	}
	if e.segIdx < len(e.msg.Segments) {
		e.segSent += n
	}
}
