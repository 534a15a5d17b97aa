package wire_test

import (
	"bytes"
	"math/rand"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/movsoftware/filerelay/internal/wire"
)

func TestWire(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Wire Suite")
}

func encodeWhole(msg *wire.Message) []byte {
	e := wire.NewEncoderFor(msg)
	var buf bytes.Buffer
	for !e.Done() {
		chunk := e.Next()
		if chunk == nil {
			break
		}
		buf.Write(chunk)
		e.Advance(len(chunk))
	}
	return buf.Bytes()
}

var _ = Describe("Framing and codec", func() {
	It("round-trips an empty-body message (scenario 1)", func() {
		msg, err := wire.New(0x0010, 0x0042, nil)
		Expect(err).NotTo(HaveOccurred())

		got := encodeWhole(msg)
		Expect(got).To(Equal([]byte{0x00, 0x10, 0x00, 0x42, 0x00, 0x00}))

		d := wire.NewDecoder()
		out := d.Feed(got)
		Expect(out).To(HaveLen(1))
		Expect(out[0].Header.Channel).To(Equal(uint16(0x0010)))
		Expect(out[0].Header.Type).To(Equal(uint16(0x0042)))
		Expect(out[0].BodyLen()).To(Equal(0))
	})

	It("round-trips a boundary 65535-byte body (scenario 2)", func() {
		body := bytes.Repeat([]byte{0xAB}, 65535)
		msg, err := wire.New(0x0001, 0x0001, body)
		Expect(err).NotTo(HaveOccurred())

		got := encodeWhole(msg)
		Expect(got[:6]).To(Equal([]byte{0x00, 0x01, 0x00, 0x01, 0xFF, 0xFF}))
		Expect(got[6:]).To(Equal(body))

		d := wire.NewDecoder()
		out := d.Feed(got)
		Expect(out).To(HaveLen(1))
		Expect(out[0].Segments[0]).To(Equal(body))
	})

	It("rejects bodies over 65535 bytes at submission", func() {
		_, err := wire.New(1, 1, make([]byte, 65536))
		Expect(err).To(HaveOccurred())
	})

	It("decodes identically regardless of how the stream is chunked", func() {
		for trial := 0; trial < 20; trial++ {
			size := rand.Intn(4000)
			body := make([]byte, size)
			rand.Read(body)

			msg, err := wire.New(uint16(trial), uint16(trial+1), body)
			Expect(err).NotTo(HaveOccurred())
			wire2 := encodeWhole(msg)

			// Whole-stream decode.
			whole := wire.NewDecoder().Feed(wire2)
			Expect(whole).To(HaveLen(1))

			// One-byte-at-a-time decode.
			d := wire.NewDecoder()
			var pieces []*wire.Message
			for _, b := range wire2 {
				pieces = append(pieces, d.Feed([]byte{b})...)
			}
			Expect(pieces).To(HaveLen(1))
			Expect(pieces[0].Header).To(Equal(whole[0].Header))
			Expect(pieces[0].BodyLen()).To(Equal(whole[0].BodyLen()))
			if len(body) > 0 {
				Expect(pieces[0].Segments[0]).To(Equal(whole[0].Segments[0]))
			}

			// Random chunk decode.
			d2 := wire.NewDecoder()
			var randPieces []*wire.Message
			rest := wire2
			for len(rest) > 0 {
				n := rand.Intn(len(rest)) + 1
				randPieces = append(randPieces, d2.Feed(rest[:n])...)
				rest = rest[n:]
			}
			Expect(randPieces).To(HaveLen(1))
			Expect(randPieces[0].Header).To(Equal(whole[0].Header))
		}
	})

	It("handles zero-byte feeds without losing progress", func() {
		msg, _ := wire.New(7, 8, []byte("hi"))
		full := encodeWhole(msg)

		d := wire.NewDecoder()
		var out []*wire.Message
		out = append(out, d.Feed(nil)...)
		out = append(out, d.Feed(full[:3])...)
		out = append(out, d.Feed(nil)...)
		out = append(out, d.Feed(full[3:])...)

		Expect(out).To(HaveLen(1))
		Expect(out[0].Segments[0]).To(Equal([]byte("hi")))
	})

	It("decodes multiple back-to-back messages delivered in one chunk", func() {
		m1, _ := wire.New(1, 1, []byte("one"))
		m2, _ := wire.New(2, 2, []byte("two"))

		buf := append(encodeWhole(m1), encodeWhole(m2)...)
		out := wire.NewDecoder().Feed(buf)

		Expect(out).To(HaveLen(2))
		Expect(out[0].Segments[0]).To(Equal([]byte("one")))
		Expect(out[1].Segments[0]).To(Equal([]byte("two")))
	})

	It("resumes a partial write without re-popping or re-swapping the header", func() {
		body := bytes.Repeat([]byte{0x11, 0x22, 0x33}, 100)
		msg, _ := wire.New(9, 9, body)
		e := wire.NewEncoderFor(msg)

		var out bytes.Buffer
		for !e.Done() {
			chunk := e.Next()
			// simulate a partial write of at most 7 bytes at a time
			n := len(chunk)
			if n > 7 {
				n = 7
			}
			out.Write(chunk[:n])
			e.Advance(n)
		}

		d := wire.NewDecoder()
		got := d.Feed(out.Bytes())
		Expect(got).To(HaveLen(1))
		Expect(got[0].Segments[0]).To(Equal(body))
	})

	It("supports scatter sends with multiple segments", func() {
		msg, err := wire.NewScatter(3, 3, [][]byte{[]byte("abc"), []byte("defg")})
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Header.Size).To(Equal(uint16(7)))

		full := encodeWhole(msg)
		out := wire.NewDecoder().Feed(full)
		Expect(out).To(HaveLen(1))
		Expect(out[0].Segments[0]).To(Equal([]byte("abcdefg")))
	})
})
