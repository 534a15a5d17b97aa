package transport_test

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/movsoftware/filerelay/internal/multiqueue"
	"github.com/movsoftware/filerelay/internal/transport"
)

var _ = Describe("Connection handshake and channel messaging", func() {
	var (
		serverRoot *transport.Root
		clientRoot *transport.Root
		ln         *transport.Listener
		addr       string
	)

	BeforeEach(func() {
		serverRoot = transport.NewRoot(nil)
		clientRoot = transport.NewRoot(nil)

		raw, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr = raw.Addr().String()
		Expect(raw.Close()).To(Succeed())

		ln = transport.NewListener(serverRoot, 30, nil)
		Expect(ln.Start(context.Background(), []transport.ListenSpec{{Address: addr}})).To(Succeed())
	})

	AfterEach(func() {
		Expect(ln.Close()).To(Succeed())
		serverRoot.Close()
		clientRoot.Close()
	})

	It("completes a channel handshake and exchanges an application message", func() {
		conn, err := transport.Dial(context.Background(), addr, nil, clientRoot, 30, nil)
		Expect(err).NotTo(HaveOccurred())

		var serverConn *transport.Connection
		Eventually(serverRoot.Accepted(), time.Second).Should(Receive(&serverConn))

		group := clientRoot.Group("xfer/peer-a", multiqueue.Fair)
		ch, err := group.Open(conn)
		Expect(err).NotTo(HaveOccurred())
		Expect(ch.State()).To(Equal(transport.ChannelConnected))

		Expect(ch.Send(42, [][]byte{[]byte("hello")})).To(Succeed())

		serverGroup := serverRoot.Group("xfer/peer-a", multiqueue.Fair)
		msg, res := serverGroup.Get()
		Expect(res).To(Equal(multiqueue.GetOK))
		Expect(msg.Header.Type).To(Equal(uint16(42)))
		Expect(msg.Segments[0]).To(Equal([]byte("hello")))
	})

	It("tears down a channel on Close without killing the connection", func() {
		conn, err := transport.Dial(context.Background(), addr, nil, clientRoot, 30, nil)
		Expect(err).NotTo(HaveOccurred())

		group := clientRoot.Group("xfer/peer-b", multiqueue.Fair)
		ch, err := group.Open(conn)
		Expect(err).NotTo(HaveOccurred())

		Expect(ch.Close()).To(Succeed())
		Eventually(ch.Done(), time.Second).Should(BeClosed())
		Expect(ch.State()).To(Equal(transport.ChannelClosed))

		select {
		case <-conn.Done():
			Fail("connection should still be alive after a single channel closes")
		default:
		}
	})
})
