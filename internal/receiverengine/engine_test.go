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

package receiverengine_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/movsoftware/filerelay/internal/multiqueue"
	"github.com/movsoftware/filerelay/internal/receiverengine"
	"github.com/movsoftware/filerelay/internal/transport"
	"github.com/movsoftware/filerelay/internal/xfer"
	"github.com/movsoftware/filerelay/pkg/config"
)

// This suite plays the sender side of the wire protocol directly against
// a real receiverengine.Engine, the same way internal/xfer's own
// round-trip test plays both sides directly against transport.Channel —
// the goal here is exercising Engine's control/data group wiring, not
// re-covering §4.5's per-file state machine.
var _ = Describe("Engine", func() {
	var (
		serverRoot *transport.Root
		clientRoot *transport.Root
		ln         *transport.Listener
		addr       string
		tmpDir     string
		eng        *receiverengine.Engine
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

		tmpDir, err = os.MkdirTemp("", "receiverengine-test-")
		Expect(err).NotTo(HaveOccurred())

		eng = receiverengine.New(&config.ReceiverConfig{
			Ident:          "receiver-a",
			DestinationDir: filepath.Join(tmpDir, "destination"),
		}, serverRoot, nil, nil)
		Expect(eng.Start(context.Background())).To(Succeed())
	})

	AfterEach(func() {
		eng.Stop()
		Expect(ln.Close()).To(Succeed())
		serverRoot.Close()
		clientRoot.Close()
		Expect(os.RemoveAll(tmpDir)).To(Succeed())
	})

	It("completes a handshake and receives a file end to end", func() {
		conn, err := transport.Dial(context.Background(), addr, nil, clientRoot, 30, nil)
		Expect(err).NotTo(HaveOccurred())

		controlGroup := clientRoot.Group("receiver-a/control", multiqueue.Fair)
		controlCh, err := controlGroup.Open(conn)
		Expect(err).NotTo(HaveOccurred())

		peerInfo, err := xfer.Handshake(controlCh, xfer.ConnSenderVersion, xfer.ProtocolVersion, "sender-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(peerInfo.Ident).To(Equal("receiver-a"))
		Expect(controlCh.Close()).To(Succeed())

		srcDir := filepath.Join(tmpDir, "incoming")
		Expect(os.MkdirAll(srcDir, 0o755)).To(Succeed())
		content := []byte("hello from the sender side")
		srcPath := filepath.Join(srcDir, "greeting.txt")
		Expect(os.WriteFile(srcPath, content, 0o644)).To(Succeed())

		dataGroup := clientRoot.Group("receiver-a/data", multiqueue.Fair)
		dataCh, err := dataGroup.Open(conn)
		Expect(err).NotTo(HaveOccurred())

		outcome, err := xfer.SendFile(dataCh, xfer.SendItem{Path: srcPath, Name: "greeting.txt"}, 8, peerInfo.Version)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(xfer.Succeeded))
		Expect(dataCh.Close()).To(Succeed())

		Eventually(func() ([]byte, error) {
			return os.ReadFile(filepath.Join(tmpDir, "destination", "greeting.txt"))
		}, time.Second).Should(Equal(content))
	})
})
