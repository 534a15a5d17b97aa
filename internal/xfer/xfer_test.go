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

package xfer_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/movsoftware/filerelay/internal/diskspace"
	"github.com/movsoftware/filerelay/internal/multiqueue"
	"github.com/movsoftware/filerelay/internal/transport"
	"github.com/movsoftware/filerelay/internal/wire"
	"github.com/movsoftware/filerelay/internal/xfer"
)

// memInProgress is a trivial in-memory xfer.InProgress for tests; the real
// implementation lives in internal/receiverengine and is shared across an
// entire process rather than scoped to one test.
type memInProgress struct {
	mu  sync.Mutex
	set map[uint64]bool

	createMu sync.Mutex
}

func newMemInProgress() *memInProgress { return &memInProgress{set: map[uint64]bool{}} }

func (m *memInProgress) TryRegister(ino uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.set[ino] {
		return false
	}
	m.set[ino] = true
	return true
}

func (m *memInProgress) Contains(ino uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set[ino]
}

func (m *memInProgress) Release(ino uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.set, ino)
}

func (m *memInProgress) Lock()   { m.createMu.Lock() }
func (m *memInProgress) Unlock() { m.createMu.Unlock() }

var _ = Describe("send/receive round trip", func() {
	var (
		serverRoot *transport.Root
		clientRoot *transport.Root
		ln         *transport.Listener
		addr       string
		tmpDir     string
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

		tmpDir, err = os.MkdirTemp("", "xfer-test-")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(ln.Close()).To(Succeed())
		serverRoot.Close()
		clientRoot.Close()
		Expect(os.RemoveAll(tmpDir)).To(Succeed())
	})

	openChannelPair := func(name string) (*transport.Channel, *transport.Channel) {
		conn, err := transport.Dial(context.Background(), addr, nil, clientRoot, 30, nil)
		Expect(err).NotTo(HaveOccurred())

		var serverConn *transport.Connection
		Eventually(serverRoot.Accepted(), time.Second).Should(Receive(&serverConn))

		clientGroup := clientRoot.Group(name, multiqueue.Fair)
		clientCh, err := clientGroup.Open(conn)
		Expect(err).NotTo(HaveOccurred())

		serverGroup := serverRoot.Group(name, multiqueue.Fair)
		var serverCh *transport.Channel
		Eventually(serverGroup.Adopted(), time.Second).Should(Receive(&serverCh))
		return clientCh, serverCh
	}

	It("transfers a small file end to end", func() {
		clientCh, serverCh := openChannelPair("xfer/round-trip")

		srcDir := filepath.Join(tmpDir, "incoming")
		dstDir := filepath.Join(tmpDir, "destination")
		Expect(os.MkdirAll(srcDir, 0o755)).To(Succeed())
		Expect(os.MkdirAll(dstDir, 0o755)).To(Succeed())

		content := []byte("the quick brown fox jumps over the lazy dog")
		srcPath := filepath.Join(srcDir, "fox.txt")
		Expect(os.WriteFile(srcPath, content, 0o644)).To(Succeed())

		sess := &xfer.ReceiveSession{
			DestinationDir: dstDir,
			InProgress:     newMemInProgress(),
			PeerVersion:    xfer.ProtocolVersion,
		}

		var recvResult xfer.SessionResult
		done := make(chan struct{})
		go func() {
			defer close(done)
			recvResult = xfer.RunReceiveLoop(serverCh, sess)
		}()

		outcome, err := xfer.SendFile(clientCh, xfer.SendItem{Path: srcPath, Name: "fox.txt"}, 8, xfer.ProtocolVersion)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(xfer.Succeeded))

		Expect(clientCh.Close()).To(Succeed())
		Eventually(done, time.Second).Should(BeClosed())
		Expect(recvResult).To(Equal(xfer.SessionTransfers))

		got, err := os.ReadFile(filepath.Join(dstDir, "fox.txt"))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(content))

		_, err = os.Stat(srcPath)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("caps the block size at the wire's payload limit instead of rejecting the send", func() {
		clientCh, serverCh := openChannelPair("xfer/block-size-boundary")

		srcDir := filepath.Join(tmpDir, "incoming")
		dstDir := filepath.Join(tmpDir, "destination")
		Expect(os.MkdirAll(srcDir, 0o755)).To(Succeed())
		Expect(os.MkdirAll(dstDir, 0o755)).To(Succeed())

		content := make([]byte, wire.MaxBodySize+5000)
		for i := range content {
			content[i] = byte(i)
		}
		srcPath := filepath.Join(srcDir, "big.bin")
		Expect(os.WriteFile(srcPath, content, 0o644)).To(Succeed())

		sess := &xfer.ReceiveSession{
			DestinationDir: dstDir,
			InProgress:     newMemInProgress(),
			PeerVersion:    xfer.ProtocolVersion,
		}

		var recvResult xfer.SessionResult
		done := make(chan struct{})
		go func() {
			defer close(done)
			recvResult = xfer.RunReceiveLoop(serverCh, sess)
		}()

		// blockSize is the documented maximum the config validator
		// accepts (gte=256,lte=65535); SendFile must not hand this
		// straight to wire.NewScatter once the FILE_BLOCK header is
		// added on top.
		outcome, err := xfer.SendFile(clientCh, xfer.SendItem{Path: srcPath, Name: "big.bin"}, uint32(wire.MaxBodySize), xfer.ProtocolVersion)
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(xfer.Succeeded))

		Expect(clientCh.Close()).To(Succeed())
		Eventually(done, time.Second).Should(BeClosed())
		Expect(recvResult).To(Equal(xfer.SessionTransfers))

		got, err := os.ReadFile(filepath.Join(dstDir, "big.bin"))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(content))
	})

	It("rejects a disk-space admission failure with DUPLICATE_FILE, not REJECT_FILE", func() {
		clientCh, serverCh := openChannelPair("xfer/duplicate-on-admission")

		dstDir := filepath.Join(tmpDir, "destination")
		Expect(os.MkdirAll(dstDir, 0o755)).To(Succeed())

		denyAll := func(path string) (*disk.UsageStat, error) {
			return &disk.UsageStat{Total: 100, Used: 100, Free: 0}, nil
		}
		admitter := diskspace.NewAdmitterWithUsage(diskspace.Limits{MinFreeBytes: 1}, nil, denyAll)

		sess := &xfer.ReceiveSession{
			DestinationDir: dstDir,
			Admitter:       admitter,
			InProgress:     newMemInProgress(),
			PeerVersion:    xfer.ProtocolVersion,
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			xfer.RunReceiveLoop(serverCh, sess)
		}()

		body := xfer.EncodeNewFile(xfer.NewFileInfo{Size: 10, BlockSize: 256, Mode: 0o644, Name: "dup.txt"})
		Expect(clientCh.Send(uint16(xfer.ConnNewFile), [][]byte{body})).To(Succeed())

		reply, err := clientCh.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(xfer.MessageType(reply.Header.Type)).To(Equal(xfer.ConnDuplicateFile))

		Expect(clientCh.Close()).To(Succeed())
		Eventually(done, time.Second).Should(BeClosed())
	})
})
