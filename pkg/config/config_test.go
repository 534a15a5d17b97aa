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

package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/movsoftware/filerelay/pkg/config"
)

const senderYAML = `
ident: sender-a
incoming-dir: /tmp/incoming
processing-dir: /tmp/processing
error-dir: /tmp/error
peer:
  - ident: receiver-a
    addresses: ["receiver.local:9443"]
`

const receiverYAML = `
ident: receiver-a
listen: ["0.0.0.0:9443"]
destination-dir: /tmp/dest
`

func writeFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	return path
}

var _ = Describe("LoadSender", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "config-test-")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("loads a minimal sender config and applies defaults", func() {
		path := writeFile(dir, "sender.yaml", senderYAML)
		cfg, err := config.LoadSender(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.PollingIntervalSeconds).To(Equal(15))
		Expect(cfg.SendAttempts).To(Equal(5))
		Expect(cfg.BlockSize).To(Equal(8192))
		Expect(cfg.Peers).To(HaveLen(1))
		Expect(cfg.Peers[0].Ident).To(Equal("receiver-a"))
	})

	It("rejects a sender config with no peers", func() {
		path := writeFile(dir, "sender.yaml", `
ident: sender-a
incoming-dir: /tmp/incoming
processing-dir: /tmp/processing
error-dir: /tmp/error
`)
		_, err := config.LoadSender(path)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a half-configured TLS block", func() {
		path := writeFile(dir, "sender.yaml", senderYAML+"\ntls:\n  enabled: true\n")
		_, err := config.LoadSender(path)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("LoadReceiver", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "config-test-")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("loads a minimal receiver config and applies defaults", func() {
		path := writeFile(dir, "receiver.yaml", receiverYAML)
		cfg, err := config.LoadReceiver(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.KeepaliveSeconds).To(Equal(30))
		Expect(cfg.DestinationDir).To(Equal("/tmp/dest"))
	})

	It("rejects a space-maximum-percent outside 0-100", func() {
		path := writeFile(dir, "receiver.yaml", receiverYAML+"\nspace-maximum-percent: 150\n")
		_, err := config.LoadReceiver(path)
		Expect(err).To(HaveOccurred())
	})
})
