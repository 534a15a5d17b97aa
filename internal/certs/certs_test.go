package certs_test

import (
	"crypto/tls"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/movsoftware/filerelay/internal/certs"
)

var _ = Describe("Config", func() {
	It("defaults to TLS 1.2 through 1.3", func() {
		c := certs.New()
		tc := c.TLS("peer.example.com")
		Expect(tc.MinVersion).To(Equal(uint16(tls.VersionTLS12)))
		Expect(tc.MaxVersion).To(Equal(uint16(tls.VersionTLS13)))
		Expect(tc.ServerName).To(Equal("peer.example.com"))
	})

	It("snapshots certificates at TLS() call time", func() {
		c := certs.New()
		c.AddCertificate(tls.Certificate{})
		tc := c.TLS("")
		Expect(tc.Certificates).To(HaveLen(1))

		c.AddCertificate(tls.Certificate{})
		Expect(tc.Certificates).To(HaveLen(1), "earlier snapshot must not observe later mutation")
	})

	It("applies the configured client auth mode", func() {
		c := certs.New()
		c.SetClientAuth(certs.RequireAndVerifyClientCert)
		Expect(c.TLS("").ClientAuth).To(Equal(tls.RequireAndVerifyClientCert))
	})
})
