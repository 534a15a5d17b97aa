package tlsload_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/movsoftware/filerelay/internal/tlsload"
	"github.com/movsoftware/filerelay/pkg/config"
)

// writeKeyPair generates a self-signed leaf certificate and writes it,
// its CA (itself, for this test) and its private key as PEM files under
// dir, returning the three paths Build needs.
func writeKeyPair(dir string) (caFile, certFile, keyFile string) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).NotTo(HaveOccurred())

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "filerelay-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	Expect(err).NotTo(HaveOccurred())

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER, err := x509.MarshalECPrivateKey(key)
	Expect(err).NotTo(HaveOccurred())
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	caFile = filepath.Join(dir, "ca.pem")
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	Expect(os.WriteFile(caFile, certPEM, 0o644)).To(Succeed())
	Expect(os.WriteFile(certFile, certPEM, 0o644)).To(Succeed())
	Expect(os.WriteFile(keyFile, keyPEM, 0o600)).To(Succeed())
	return
}

var _ = Describe("Build", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "tlsload-test-")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("returns nil without error when TLS is disabled", func() {
		tc, err := tlsload.Build(config.TLSConfig{Enabled: false}, tlsload.RoleClient, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(tc).To(BeNil())
	})

	It("builds a usable client config from PEM files", func() {
		ca, cert, key := writeKeyPair(dir)
		tc, err := tlsload.Build(config.TLSConfig{
			Enabled:  true,
			CABundle: ca,
			CertFile: cert,
			KeyFile:  key,
		}, tlsload.RoleClient, "peer.example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(tc.Certificates).To(HaveLen(1))
		Expect(tc.RootCAs).NotTo(BeNil())
		Expect(tc.ServerName).To(Equal("peer.example.com"))
		Expect(tc.ClientAuth).To(Equal(tls.NoClientCert))
	})

	It("requires and verifies client certificates on the server side", func() {
		ca, cert, key := writeKeyPair(dir)
		tc, err := tlsload.Build(config.TLSConfig{
			Enabled:  true,
			CABundle: ca,
			CertFile: cert,
			KeyFile:  key,
		}, tlsload.RoleServer, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(tc.ClientAuth).To(Equal(tls.RequireAndVerifyClientCert))
		Expect(tc.ClientCAs).NotTo(BeNil())
	})

	It("restricts the version range to TLS 1.3 at the ultra security level", func() {
		ca, cert, key := writeKeyPair(dir)
		tc, err := tlsload.Build(config.TLSConfig{
			Enabled:       true,
			CABundle:      ca,
			CertFile:      cert,
			KeyFile:       key,
			SecurityLevel: "ultra",
		}, tlsload.RoleClient, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(tc.MinVersion).To(Equal(uint16(tls.VersionTLS13)))
		Expect(tc.MaxVersion).To(Equal(uint16(tls.VersionTLS13)))
	})

	It("rejects a pkcs12-file configuration outright", func() {
		_, err := tlsload.Build(config.TLSConfig{
			Enabled:    true,
			PKCS12File: "bundle.p12",
		}, tlsload.RoleClient, "")
		Expect(err).To(HaveOccurred())
	})

	It("rejects a missing ca-bundle", func() {
		_, cert, key := writeKeyPair(dir)
		_, err := tlsload.Build(config.TLSConfig{
			Enabled:  true,
			CABundle: filepath.Join(dir, "missing.pem"),
			CertFile: cert,
			KeyFile:  key,
		}, tlsload.RoleClient, "")
		Expect(err).To(HaveOccurred())
	})
})
