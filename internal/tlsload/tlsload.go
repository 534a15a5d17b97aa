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

// Package tlsload is the filesystem-facing half of the daemons' TLS
// setup: it reads the PEM files named by a pkg/config.TLSConfig and
// hands the decoded material to internal/certs.Config, which is the only
// part that actually assembles a *tls.Config. PKCS#12 and CRL material
// is named in pkg/config.TLSConfig but decoding those formats is out of
// scope (§ Non-goals), so Build refuses to start rather than silently
// ignoring them.
package tlsload

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/movsoftware/filerelay/internal/certs"
	"github.com/movsoftware/filerelay/pkg/config"
	liberr "github.com/movsoftware/filerelay/pkg/errors"
)

// Role tells Build which side of the handshake it is preparing
// credentials for; both sides authenticate the peer mandatorily
// (spec.md §3.x "certificate verification must be mandatory
// server-to-client and client-to-server"), so the only difference is
// whether the server's ClientAuth requirement is set.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Build reads cfg's CA bundle and certificate/key pair from disk and
// returns a ready-to-use *tls.Config. It returns (nil, nil) when TLS is
// disabled, so callers can pass the result straight into
// internal/transport.Dial/ListenSpec without a nil check of their own.
func Build(cfg config.TLSConfig, role Role, serverName string) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.PKCS12File != "" {
		return nil, liberr.New(liberr.KindGeneric, liberr.MinPkgCmd+1, "pkcs12 bundles are not supported; supply cert-file/key-file instead")
	}
	if cfg.CRLFile != "" {
		return nil, liberr.New(liberr.KindGeneric, liberr.MinPkgCmd+2, "crl-file is not supported")
	}

	c := certs.New()

	caPEM, err := os.ReadFile(cfg.CABundle)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindSystem, liberr.MinPkgCmd+3, "read ca-bundle failed", err)
	}
	roots, err := decodeCertificates(caPEM)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindGeneric, liberr.MinPkgCmd+4, "decode ca-bundle failed", err)
	}
	for _, root := range roots {
		c.AddRootCA(root)
		// The same CA bundle issues both peer identities in this system
		// (§3.x: a single authenticated fabric, not a public CA chain),
		// so it also anchors client-certificate verification on the
		// receiver side.
		c.AddClientCA(root)
	}

	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, liberr.New(liberr.KindGeneric, liberr.MinPkgCmd+5, "tls enabled without cert-file/key-file")
	}
	pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindGeneric, liberr.MinPkgCmd+6, "load cert-file/key-file failed", err)
	}
	c.AddCertificate(pair)

	applySecurityLevel(c, cfg.SecurityLevel, cfg.CipherPriority)
	if role == RoleServer {
		c.SetClientAuth(certs.RequireAndVerifyClientCert)
	}

	return c.TLS(serverName), nil
}

// decodeCertificates parses every CERTIFICATE PEM block in bundle,
// skipping blocks of any other type so a bundle file can carry comments
// or unrelated PEM material without tripping the loader.
func decodeCertificates(bundle []byte) ([]*x509.Certificate, error) {
	var out []*x509.Certificate
	for len(bundle) > 0 {
		var block *pem.Block
		block, bundle = pem.Decode(bundle)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	if len(out) == 0 {
		return nil, liberr.New(liberr.KindGeneric, liberr.MinPkgCmd+7, "no CERTIFICATE blocks found")
	}
	return out, nil
}

// applySecurityLevel maps the four named levels (§6.3 "security-level
// low|medium|high|ultra") onto a TLS version floor/ceiling ("high" and
// "ultra" allow TLS 1.3 only) and, for "ultra", restricts key exchange to
// the X25519 curve; no cipher suite list is set for it. An empty
// level defaults to "medium". cipherPriority "compat" widens "low"/
// "medium" to also offer the CBC suites Go still implements, for peers
// that cannot be upgraded; any other value (including "modern" and "")
// leaves Go's own suite ordering in place.
func applySecurityLevel(c *certs.Config, level, cipherPriority string) {
	switch level {
	case "low":
		c.SetVersionRange(tls.VersionTLS12, tls.VersionTLS13)
	case "high", "ultra":
		c.SetVersionRange(tls.VersionTLS13, tls.VersionTLS13)
	default: // "medium" or unset
		c.SetVersionRange(tls.VersionTLS12, tls.VersionTLS13)
	}

	if level == "ultra" {
		c.SetCurvePreferences([]tls.CurveID{tls.X25519})
	}

	if cipherPriority == "compat" && (level == "low" || level == "medium" || level == "") {
		c.SetCipherSuites([]uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
			tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
			tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
		})
	}
}
