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

// Package certs is a thread-safe TLS configuration builder used by both
// daemons' transport listeners and dialers. It accepts already-decoded
// tls.Certificate/x509.CertPool material — parsing PEM/PKCS12 files is
// out of scope (§ Non-goals) — and assembles a *tls.Config the way
// nabbar-golib/certificates assembles one, minus the encoding-format and
// CA-parsing machinery that package layers on top.
package certs

import (
	"crypto/tls"
	"crypto/x509"
	"io"
	"sync"
)

// ClientAuth mirrors the five modes crypto/tls exposes, named the way
// nabbar-golib/certificates/auth does so config files read naturally.
type ClientAuth int

const (
	NoClientCert ClientAuth = iota
	RequestClientCert
	RequireAnyClientCert
	VerifyClientCertIfGiven
	RequireAndVerifyClientCert
)

func (a ClientAuth) native() tls.ClientAuthType {
	switch a {
	case RequestClientCert:
		return tls.RequestClientCert
	case RequireAnyClientCert:
		return tls.RequireAnyClientCert
	case VerifyClientCertIfGiven:
		return tls.VerifyClientCertIfGiven
	case RequireAndVerifyClientCert:
		return tls.RequireAndVerifyClientCert
	default:
		return tls.NoClientCert
	}
}

// Config accumulates certificate material and TLS parameters, producing
// a *tls.Config on demand. Every method is safe for concurrent use.
type Config struct {
	mu sync.RWMutex

	rand io.Reader

	certs []tls.Certificate

	rootCA   *x509.CertPool
	clientCA *x509.CertPool

	clientAuth ClientAuth

	minVersion uint16
	maxVersion uint16

	cipherSuites             []uint16
	curves                   []tls.CurveID
	dynamicRecordSizeDisable bool
	sessionTicketsDisabled   bool
}

// New returns a Config defaulting to TLS 1.2 as the floor and TLS 1.3 as
// the ceiling, matching nabbar-golib/certificates.New's defaults.
func New() *Config {
	return &Config{
		minVersion: tls.VersionTLS12,
		maxVersion: tls.VersionTLS13,
	}
}

// RegisterRand overrides the TLS connection's source of randomness.
func (c *Config) RegisterRand(r io.Reader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rand = r
}

// AddCertificate registers one already-parsed certificate/key pair.
func (c *Config) AddCertificate(cert tls.Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.certs = append(c.certs, cert)
}

// LenCertificates reports how many certificate pairs are registered.
func (c *Config) LenCertificates() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.certs)
}

// AddRootCA adds one already-parsed CA certificate to the pool used to
// verify the peer (client-side: the server's identity).
func (c *Config) AddRootCA(cert *x509.Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rootCA == nil {
		c.rootCA = x509.NewCertPool()
	}
	c.rootCA.AddCert(cert)
}

// AddClientCA adds one already-parsed CA certificate to the pool used to
// verify connecting clients (server-side mutual TLS).
func (c *Config) AddClientCA(cert *x509.Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clientCA == nil {
		c.clientCA = x509.NewCertPool()
	}
	c.clientCA.AddCert(cert)
}

// SetClientAuth sets the server-side client-certificate requirement.
func (c *Config) SetClientAuth(a ClientAuth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientAuth = a
}

// SetVersionRange sets the negotiated TLS version floor/ceiling.
func (c *Config) SetVersionRange(min, max uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minVersion = min
	c.maxVersion = max
}

// SetCipherSuites overrides the offered cipher suite list; an empty list
// leaves Go's own default selection in place.
func (c *Config) SetCipherSuites(suites []uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cipherSuites = suites
}

// SetCurvePreferences overrides the ECDHE curve preference order.
func (c *Config) SetCurvePreferences(curves []tls.CurveID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.curves = curves
}

// SetDynamicRecordSizingDisabled toggles TLS dynamic record sizing.
func (c *Config) SetDynamicRecordSizingDisabled(flag bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dynamicRecordSizeDisable = flag
}

// SetSessionTicketsDisabled toggles TLS session ticket resumption.
func (c *Config) SetSessionTicketsDisabled(flag bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionTicketsDisabled = flag
}

// TLS builds a fresh *tls.Config for the given server name, snapshotting
// the Config's current state. Later mutation of Config does not affect a
// config already returned by TLS.
func (c *Config) TLS(serverName string) *tls.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &tls.Config{
		Rand:                        c.rand,
		Certificates:                append([]tls.Certificate(nil), c.certs...),
		RootCAs:                     c.rootCA,
		ClientCAs:                   c.clientCA,
		ClientAuth:                  c.clientAuth.native(),
		MinVersion:                  c.minVersion,
		MaxVersion:                  c.maxVersion,
		CipherSuites:                c.cipherSuites,
		CurvePreferences:            c.curves,
		DynamicRecordSizingDisabled: c.dynamicRecordSizeDisable,
		SessionTicketsDisabled:      c.sessionTicketsDisabled,
		ServerName:                  serverName,
	}
}
