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

package statusd_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/movsoftware/filerelay/internal/metrics"
	"github.com/movsoftware/filerelay/internal/statusd"
)

func TestStatusd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "statusd Suite")
}

var _ = Describe("New", func() {
	var (
		reg    *prometheus.Registry
		srv    *http.Server
		ts     *httptest.Server
		status statusd.Status
	)

	BeforeEach(func() {
		reg = prometheus.NewRegistry()
		_, err := metrics.New(reg)
		Expect(err).NotTo(HaveOccurred())

		status = statusd.Status{Role: "sender", Ident: "sender-a", Healthy: true}
		srv = statusd.New("127.0.0.1:0", reg, func() statusd.Status { return status })
		ts = httptest.NewServer(srv.Handler)
	})

	AfterEach(func() {
		ts.Close()
	})

	It("reports healthy on /healthz while the daemon is up", func() {
		resp, err := http.Get(ts.URL + "/healthz")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var body statusd.Status
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body).To(Equal(status))
	})

	It("reports 503 once the status function flips to unhealthy", func() {
		status.Healthy = false

		resp, err := http.Get(ts.URL + "/healthz")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
	})

	It("serves Prometheus metrics on /metrics", func() {
		resp, err := http.Get(ts.URL + "/metrics")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("text/plain"))
	})
})
