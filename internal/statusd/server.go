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

// Package statusd is the tiny gin-backed HTTP endpoint named in §4.10:
// one process-health probe and one Prometheus scrape target, wrapped in
// the stdlib *http.Server shape internal/supervisor already knows how to
// start and gracefully shut down.
package statusd

import (
	"net/http"
	"time"

	ginsdk "github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status reports the daemon's own view of its health for /healthz; a
// Status with Healthy false is answered with 503. The sender and
// receiver commands always report Healthy true, including during
// shutdown.
type Status struct {
	Role    string `json:"role"`
	Ident   string `json:"ident"`
	Healthy bool   `json:"healthy"`
}

// StatusFunc is polled on every /healthz request rather than snapshotted
// once at startup, so each response carries what it returns at that moment.
type StatusFunc func() Status

// New builds the status/metrics HTTP server. addr is the listen address
// from configuration's metrics-listen field; reg is the Prometheus
// registry internal/metrics.New registered its collectors against.
func New(addr string, reg *prometheus.Registry, status StatusFunc) *http.Server {
	ginsdk.SetMode(ginsdk.ReleaseMode)
	router := ginsdk.New()
	router.Use(ginsdk.Recovery())

	router.GET("/healthz", func(c *ginsdk.Context) {
		s := status()
		code := http.StatusOK
		if !s.Healthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, s)
	})

	router.GET("/metrics", ginsdk.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
