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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// prom is the production Recorder: every method updates a
// prometheus.Collector registered against the Registry passed to New.
type prom struct {
	channelsOpen  prometheus.Gauge
	bytesInFlight prometheus.Gauge
	filesTotal    *prometheus.CounterVec
}

const namespace = "filerelay"

// New registers the Recorder's collectors against reg and returns the
// Recorder. reg is typically prometheus.NewRegistry() so a test or a
// second daemon instance in the same process never collides with the
// default global registry.
func New(reg prometheus.Registerer) (Recorder, error) {
	p := &prom{
		channelsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels_open",
			Help:      "Number of transport channels currently open.",
		}),
		bytesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bytes_in_flight",
			Help:      "Bytes admitted into in-flight transfers but not yet released.",
		}),
		filesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "File transfers by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{p.channelsOpen, p.bytesInFlight, p.filesTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *prom) ChannelOpened() { p.channelsOpen.Inc() }
func (p *prom) ChannelClosed() { p.channelsOpen.Dec() }

func (p *prom) BytesAdmitted(n uint64) { p.bytesInFlight.Add(float64(n)) }
func (p *prom) BytesReleased(n uint64) { p.bytesInFlight.Sub(float64(n)) }

func (p *prom) FileSucceeded() { p.filesTotal.WithLabelValues("succeeded").Inc() }

func (p *prom) FileFailed(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	p.filesTotal.WithLabelValues(reason).Inc()
}
