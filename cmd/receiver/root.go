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

// Command filerelay-receiver is the §4.9 receiver daemon: it listens for
// inbound connections, completes the per-connection handshake once, and
// drives the §4.5 receive state machine on every file channel a sender
// opens afterward.
package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/movsoftware/filerelay/internal/metrics"
	"github.com/movsoftware/filerelay/internal/receiverengine"
	"github.com/movsoftware/filerelay/internal/statusd"
	"github.com/movsoftware/filerelay/internal/supervisor"
	"github.com/movsoftware/filerelay/internal/tlsload"
	"github.com/movsoftware/filerelay/internal/transport"
	"github.com/movsoftware/filerelay/pkg/config"
	"github.com/movsoftware/filerelay/pkg/logger"
)

// newRootCommand builds the receiver's cobra.Command; see cmd/sender's
// newRootCommand for why flags are applied as post-load overrides rather
// than bound through viper.BindPFlag.
func newRootCommand() *cobra.Command {
	var (
		cfgFile   string
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "filerelay-receiver",
		Short: "Run the filerelay receiver daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadReceiver(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			return runReceiver(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the receiver configuration file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log-level (debug|info|warning|error|fatal)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override the configured log-format (text|json)")
	_ = cmd.MarkPersistentFlagRequired("config")

	return cmd
}

// runReceiver wires one receiver engine, its inbound listener, metrics
// registry and optional status endpoint into a
// internal/supervisor.Supervisor and blocks until it shuts down.
func runReceiver(ctx context.Context, cfg *config.ReceiverConfig) error {
	log := logger.NewWithFormat(os.Stderr, logger.Fields{"role": "receiver", "ident": cfg.Ident}, cfg.LogFormat)
	log.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.BridgeJWW(log, logger.WarnLevel)

	tlsConfig, err := tlsload.Build(cfg.TLS, tlsload.RoleServer, "")
	if err != nil {
		return err
	}

	root := transport.NewRoot(log)
	listener := transport.NewListener(root, int32(cfg.KeepaliveSeconds), log)

	specs := make([]transport.ListenSpec, len(cfg.ListenAddresses))
	for i, addr := range cfg.ListenAddresses {
		specs[i] = transport.ListenSpec{Address: addr, TLSConfig: tlsConfig}
	}

	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	if err != nil {
		return err
	}

	engine := receiverengine.New(cfg, root, log, rec)

	supCfg := supervisor.Config{
		Root:            root,
		Listener:        listener,
		ListenSpecs:     specs,
		Engine:          engine,
		ShutdownTimeout: 10 * time.Second,
		Log:             log,
	}

	if cfg.MetricsEnabled {
		status := func() statusd.Status {
			return statusd.Status{Role: "receiver", Ident: cfg.Ident, Healthy: true}
		}
		supCfg.StatusServer = statusd.New(cfg.MetricsListen, reg, status)
	}

	return supervisor.New(supCfg).Run(ctx)
}
