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

// Command filerelay-sender is the §4.8 sender daemon: it watches an
// incoming directory, routes each file to the configured local mirrors
// and peer queues, and keeps one worker per peer dialing out and
// streaming files over the custom transport.
package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/movsoftware/filerelay/internal/metrics"
	"github.com/movsoftware/filerelay/internal/senderengine"
	"github.com/movsoftware/filerelay/internal/statusd"
	"github.com/movsoftware/filerelay/internal/supervisor"
	"github.com/movsoftware/filerelay/internal/tlsload"
	"github.com/movsoftware/filerelay/internal/transport"
	"github.com/movsoftware/filerelay/pkg/config"
	"github.com/movsoftware/filerelay/pkg/logger"
)

// newRootCommand builds the sender's cobra.Command. Flags are bound
// directly rather than through viper.BindPFlag (unlike the teacher's
// per-component RegisterFlag pattern), because LoadSender/LoadReceiver
// already own a dedicated viper instance per call; a flag's value, when
// set, is applied as a post-load override instead.
func newRootCommand() *cobra.Command {
	var (
		cfgFile   string
		logLevel  string
		logFormat string
		progress  bool
	)

	cmd := &cobra.Command{
		Use:   "filerelay-sender",
		Short: "Run the filerelay sender daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSender(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			return runSender(cmd.Context(), cfg, progress)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the sender configuration file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log-level (debug|info|warning|error|fatal)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override the configured log-format (text|json)")
	cmd.PersistentFlags().BoolVar(&progress, "progress", false, "render a live progress display of bytes in flight, open channels and files sent")
	_ = cmd.MarkPersistentFlagRequired("config")

	return cmd
}

// runSender wires one sender engine, its metrics registry, optional
// status endpoint and optional progress display into a
// internal/supervisor.Supervisor and blocks until it shuts down.
func runSender(ctx context.Context, cfg *config.SenderConfig, progress bool) error {
	log := logger.NewWithFormat(os.Stderr, logger.Fields{"role": "sender", "ident": cfg.Ident}, cfg.LogFormat)
	log.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.BridgeJWW(log, logger.WarnLevel)

	tlsConfig, err := tlsload.Build(cfg.TLS, tlsload.RoleClient, "")
	if err != nil {
		return err
	}

	root := transport.NewRoot(log)

	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	if err != nil {
		return err
	}

	engine, err := senderengine.New(cfg, root, tlsConfig, log, rec)
	if err != nil {
		return err
	}

	supCfg := supervisor.Config{
		Root:            root,
		Engine:          engine,
		ShutdownTimeout: 10 * time.Second,
		Log:             log,
	}

	if cfg.MetricsEnabled {
		status := func() statusd.Status {
			return statusd.Status{Role: "sender", Ident: cfg.Ident, Healthy: true}
		}
		supCfg.StatusServer = statusd.New(cfg.MetricsListen, reg, status)
	}

	if progress {
		progCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go runProgress(progCtx, reg)
	}

	return supervisor.New(supCfg).Run(ctx)
}
