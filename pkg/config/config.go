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

// Package config loads and validates the sender and receiver daemon
// configuration (§6.3): viper reads YAML/TOML/env into the typed structs
// below, and go-playground/validator/v10 enforces the bounds spec.md
// assigns each field, the same pairing the teacher's certificates and
// socket config packages use.
package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	liberr "github.com/movsoftware/filerelay/pkg/errors"
)

// TLSConfig is the shared client/server TLS sub-block (§6.3 "Both: TLS
// inputs"). The CA bundle and cert/key material are file paths here;
// internal/tlsload.Build, called from cmd, reads and decodes them into an
// internal/certs.Config.
type TLSConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	CABundle       string `mapstructure:"ca-bundle" yaml:"ca-bundle" json:"ca-bundle" validate:"required_if=Enabled true"`
	CertFile       string `mapstructure:"cert-file" yaml:"cert-file" json:"cert-file"`
	KeyFile        string `mapstructure:"key-file" yaml:"key-file" json:"key-file"`
	PKCS12File     string `mapstructure:"pkcs12-file" yaml:"pkcs12-file" json:"pkcs12-file"`
	PasswordEnvVar string `mapstructure:"password-env" yaml:"password-env" json:"password-env"`
	CRLFile        string `mapstructure:"crl-file" yaml:"crl-file" json:"crl-file"`
	CipherPriority string `mapstructure:"cipher-priority" yaml:"cipher-priority" json:"cipher-priority"`
	SecurityLevel  string `mapstructure:"security-level" yaml:"security-level" json:"security-level" validate:"omitempty,oneof=low medium high ultra"`
	DebugLevel     int    `mapstructure:"debug-level" yaml:"debug-level" json:"debug-level" validate:"gte=0,lte=99"`
}

// hasCertMaterial reports whether either a PEM pair or a PKCS#12 bundle
// was supplied — used to reject the "half configured" combinations
// spec.md's §9b resolution treats as a hard error rather than a silent
// plaintext fallback.
func (t TLSConfig) hasCertMaterial() bool {
	return (t.CertFile != "" && t.KeyFile != "") || t.PKCS12File != ""
}

// FilterRule pairs an ident with the regular expression selecting which
// incoming files belong to it (§6.3 "filter <ident:regex>").
type FilterRule struct {
	Ident string `mapstructure:"ident" yaml:"ident" json:"ident" validate:"required"`
	Regex string `mapstructure:"regex" yaml:"regex" json:"regex" validate:"required"`
}

// PriorityRule pairs a priority (0-100) with the regex that earns it; the
// first matching rule in declared order wins (§6.3 "priority
// <0..100:regex>; first match wins; default 50").
type PriorityRule struct {
	Priority int    `mapstructure:"priority" yaml:"priority" json:"priority" validate:"gte=0,lte=100"`
	Regex    string `mapstructure:"regex" yaml:"regex" json:"regex" validate:"required"`
}

// LocalDestination is a sender-side mirror directory, optionally scoped
// to files matching one of the sender's filters via Ident.
type LocalDestination struct {
	Ident string `mapstructure:"ident" yaml:"ident" json:"ident"`
	Path  string `mapstructure:"path" yaml:"path" json:"path" validate:"required"`
}

// Peer is one sender-side remote receiver: an identity, the addresses it
// may be reached at, and the filter selecting which incoming files are
// routed to it (spec.md §3 Connection-root attributes: "identity string,
// socket-address set, optional filter regex").
type Peer struct {
	Ident     string   `mapstructure:"ident" yaml:"ident" json:"ident" validate:"required"`
	Addresses []string `mapstructure:"addresses" yaml:"addresses" json:"addresses" validate:"required,min=1,dive,required"`
	Filter    string   `mapstructure:"filter" yaml:"filter" json:"filter"`
}

// SenderConfig is the validated, typed form of §6.3's sender options.
type SenderConfig struct {
	IncomingDir   string             `mapstructure:"incoming-dir" yaml:"incoming-dir" json:"incoming-dir" validate:"required"`
	ProcessingDir string             `mapstructure:"processing-dir" yaml:"processing-dir" json:"processing-dir" validate:"required"`
	ErrorDir      string             `mapstructure:"error-dir" yaml:"error-dir" json:"error-dir" validate:"required"`

	LocalDirectories  []LocalDestination `mapstructure:"local-directory" yaml:"local-directory" json:"local-directory"`
	UniqueLocalCopies bool               `mapstructure:"unique-local-copies" yaml:"unique-local-copies" json:"unique-local-copies"`

	Peers []Peer `mapstructure:"peer" yaml:"peer" json:"peer" validate:"required,min=1,dive"`

	Filters    []FilterRule   `mapstructure:"filter" yaml:"filter" json:"filter"`
	Priorities []PriorityRule `mapstructure:"priority" yaml:"priority" json:"priority" validate:"dive"`

	PollingIntervalSeconds int `mapstructure:"polling-interval" yaml:"polling-interval" json:"polling-interval" validate:"gte=1"`
	SendAttempts           int `mapstructure:"send-attempts" yaml:"send-attempts" json:"send-attempts" validate:"gte=0,lte=65535"`
	BlockSize              int `mapstructure:"block-size" yaml:"block-size" json:"block-size" validate:"gte=256,lte=65535"`

	Ident string `mapstructure:"ident" yaml:"ident" json:"ident" validate:"required"`

	TLS TLSConfig `mapstructure:"tls" yaml:"tls" json:"tls"`

	LogLevel       string `mapstructure:"log-level" yaml:"log-level" json:"log-level" validate:"omitempty,oneof=debug info warning error fatal"`
	LogFormat      string `mapstructure:"log-format" yaml:"log-format" json:"log-format" validate:"omitempty,oneof=text json"`
	MetricsListen  string `mapstructure:"metrics-listen" yaml:"metrics-listen" json:"metrics-listen"`
	MetricsEnabled bool   `mapstructure:"metrics-enabled" yaml:"metrics-enabled" json:"metrics-enabled"`
}

// ReceiverConfig is the validated, typed form of §6.3's receiver options.
type ReceiverConfig struct {
	ListenAddresses []string `mapstructure:"listen" yaml:"listen" json:"listen" validate:"required,min=1,dive,required"`

	DestinationDir        string   `mapstructure:"destination-dir" yaml:"destination-dir" json:"destination-dir" validate:"required"`
	DuplicateDestinations []string `mapstructure:"duplicate-destination" yaml:"duplicate-destination" json:"duplicate-destination"`
	UniqueDuplicates      bool     `mapstructure:"unique-duplicates" yaml:"unique-duplicates" json:"unique-duplicates"`

	FreespaceMinimum   uint64  `mapstructure:"freespace-minimum" yaml:"freespace-minimum" json:"freespace-minimum"`
	SpaceMaximumPercent float64 `mapstructure:"space-maximum-percent" yaml:"space-maximum-percent" json:"space-maximum-percent" validate:"gte=0,lte=100"`

	PostCommand string `mapstructure:"post-command" yaml:"post-command" json:"post-command"`

	KeepaliveSeconds int `mapstructure:"keepalive-seconds" yaml:"keepalive-seconds" json:"keepalive-seconds" validate:"gte=0"`

	Ident string `mapstructure:"ident" yaml:"ident" json:"ident" validate:"required"`

	TLS TLSConfig `mapstructure:"tls" yaml:"tls" json:"tls"`

	LogLevel       string `mapstructure:"log-level" yaml:"log-level" json:"log-level" validate:"omitempty,oneof=debug info warning error fatal"`
	LogFormat      string `mapstructure:"log-format" yaml:"log-format" json:"log-format" validate:"omitempty,oneof=text json"`
	MetricsListen  string `mapstructure:"metrics-listen" yaml:"metrics-listen" json:"metrics-listen"`
	MetricsEnabled bool   `mapstructure:"metrics-enabled" yaml:"metrics-enabled" json:"metrics-enabled"`
}

var validate = validator.New()

func applyDefaults(v *viper.Viper) {
	v.SetDefault("polling-interval", 15)
	v.SetDefault("send-attempts", 5)
	v.SetDefault("block-size", 8192)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("keepalive-seconds", 30)
}

// LoadSender reads a sender configuration from path (YAML/TOML/JSON,
// detected by extension), lets environment variables prefixed
// FILERELAY_SENDER_ override its values, and validates the result.
func LoadSender(path string) (*SenderConfig, error) {
	v := viper.New()
	applyDefaults(v)
	v.SetEnvPrefix("filerelay_sender")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, liberr.Wrap(liberr.KindGeneric, liberr.MinPkgConfig+1, "read sender config failed", err)
		}
	}

	var cfg SenderConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, liberr.Wrap(liberr.KindGeneric, liberr.MinPkgConfig+2, "decode sender config failed", err)
	}
	if err := validateTLS(cfg.TLS); err != nil {
		return nil, err
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, liberr.Wrap(liberr.KindGeneric, liberr.MinPkgConfig+3, "validate sender config failed", err)
	}
	return &cfg, nil
}

// LoadReceiver reads a receiver configuration the same way LoadSender
// does, with the FILERELAY_RECEIVER_ environment prefix.
func LoadReceiver(path string) (*ReceiverConfig, error) {
	v := viper.New()
	applyDefaults(v)
	v.SetEnvPrefix("filerelay_receiver")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, liberr.Wrap(liberr.KindGeneric, liberr.MinPkgConfig+4, "read receiver config failed", err)
		}
	}

	var cfg ReceiverConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, liberr.Wrap(liberr.KindGeneric, liberr.MinPkgConfig+5, "decode receiver config failed", err)
	}
	if err := validateTLS(cfg.TLS); err != nil {
		return nil, err
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, liberr.Wrap(liberr.KindGeneric, liberr.MinPkgConfig+6, "validate receiver config failed", err)
	}
	return &cfg, nil
}

// validateTLS rejects a half-specified TLS block outright (§9b: "partial
// TLS configuration is a hard error ... never a silent fallback to
// plaintext TCP").
func validateTLS(t TLSConfig) error {
	if !t.Enabled {
		return nil
	}
	if t.CABundle == "" {
		return liberr.New(liberr.KindGeneric, liberr.MinPkgConfig+7, "tls enabled without a CA bundle")
	}
	if !t.hasCertMaterial() {
		return liberr.New(liberr.KindGeneric, liberr.MinPkgConfig+8, "tls enabled without certificate material (cert+key or pkcs12)")
	}
	if t.PKCS12File != "" && t.PasswordEnvVar == "" {
		return liberr.New(liberr.KindGeneric, liberr.MinPkgConfig+9, "pkcs12 bundle configured without a password environment variable")
	}
	return nil
}
