package logger_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/movsoftware/filerelay/pkg/logger"
)

var _ = Describe("Logger", func() {
	It("writes text entries by default", func() {
		var buf bytes.Buffer
		l := logger.New(&buf, logger.Fields{"ident": "sender-a"})
		l.Info("started", nil, nil)
		Expect(buf.String()).To(ContainSubstring("started"))
		Expect(buf.String()).To(ContainSubstring("ident=sender-a"))
	})

	It("writes JSON entries when asked", func() {
		var buf bytes.Buffer
		l := logger.NewWithFormat(&buf, nil, "json")
		l.Error("send failed", errors.New("boom"), logger.Fields{"file": "a.txt"})
		Expect(buf.String()).To(ContainSubstring(`"msg":"send failed"`))
		Expect(buf.String()).To(ContainSubstring(`"file":"a.txt"`))
	})

	It("merges WithFields onto the parent's own fields", func() {
		var buf bytes.Buffer
		l := logger.New(&buf, logger.Fields{"ident": "sender-a"}).WithFields(logger.Fields{"peer": "receiver-a"})
		l.Debug("x", nil, nil)
		l.SetLevel(logger.DebugLevel)
		l.Debug("y", nil, nil)
		Expect(buf.String()).To(ContainSubstring("ident=sender-a"))
		Expect(buf.String()).To(ContainSubstring("peer=receiver-a"))
	})

	DescribeTable("ParseLevel",
		func(in string, want logger.Level) {
			Expect(logger.ParseLevel(in)).To(Equal(want))
		},
		Entry("debug", "debug", logger.DebugLevel),
		Entry("info", "info", logger.InfoLevel),
		Entry("warning", "warning", logger.WarnLevel),
		Entry("error", "error", logger.ErrorLevel),
		Entry("fatal", "fatal", logger.FatalLevel),
		Entry("unknown defaults to info", "bogus", logger.InfoLevel),
		Entry("empty defaults to info", "", logger.InfoLevel),
	)
})
