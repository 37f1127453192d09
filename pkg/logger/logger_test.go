package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/logger"
)

// decodeLines parses every JSON record written to buf.
func decodeLines(buf *bytes.Buffer) []map[string]any {
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		Expect(json.Unmarshal([]byte(line), &rec)).To(Succeed())
		records = append(records, rec)
	}
	return records
}

var _ = Describe("New", func() {
	var buf bytes.Buffer

	BeforeEach(func() {
		buf.Reset()
	})

	DescribeTable("levels",
		func(debug bool, expectDebug bool) {
			l := logger.New(logger.WithWriter(&buf), logger.WithDebug(debug))
			l.Debug("chunking detail")
			l.Info("document indexed", "chunks", 12)

			Expect(buf.String()).To(ContainSubstring("document indexed"))
			Expect(buf.String()).To(ContainSubstring("chunks=12"))
			if expectDebug {
				Expect(buf.String()).To(ContainSubstring("chunking detail"))
			} else {
				Expect(buf.String()).NotTo(ContainSubstring("chunking detail"))
			}
		},
		Entry("info by default", false, false),
		Entry("debug when enabled", true, true),
	)

	It("writes JSON records", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
		l.With("component", "retrieval").WithGroup("index").Info("indexed", "source", "report.pdf")

		records := decodeLines(&buf)
		Expect(records).To(HaveLen(1))
		Expect(records[0]).To(HaveKeyWithValue("msg", "indexed"))
		Expect(records[0]).To(HaveKeyWithValue("component", "retrieval"))
		Expect(records[0]).To(HaveKeyWithValue("index", HaveKeyWithValue("source", "report.pdf")))
	})

	It("prefers JSON over pretty output", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithJSON(true))
		l.Info("searched", "results", 3)

		Expect(decodeLines(&buf)[0]).To(HaveKeyWithValue("results", BeNumerically("==", 3)))
	})

	It("renders pretty output", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
		l.Info("listening", "addr", ":8081")

		Expect(buf.String()).To(ContainSubstring("listening"))
		Expect(buf.String()).To(ContainSubstring(":8081"))
	})

	It("fans out to several writers", func() {
		var other bytes.Buffer
		l := logger.New(logger.WithWriters(&buf, &other))
		l.Info("upload stored")

		Expect(buf.String()).To(ContainSubstring("upload stored"))
		Expect(other.String()).To(Equal(buf.String()))
	})

	It("reports the caller when asked", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithSource(true))
		l.Info("with source")

		Expect(decodeLines(&buf)[0]).To(HaveKey(slog.SourceKey))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		l := logger.Nop()
		for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelError} {
			Expect(l.Handler().Enabled(context.Background(), level)).To(BeFalse())
		}
		Expect(func() {
			l.With("k", "v").WithGroup("g").Error("dropped")
		}).NotTo(Panic())
	})
})

var _ = Describe("Multi", func() {
	It("sends each record to every handler that accepts its level", func() {
		var terminal, file bytes.Buffer
		multi := logger.Multi(
			logger.New(logger.WithWriter(&terminal)),
			logger.New(logger.WithWriter(&file), logger.WithJSON(true), logger.WithDebug(true)),
		)

		multi.Debug("embedding batch", "size", 32)
		multi.Info("index ready")

		Expect(terminal.String()).NotTo(ContainSubstring("embedding batch"))
		Expect(terminal.String()).To(ContainSubstring("index ready"))

		records := decodeLines(&file)
		Expect(records).To(HaveLen(2))
		Expect(records[0]).To(HaveKeyWithValue("msg", "embedding batch"))
	})

	It("carries attributes and groups to every handler", func() {
		var a, b bytes.Buffer
		multi := logger.Multi(
			logger.New(logger.WithWriter(&a), logger.WithJSON(true)),
			logger.New(logger.WithWriter(&b), logger.WithJSON(true)),
		)

		multi.With("component", "watch").WithGroup("file").Info("changed", "path", "in.pdf")

		for _, buf := range []*bytes.Buffer{&a, &b} {
			rec := decodeLines(buf)[0]
			Expect(rec).To(HaveKeyWithValue("component", "watch"))
			Expect(rec).To(HaveKeyWithValue("file", HaveKeyWithValue("path", "in.pdf")))
		}
	})

	It("is disabled when every handler is", func() {
		multi := logger.Multi(logger.Nop(), logger.Nop())
		Expect(multi.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
	})
})
