package guard_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/embeddings/guard"
	"github.com/papercomputeco/folio/pkg/logger"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
)

var _ = Describe("Embedder", func() {
	var (
		ctx  context.Context
		mock *testutils.MockEmbedder
		g    *guard.Embedder
	)

	BeforeEach(func() {
		ctx = context.Background()
		mock = testutils.NewMockEmbedder()
		g = guard.New(mock, guard.Config{
			Name:        "test",
			OpenTimeout: time.Minute,
		}, logger.Nop())
	})

	It("passes calls through", func() {
		mock.Embeddings["hello"] = []float32{1, 0}

		v, err := g.Embed(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal([]float32{1, 0}))

		vectors, err := g.EmbedBatch(ctx, []string{"hello", "hello"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vectors).To(HaveLen(2))
		Expect(g.State()).To(Equal("closed"))
	})

	It("opens after repeated failures and rejects further calls", func() {
		mock.FailOn = "boom"

		for range 3 {
			_, err := g.Embed(ctx, "boom")
			Expect(err).To(MatchError(embeddings.ErrEmbedding))
		}
		Expect(g.State()).To(Equal("open"))

		_, err := g.Embed(ctx, "healthy text")
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("provider unavailable"))
		Expect(mock.Calls()).To(Equal(3))
	})

	It("does not count cancellation as a failure", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		for range 5 {
			_, err := g.Embed(cancelled, "hello")
			Expect(err).To(MatchError(embeddings.ErrEmbedding))
		}
		Expect(g.State()).To(Equal("closed"))
	})

	It("honours the rate limit", func() {
		limited := guard.New(mock, guard.Config{RequestsPerSecond: 10, Burst: 1}, logger.Nop())

		start := time.Now()
		for range 3 {
			_, err := limited.Embed(ctx, "hello")
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(time.Since(start)).To(BeNumerically(">=", 150*time.Millisecond))
	})
})
