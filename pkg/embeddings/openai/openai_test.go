package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/embeddings/openai"
)

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		attempts atomic.Int32
		handler  func(w http.ResponseWriter, r *http.Request, attempt int32)
	)

	BeforeEach(func() {
		attempts.Store(0)
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			n := attempts.Add(1)
			Expect(r.URL.Path).To(Equal("/v1/embeddings"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer test-key"))
			handler(w, r, n)
		}))
		DeferCleanup(server.Close)
	})

	newEmbedder := func(maxRetries int) *openai.Embedder {
		e, err := openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL:    server.URL,
			APIKey:     "test-key",
			MaxRetries: maxRetries,
		})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	It("requires an API key", func() {
		_, err := openai.NewEmbedder(openai.EmbedderConfig{})
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
	})

	It("orders results by index", func() {
		handler = func(w http.ResponseWriter, r *http.Request, _ int32) {
			var body map[string]any
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			Expect(body["model"]).To(Equal(openai.DefaultEmbeddingModel))
			Expect(body["input"]).To(Equal([]any{"zero", "one"}))

			_, _ = w.Write([]byte(`{"data": [
				{"index": 1, "embedding": [1, 1]},
				{"index": 0, "embedding": [0, 0]}
			]}`))
		}

		vectors, err := newEmbedder(1).EmbedBatch(context.Background(), []string{"zero", "one"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vectors).To(Equal([][]float32{{0, 0}, {1, 1}}))
	})

	It("retries rate limited requests", func() {
		handler = func(w http.ResponseWriter, _ *http.Request, attempt int32) {
			if attempt == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{"data": [{"index": 0, "embedding": [0.25]}]}`))
		}

		vector, err := newEmbedder(3).Embed(context.Background(), "query")
		Expect(err).NotTo(HaveOccurred())
		Expect(vector).To(Equal([]float32{0.25}))
		Expect(attempts.Load()).To(Equal(int32(2)))
	})

	It("does not retry client errors", func() {
		handler = func(w http.ResponseWriter, _ *http.Request, _ int32) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"message": "bad input"}}`))
		}

		_, err := newEmbedder(3).Embed(context.Background(), "query")
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("bad input"))
		Expect(attempts.Load()).To(Equal(int32(1)))
	})

	It("gives up after the retry budget", func() {
		handler = func(w http.ResponseWriter, _ *http.Request, _ int32) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_, err := newEmbedder(1).Embed(context.Background(), "query")
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
		Expect(attempts.Load()).To(Equal(int32(2)))
	})

	It("stops retrying when the context is cancelled", func() {
		handler = func(w http.ResponseWriter, _ *http.Request, _ int32) {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			defer GinkgoRecover()
			Eventually(attempts.Load).Should(Equal(int32(1)))
			cancel()
		}()

		_, err := newEmbedder(3).Embed(ctx, "query")
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
		Expect(err).To(MatchError(context.Canceled))
	})
})
