package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/chunker"
	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/extract"
	extractutils "github.com/papercomputeco/folio/pkg/extract/utils"
	"github.com/papercomputeco/folio/pkg/logger"
	"github.com/papercomputeco/folio/pkg/retrieval"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
	"github.com/papercomputeco/folio/pkg/vector"
	"github.com/papercomputeco/folio/pkg/vector/memory"
)

const policy = "Refunds are issued within thirty days.\n\nShipping takes five business days.\n\nDamaged items are replaced."

func uploadRequest(filename string, content []byte) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(content)
	Expect(err).NotTo(HaveOccurred())
	Expect(mw.Close()).To(Succeed())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func readBody(resp *http.Response) string {
	b, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return string(b)
}

// stubRetriever fails every call with err.
type stubRetriever struct {
	err error
}

func (s *stubRetriever) IndexDocument(context.Context, string, ...retrieval.IndexOption) (*retrieval.IndexResult, error) {
	return nil, s.err
}

func (s *stubRetriever) Search(context.Context, string, int) ([]vector.QueryResult, error) {
	return nil, s.err
}

func (s *stubRetriever) Query(context.Context, string, int) (string, error) {
	return "", s.err
}

func (s *stubRetriever) Status() retrieval.Status { return retrieval.Status{} }

var _ = Describe("Server", func() {
	var (
		server    *Server
		uploadDir string
	)

	BeforeEach(func() {
		splitter, err := chunker.New(chunker.Config{ChunkSize: 60, ChunkOverlap: 0})
		Expect(err).NotTo(HaveOccurred())

		r, err := retrieval.New(retrieval.Config{
			Extractor: extractutils.NewByExtension(logger.Nop()),
			Splitter:  splitter,
			Embedder:  testutils.NewMockEmbedder(),
			Driver:    memory.NewDriver(logger.Nop()),
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		uploadDir = filepath.Join(GinkgoT().TempDir(), "uploads")
		server, err = NewServer(Config{ListenAddr: ":0", UploadDir: uploadDir}, r, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("requires a retriever", func() {
			_, err := NewServer(Config{UploadDir: uploadDir}, nil, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("retriever is required")))
		})

		It("requires an upload directory", func() {
			_, err := NewServer(Config{}, &stubRetriever{}, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("upload directory is required")))
		})
	})

	It("answers ping", func() {
		resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(readBody(resp)).To(Equal(`"pong"`))
	})

	Context("before any document is uploaded", func() {
		It("reports not ready", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/status", nil))
			Expect(err).NotTo(HaveOccurred())

			var status retrieval.Status
			Expect(json.NewDecoder(resp.Body).Decode(&status)).To(Succeed())
			Expect(status.Ready).To(BeFalse())
		})

		It("returns 409 for searches", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/search?query=refunds", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusConflict))
			Expect(readBody(resp)).To(ContainSubstring(vector.ErrIndexNotReady.Error()))
		})
	})

	Describe("POST /v1/documents", func() {
		It("stores and indexes the upload", func() {
			resp, err := server.app.Test(uploadRequest("policy.txt", []byte(policy)), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var out UploadResponse
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out.Path).To(Equal(filepath.Join(uploadDir, "policy.txt")))
			Expect(out.Path).To(BeARegularFile())
			Expect(out.Result.Source).To(Equal("policy.txt"))
			Expect(out.Result.Chunks).To(Equal(3))
			Expect(out.Status.Ready).To(BeTrue())
		})

		It("indexes PDFs", func() {
			pdf := testutils.BuildPDF("Refunds are issued within thirty days.")
			resp, err := server.app.Test(uploadRequest("handbook.pdf", pdf), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
		})

		It("strips directories from the file name", func() {
			resp, err := server.app.Test(uploadRequest("../../escape.txt", []byte(policy)), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
			Expect(filepath.Join(uploadDir, "escape.txt")).To(BeARegularFile())
		})

		It("requires the file field", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/documents", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects unsupported types", func() {
			resp, err := server.app.Test(uploadRequest("sheet.xlsx", []byte("x")), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnsupportedMediaType))
		})

		It("returns 422 for a document without text", func() {
			resp, err := server.app.Test(uploadRequest("blank.txt", []byte("   \n")), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
		})
	})

	Context("after a document is uploaded", func() {
		BeforeEach(func() {
			resp, err := server.app.Test(uploadRequest("policy.txt", []byte(policy)), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
		})

		It("returns structured search results", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/search?query=refunds&top_k=2", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out SearchResponse
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out.Query).To(Equal("refunds"))
			Expect(out.Count).To(Equal(2))
			Expect(out.Results[0].Payload.Source).To(Equal("policy.txt"))
		})

		It("returns joined passages as text", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/query?query=refunds", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body := readBody(resp)
			Expect(body).To(ContainSubstring("Refunds are issued within thirty days."))
			Expect(body).To(ContainSubstring("\n___\n"))
		})

		It("reports the indexed document", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/status", nil))
			Expect(err).NotTo(HaveOccurred())

			var status retrieval.Status
			Expect(json.NewDecoder(resp.Body).Decode(&status)).To(Succeed())
			Expect(status.Ready).To(BeTrue())
			Expect(status.Source).To(Equal("policy.txt"))
			Expect(status.Chunks).To(Equal(3))
		})
	})

	Describe("query parameters", func() {
		for _, path := range []string{"/v1/search", "/v1/query"} {
			It(fmt.Sprintf("%s requires query", path), func() {
				resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, path, nil))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
				Expect(readBody(resp)).To(ContainSubstring("query parameter is required"))
			})

			It(fmt.Sprintf("%s rejects a non-positive top_k", path), func() {
				resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, path+"?query=x&top_k=0", nil))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
				Expect(readBody(resp)).To(ContainSubstring("top_k must be a positive integer"))
			})
		}
	})

	DescribeTable("error status mapping",
		func(err error, status int) {
			s, e := NewServer(Config{UploadDir: uploadDir}, &stubRetriever{err: err}, logger.Nop())
			Expect(e).NotTo(HaveOccurred())

			resp, e := s.app.Test(httptest.NewRequest(http.MethodGet, "/v1/search?query=x", nil))
			Expect(e).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(status))
		},
		Entry("not ready", vector.ErrIndexNotReady, fiber.StatusConflict),
		Entry("extraction", fmt.Errorf("%w: bad pdf", extract.ErrExtraction), fiber.StatusUnprocessableEntity),
		Entry("embedding", fmt.Errorf("%w: timeout", embeddings.ErrEmbedding), fiber.StatusBadGateway),
		Entry("vector store connection", fmt.Errorf("%w: refused", vector.ErrConnection), fiber.StatusBadGateway),
		Entry("anything else", vector.ErrDimensionMismatch, fiber.StatusInternalServerError),
	)

	It("mounts the MCP handler", func() {
		mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
		s, err := NewServer(Config{UploadDir: uploadDir, MCPHandler: mcpHandler}, &stubRetriever{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		resp, err := s.app.Test(httptest.NewRequest(http.MethodPost, "/mcp", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
	})
})
