package watch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/logger"
	"github.com/papercomputeco/folio/pkg/retrieval"
	"github.com/papercomputeco/folio/pkg/watch"
)

type fakeIndexer struct {
	mu    sync.Mutex
	paths []string
	err   error
	delay time.Duration
}

func (f *fakeIndexer) IndexDocument(_ context.Context, path string, _ ...retrieval.IndexOption) (*retrieval.IndexResult, error) {
	time.Sleep(f.delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	if f.err != nil {
		return nil, f.err
	}
	return &retrieval.IndexResult{Source: filepath.Base(path), Chunks: 1}, nil
}

func (f *fakeIndexer) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

var _ = Describe("Pool", func() {
	It("requires an indexer", func() {
		_, err := watch.NewPool(&watch.PoolConfig{Logger: logger.Nop()})
		Expect(err).To(HaveOccurred())
	})

	It("indexes jobs in order and reports outcomes", func() {
		indexer := &fakeIndexer{}
		var outcomes []error
		pool, err := watch.NewPool(&watch.PoolConfig{
			Indexer: indexer,
			OnIndexed: func(_ watch.Job, _ *retrieval.IndexResult, err error) {
				outcomes = append(outcomes, err)
			},
			Logger: logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(pool.Enqueue(watch.Job{Path: "a.pdf"})).To(BeTrue())
		Expect(pool.Enqueue(watch.Job{Path: "b.pdf"})).To(BeTrue())
		pool.Close()

		Expect(indexer.Paths()).To(Equal([]string{"a.pdf", "b.pdf"}))
		Expect(outcomes).To(Equal([]error{nil, nil}))
	})

	It("passes failures to the callback", func() {
		indexer := &fakeIndexer{err: errors.New("bad pdf")}
		var got error
		pool, err := watch.NewPool(&watch.PoolConfig{
			Indexer:   indexer,
			OnIndexed: func(_ watch.Job, _ *retrieval.IndexResult, err error) { got = err },
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		pool.Enqueue(watch.Job{Path: "a.pdf"})
		pool.Close()
		Expect(got).To(MatchError("bad pdf"))
	})

	It("drops jobs when the queue is full", func() {
		indexer := &fakeIndexer{delay: 100 * time.Millisecond}
		pool, err := watch.NewPool(&watch.PoolConfig{Indexer: indexer, QueueSize: 1, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		accepted := 0
		for range 5 {
			if pool.Enqueue(watch.Job{Path: "a.pdf"}) {
				accepted++
			}
		}
		Expect(accepted).To(BeNumerically("<", 5))
	})
})

var _ = Describe("Watcher", func() {
	var (
		dir     string
		indexer *fakeIndexer
		pool    *watch.Pool
	)

	BeforeEach(func() {
		dir = filepath.Join(GinkgoT().TempDir(), "uploads")
		indexer = &fakeIndexer{}

		var err error
		pool, err = watch.NewPool(&watch.PoolConfig{Indexer: indexer, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)
	})

	newWatcher := func(pattern string) *watch.Watcher {
		w, err := watch.New(watch.Config{
			Dir:      dir,
			Pattern:  pattern,
			Debounce: 50 * time.Millisecond,
			Pool:     pool,
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(w.Close)
		return w
	}

	run := func(w *watch.Watcher) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			Expect(w.Run(ctx)).To(Succeed())
		}()
		DeferCleanup(func() {
			cancel()
			Eventually(done).Should(BeClosed())
		})
	}

	It("creates the directory", func() {
		newWatcher("")
		Expect(dir).To(BeADirectory())
	})

	It("rejects invalid patterns", func() {
		_, err := watch.New(watch.Config{Dir: dir, Pattern: "[", Pool: pool, Logger: logger.Nop()})
		Expect(err).To(HaveOccurred())
	})

	It("finds the newest matching file", func() {
		w := newWatcher("*.pdf")
		Expect(w.Newest()).To(BeEmpty())

		old := filepath.Join(dir, "old.pdf")
		recent := filepath.Join(dir, "recent.pdf")
		Expect(os.WriteFile(old, []byte("x"), 0o644)).To(Succeed())
		Expect(os.WriteFile(recent, []byte("x"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)).To(Succeed())

		past := time.Now().Add(-time.Hour)
		Expect(os.Chtimes(old, past, past)).To(Succeed())

		Expect(w.Newest()).To(Equal(recent))
	})

	It("queues matching files once they settle", func() {
		run(newWatcher("*.pdf"))

		path := filepath.Join(dir, "report.pdf")
		for i := range 3 {
			Expect(os.WriteFile(path, []byte{byte(i)}, 0o644)).To(Succeed())
		}

		Eventually(indexer.Paths).Should(Equal([]string{path}))
		Consistently(indexer.Paths, 200*time.Millisecond).Should(HaveLen(1))
	})

	It("ignores files that do not match", func() {
		run(newWatcher("*.pdf"))

		Expect(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)).To(Succeed())
		Consistently(indexer.Paths, 200*time.Millisecond).Should(BeEmpty())
	})

	It("indexes only the latest of several files written together", func() {
		run(newWatcher("*.pdf"))

		first := filepath.Join(dir, "first.pdf")
		second := filepath.Join(dir, "second.pdf")
		Expect(os.WriteFile(first, []byte("1"), 0o644)).To(Succeed())
		Expect(os.WriteFile(second, []byte("2"), 0o644)).To(Succeed())

		Eventually(indexer.Paths).Should(Equal([]string{second}))
	})
})
