package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/papercomputeco/folio/pkg/retrieval"
)

var defaultJobQueueSize uint = 16

// Indexer indexes one document at a time.
type Indexer interface {
	IndexDocument(ctx context.Context, path string, opts ...retrieval.IndexOption) (*retrieval.IndexResult, error)
}

// Job is a document waiting to be indexed.
type Job struct {
	Path string
}

// PoolConfig is the configuration for the index queue.
type PoolConfig struct {
	Indexer Indexer

	// QueueSize is the capacity of the buffered job channel (defaults to 16).
	QueueSize uint

	// OnIndexed, if set, is called after every job with its outcome.
	OnIndexed func(job Job, result *retrieval.IndexResult, err error)

	Logger *slog.Logger
}

// Pool runs index jobs on a single background worker, so documents are
// indexed one at a time in arrival order.
type Pool struct {
	config *PoolConfig
	queue  chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a Pool and starts its worker.
func NewPool(c *PoolConfig) (*Pool, error) {
	if c.Indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: c.Logger,
	}

	p.wg.Add(1)
	go p.worker()

	return p, nil
}

// Enqueue submits a job. Returns false if the queue is full or the pool is
// closed and the job was dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("index job queued", "path", job.Path)
		return true
	default:
		p.logger.Error("index job not queued, queue full, job dropped", "path", job.Path)
		return false
	}
}

// Close stops accepting jobs and waits for queued jobs to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	p.logger.Debug("index worker started")

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("index worker stopped")
}

func (p *Pool) processJob(job Job) {
	result, err := p.config.Indexer.IndexDocument(p.ctx, job.Path)
	if err != nil {
		p.logger.Error("background indexing failed", "path", job.Path, "error", err)
	} else {
		p.logger.Info("background indexing finished",
			"path", job.Path,
			"chunks", result.Chunks,
		)
	}

	if p.config.OnIndexed != nil {
		p.config.OnIndexed(job, result, err)
	}
}
