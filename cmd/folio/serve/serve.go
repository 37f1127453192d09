// Package servecmder provides the serve command, which runs the HTTP API
// and MCP server over a document index.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/api"
	"github.com/papercomputeco/folio/api/mcp"
	"github.com/papercomputeco/folio/cmd/folio/pipeline"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/dotdir"
	"github.com/papercomputeco/folio/pkg/logger"
	"github.com/papercomputeco/folio/pkg/retrieval"
	"github.com/papercomputeco/folio/pkg/watch"
)

type ServeCommander struct {
	document string
	noMCP    bool
	logFile  string

	cfg       *config.Config
	configDir string
	debug     bool
	logger    *slog.Logger
}

const serveLongDesc string = `Run the folio API server.

Routes:
  GET  /ping            Health check
  GET  /v1/status       Index readiness and the indexed document
  POST /v1/documents    Upload a document (multipart field "file") and index it
  GET  /v1/search       Ranked passages as JSON (?query=...&top_k=...)
  GET  /v1/query        Passages joined as plain text (?query=...&top_k=...)
  POST /mcp             MCP server exposing document_search (and web_search
                        when SERPER_API_KEY is set)

Searches return 409 until a document has been indexed. Use --document to
index one at startup, or --watch-dir to re-index whenever a matching file is
written to a directory.

Examples:
  folio serve
  folio serve --document handbook.pdf --listen :9000
  folio serve --watch-dir ./inbox
  folio serve --log-file folio.log`

const serveShortDesc string = "Run the folio API and MCP server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = pipeline.LoadConfig(cmd, config.PipelineFlags, config.ServeFlags)
			if err != nil {
				return err
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddPipelineFlags(cmd)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagAPIListen, new(string))
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagUploadDir, new(string))
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagWatchDir, new(string))
	cmd.Flags().StringVar(&cmder.document, "document", "", "Document to index at startup")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP server at /mcp")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	c.logger = logger.NewCLI(c.debug)
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		c.logger = logger.Multi(c.logger, logger.New(
			logger.WithJSON(true),
			logger.WithWriter(f),
			logger.WithDebug(c.debug),
		))
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.Build(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer p.Close()

	uploadDir, err := dotdir.NewManager().UploadDir(c.configDir, c.cfg.Storage.UploadDir)
	if err != nil {
		return err
	}

	if c.document != "" {
		c.indexAtStartup(ctx, p.Retriever, c.document)
	}

	apiConfig := api.Config{
		ListenAddr: c.cfg.API.Listen,
		UploadDir:  uploadDir,
	}
	if !c.noMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Tools:  pipeline.Tools(c.cfg, p.Retriever, c.logger),
			Logger: c.logger,
		})
		if err != nil {
			return fmt.Errorf("creating MCP server: %w", err)
		}
		apiConfig.MCPHandler = mcpServer.Handler()
	}

	apiServer, err := api.NewServer(apiConfig, p.Retriever, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if c.cfg.Watch.Dir != "" {
		stopWatch, err := c.startWatcher(ctx, p.Retriever, c.document == "")
		if err != nil {
			return err
		}
		defer stopWatch()
	}

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down")
		return apiServer.Shutdown()
	}
}

// indexAtStartup logs failures instead of returning them: the server still
// starts and reports not ready until a document is uploaded.
func (c *ServeCommander) indexAtStartup(ctx context.Context, r *retrieval.Retriever, path string) {
	result, err := r.IndexDocument(ctx, path)
	if err != nil {
		c.logger.Error("indexing startup document", "path", path, "error", err)
		return
	}
	c.logger.Info("indexed startup document", "source", result.Source, "chunks", result.Chunks)
}

// startWatcher re-indexes documents written to the watch directory. When
// indexNewest is set the newest matching file already present is queued.
func (c *ServeCommander) startWatcher(ctx context.Context, r *retrieval.Retriever, indexNewest bool) (func(), error) {
	pool, err := watch.NewPool(&watch.PoolConfig{
		Indexer: r,
		Logger:  c.logger,
	})
	if err != nil {
		return nil, err
	}

	w, err := watch.New(watch.Config{
		Dir:     c.cfg.Watch.Dir,
		Pattern: c.cfg.Watch.Pattern,
		Pool:    pool,
		Logger:  c.logger,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	if indexNewest {
		newest, err := w.Newest()
		if err != nil {
			c.logger.Warn("scanning watch directory", "error", err)
		} else if newest != "" {
			pool.Enqueue(watch.Job{Path: newest})
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(watchCtx); err != nil {
			c.logger.Error("watcher stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
		_ = w.Close()
		pool.Close()
	}, nil
}
