// Package indexcmder provides the index command, which indexes one document
// and reports what was stored.
package indexcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/cmd/folio/pipeline"
	"github.com/papercomputeco/folio/pkg/cliui"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/logger"
	"github.com/papercomputeco/folio/pkg/retrieval"
)

type indexCommander struct {
	path  string
	quiet bool

	cfg    *config.Config
	debug  bool
	logger *slog.Logger
}

const indexLongDesc string = `Index a document.

Extracts the document's text, splits it into chunks, embeds every chunk and
stores the vectors in the configured vector store. The collection is rebuilt
from scratch, so the document replaces anything indexed before.

With a persistent vector store (sqlite, qdrant, chroma, postgres) the index
can then be queried by "folio serve" without re-indexing.

Examples:
  folio index handbook.pdf
  folio index handbook.pdf --embedding-provider hash
  folio index handbook.pdf --vector-store-provider sqlite --vector-store-target ./folio.db`

const indexShortDesc string = "Index a document"

func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index <file>",
		Short: indexShortDesc,
		Long:  indexLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = pipeline.LoadConfig(cmd, config.PipelineFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.path = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	config.AddPipelineFlags(cmd)
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Do not draw the progress bar")

	return cmd
}

func (c *indexCommander) run(ctx context.Context, out, errOut io.Writer) error {
	c.logger = logger.NewCLI(c.debug)

	p, err := pipeline.Build(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer p.Close()

	var opts []retrieval.IndexOption
	if !c.quiet {
		opts = append(opts, retrieval.WithProgress(cliui.NewEmbedProgress(errOut)))
	}

	result, err := p.Retriever.IndexDocument(ctx, c.path, opts...)
	if err != nil {
		fmt.Fprintf(out, "  %s %s\n", cliui.FailMark, c.path)
		return fmt.Errorf("indexing %s: %w", c.path, err)
	}

	PrintSummary(out, result, c.cfg)
	return nil
}

// PrintSummary writes the outcome of an index run.
func PrintSummary(w io.Writer, result *retrieval.IndexResult, cfg *config.Config) {
	fmt.Fprintf(w, "\n  %s Indexed %s %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(result.Source),
		cliui.StepStyle.Render("("+cliui.FormatDuration(result.Duration)+")"),
	)

	rows := [][2]string{
		{"characters", fmt.Sprint(result.Characters)},
		{"chunks", fmt.Sprint(result.Chunks)},
		{"dimension", fmt.Sprint(result.Dimension)},
		{"embedding", cfg.Embedding.Provider + " " + cfg.Embedding.Model},
		{"vector store", cfg.VectorStore.Provider + " " + cfg.VectorStore.Collection},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %s %s\n", cliui.DimStyle.Render(fmt.Sprintf("%-14s", row[0])), cliui.ValueStyle.Render(row[1]))
	}
	fmt.Fprintln(w)
}
