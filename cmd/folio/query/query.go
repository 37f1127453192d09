// Package querycmder provides the query command, which indexes a document
// and prints the passages most relevant to a question.
package querycmder

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

type queryCommander struct {
	path     string
	question string
	raw      bool
	maxLines int

	cfg    *config.Config
	debug  bool
	logger *slog.Logger
}

const queryLongDesc string = `Query a document.

Indexes the document, then embeds the question and prints the closest
passages, most relevant first, with their similarity scores.

Use --raw to print only the passage texts joined by "\n___\n", the same
string the document_search tool returns to an agent.

Examples:
  folio query handbook.pdf "what is the refund policy?"
  folio query handbook.pdf "shipping times" --top-k 3
  folio query handbook.pdf "shipping times" --raw`

const queryShortDesc string = "Print the passages of a document relevant to a question"

func NewQueryCmd() *cobra.Command {
	cmder := &queryCommander{}

	cmd := &cobra.Command{
		Use:   "query <file> <question>",
		Short: queryShortDesc,
		Long:  queryLongDesc,
		Args:  cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = pipeline.LoadConfig(cmd, config.PipelineFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.path = args[0]
			cmder.question = args[1]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	config.AddPipelineFlags(cmd)
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print passage texts joined by the tool separator")
	cmd.Flags().IntVar(&cmder.maxLines, "max-lines", 0, "Cut each passage after this many lines (0 shows everything)")

	return cmd
}

func (c *queryCommander) run(ctx context.Context, out, errOut io.Writer) error {
	c.logger = logger.NewCLI(c.debug)

	p, err := pipeline.Build(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer p.Close()

	// Progress lines go to stderr so --raw output stays pipeable.
	err = cliui.Step(errOut, "Indexing "+c.path, func() error {
		_, err := p.Retriever.IndexDocument(ctx, c.path)
		return err
	})
	if err != nil {
		return fmt.Errorf("indexing %s: %w", c.path, err)
	}

	results, err := p.Retriever.Search(ctx, c.question, c.cfg.Retrieval.TopK)
	if err != nil {
		return fmt.Errorf("querying: %w", err)
	}

	if c.raw {
		fmt.Fprintln(out, retrieval.JoinResults(results))
		return nil
	}

	fmt.Fprintf(out, "\n%s %s\n\n", cliui.KeyStyle.Render("Passages for:"), cliui.ValueStyle.Render(fmt.Sprintf("%q", c.question)))
	fmt.Fprint(out, cliui.RenderResults(results, cliui.Width(out), c.maxLines))
	return nil
}
