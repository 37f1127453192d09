// Package chatcmder provides the chat command, an interactive terminal UI for
// asking questions about one document.
package chatcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/cmd/folio/pipeline"
	"github.com/papercomputeco/folio/pkg/cliui"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/logger"
)

type chatCommander struct {
	path string

	cfg    *config.Config
	debug  bool
	logger *slog.Logger
}

const chatLongDesc string = `Ask questions about a document interactively.

Indexes the document once, then opens a terminal UI. Each question is
answered with the most relevant passages from the document. Passages are
retrieved, not generated: folio does not call a language model.

Examples:
  folio chat handbook.pdf
  folio chat handbook.pdf --top-k 3`

const chatShortDesc string = "Ask questions about a document interactively"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat <file>",
		Short: chatShortDesc,
		Long:  chatLongDesc,
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

			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	config.AddPipelineFlags(cmd)

	return cmd
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	c.logger = logger.NewCLI(c.debug)

	p, err := pipeline.Build(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer p.Close()

	err = cliui.Step(out, "Indexing "+c.path, func() error {
		_, err := p.Retriever.IndexDocument(ctx, c.path)
		return err
	})
	if err != nil {
		return fmt.Errorf("indexing %s: %w", c.path, err)
	}

	model := NewModel(ctx, p.Retriever, filepath.Base(c.path), c.cfg.Retrieval.TopK)
	program := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running chat: %w", err)
	}
	return nil
}
