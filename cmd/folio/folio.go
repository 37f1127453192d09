// Package foliocmder provides the root folio command.
package foliocmder

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/folio/cmd/folio/auth"
	chatcmder "github.com/papercomputeco/folio/cmd/folio/chat"
	configcmder "github.com/papercomputeco/folio/cmd/folio/config"
	indexcmder "github.com/papercomputeco/folio/cmd/folio/index"
	initcmder "github.com/papercomputeco/folio/cmd/folio/init"
	querycmder "github.com/papercomputeco/folio/cmd/folio/query"
	servecmder "github.com/papercomputeco/folio/cmd/folio/serve"
	statuscmder "github.com/papercomputeco/folio/cmd/folio/status"
	versioncmder "github.com/papercomputeco/folio/cmd/version"
)

const folioLongDesc string = `Folio answers questions from a document.

A PDF (or text file) is extracted, split into overlapping chunks, embedded,
and stored in a vector index. Questions are embedded the same way and the
closest passages are returned.

  folio index handbook.pdf                    Index a document and report stats
  folio query handbook.pdf "refund policy"    Print the passages for a question
  folio chat handbook.pdf                     Ask questions interactively
  folio serve                                 Run the HTTP API and MCP server
  folio status                                Show what a running server has indexed

API keys (OPENAI_API_KEY, GEMINI_API_KEY, SERPER_API_KEY, QDRANT_API_KEY) are
read from the environment, a .env file in the working directory, or keys
stored with "folio auth".`

const folioShortDesc string = "Folio - document question answering"

func NewFolioCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:          "folio",
		Short:        folioShortDesc,
		Long:         folioLongDesc,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnv(envFile)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .folio/ config directory")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load environment variables from this file if it exists")

	// Add subcommands
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(querycmder.NewQueryCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

// loadEnv loads path without overriding variables already set. A missing
// file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
