// Package initcmder provides the init command for initializing a local .folio
// directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/dotdir"
)

const configFileName = "config.toml"

const initLongDesc string = `Initialize a new .folio/ directory in the current working directory.

Creates a local .folio/ directory that takes precedence over the default
~/.folio/ directory for configuration and uploaded documents, and writes a
config.toml with default values.

--preset selects an embedding setup instead of the defaults:
  ollama    Local Ollama with nomic-embed-text (default)
  local     Offline feature-hashing embedder, no model server needed
  openai    OpenAI text-embedding-3-small (needs OPENAI_API_KEY)
  gemini    Gemini text-embedding-004 (needs GEMINI_API_KEY)

A URL may be given instead of a preset name to fetch a shared config.toml.

Examples:
  folio init
  folio init --preset local
  folio init --preset https://example.com/folio/config.toml`

const initShortDesc string = "Initialize a local .folio/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Config preset name ("+strings.Join(config.ValidPresetNames(), ", ")+") or URL")

	return cmd
}

func (c *initCommander) run(ctx context.Context, out io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dotdir.DirName)
	configPath := filepath.Join(dir, configFileName)

	info, err := os.Stat(dir)
	existed := err == nil && info.IsDir()
	if !existed {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .folio directory: %w", err)
		}
	}

	_, err = os.Stat(configPath)
	hasConfig := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}

	if c.preset != "" || !hasConfig {
		if err := c.writeConfig(ctx, dir); err != nil {
			return err
		}
	}

	if existed {
		fmt.Fprintf(out, "Already initialized: %s\n", dir)
	} else {
		fmt.Fprintf(out, "Initialized .folio directory: %s\n", dir)
	}
	return nil
}

func (c *initCommander) writeConfig(ctx context.Context, dir string) error {
	var (
		cfg *config.Config
		err error
	)

	switch {
	case c.preset == "":
		cfg = config.NewDefaultConfig()
	case strings.HasPrefix(c.preset, "http://") || strings.HasPrefix(c.preset, "https://"):
		cfg, err = fetchRemoteConfig(ctx, c.preset)
	default:
		cfg, err = config.PresetConfig(c.preset)
	}
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return cfger.SaveConfig(cfg)
}

func fetchRemoteConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
