// Package statuscmder provides the status command for inspecting the index
// held by a running folio server.
package statuscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/cmd/folio/pipeline"
	"github.com/papercomputeco/folio/pkg/cliui"
	"github.com/papercomputeco/folio/pkg/retrieval"
)

const statusLongDesc string = `Show the index state of a running folio server.

Calls GET /v1/status on the server started by "folio serve" and prints the
indexed document, chunk count and embedding dimension. The server address
defaults to the configured api.listen address on localhost.

Examples:
  folio status
  folio status --target http://search.internal:8081`

const statusShortDesc string = "Show the index state of a running server"

type statusCommander struct {
	target string
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := cmder.target
			if target == "" {
				cfg, err := pipeline.LoadConfig(cmd)
				if err != nil {
					return err
				}
				target = targetFromListen(cfg.API.Listen)
			}
			return runStatus(cmd.Context(), cmd.OutOrStdout(), target)
		},
	}

	cmd.Flags().StringVarP(&cmder.target, "target", "t", "", "Base URL of the folio server (default from api.listen)")

	return cmd
}

// targetFromListen turns a listen address such as ":8081" into a base URL.
func targetFromListen(listen string) string {
	switch {
	case strings.HasPrefix(listen, "http://"), strings.HasPrefix(listen, "https://"):
		return listen
	case strings.HasPrefix(listen, ":"):
		return "http://localhost" + listen
	default:
		return "http://" + listen
	}
}

func runStatus(ctx context.Context, out io.Writer, target string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url := strings.TrimRight(target, "/") + "/v1/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("contacting %s (is folio serve running?): %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status request failed: HTTP %d", resp.StatusCode)
	}

	var status retrieval.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decoding status: %w", err)
	}

	printStatus(out, target, status)
	return nil
}

func printStatus(out io.Writer, target string, status retrieval.Status) {
	fmt.Fprintf(out, "\n  %s  %s\n", cliui.KeyStyle.Render("Server:   "), cliui.DimStyle.Render(target))

	if !status.Ready {
		fmt.Fprintf(out, "  %s No document indexed. Upload one to POST /v1/documents.\n\n", cliui.DimStyle.Render("●"))
		return
	}

	fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Document: "), cliui.ValueStyle.Render(status.Source))
	fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Chunks:   "), cliui.ValueStyle.Render(strconv.Itoa(status.Chunks)))
	fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Dimension:"), cliui.ValueStyle.Render(strconv.FormatUint(uint64(status.Dimension), 10)))
	if !status.IndexedAt.IsZero() {
		fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Indexed:  "), cliui.DimStyle.Render(status.IndexedAt.Local().Format(time.RFC1123)))
	}
	fmt.Fprintln(out)
}
