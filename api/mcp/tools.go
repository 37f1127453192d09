package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/folio/pkg/tool"
)

// ToolInput is the argument shape shared by every folio tool.
type ToolInput struct {
	Query string `json:"query" jsonschema:"the question or search text"`
}

// ToolOutput is the structured result of a tool call.
type ToolOutput struct {
	Tool   string `json:"tool"`
	Query  string `json:"query"`
	Result string `json:"result"`
}

func (s *Server) toolHandler(t tool.Tool) mcp.ToolHandlerFor[ToolInput, ToolOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ToolInput) (*mcp.CallToolResult, ToolOutput, error) {
		logger := s.config.Logger.With("tool", t.Name())
		logger.Debug("MCP tool request", "query", input.Query)

		if input.Query == "" {
			return errorResult("query is required"), ToolOutput{}, nil
		}

		text, err := t.Run(ctx, input.Query)
		if err != nil {
			logger.Error("tool call failed", "error", err)
			return errorResult(fmt.Sprintf("%s failed: %v", t.Name(), err)), ToolOutput{}, nil
		}

		result := &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: text},
			},
		}
		return result, ToolOutput{Tool: t.Name(), Query: input.Query, Result: text}, nil
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
