// CLAUDE:SUMMARY Registers the read_notebook and notebook_outline tools on an MCP server.
package nbpipe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers nbpipe tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerReadTool(srv)
	p.registerOutlineTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}

// --- read_notebook ---

func (p *Pipeline) registerReadTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name: "read_notebook",
		Description: "Read a Jupyter notebook (.ipynb) and return a formatted text representation for analysis. " +
			"Filters are optional and can be combined.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Path to the .ipynb file"},
			"keywords": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Keep only cells containing at least one keyword (case-insensitive)",
			},
			"start_cell":  map[string]any{"type": "integer", "description": "Start cell index (inclusive)"},
			"end_cell":    map[string]any{"type": "integer", "description": "End cell index (exclusive)"},
			"only_errors": map[string]any{"type": "boolean", "description": "If true, keep only code cells with execution errors"},
		}, []string{"path"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r ReadRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return errorResult(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		// Read never fails: load errors and the empty-result sentinel come
		// back as ordinary text, per the tool's string contract.
		return textResult(p.Read(ctx, r)), nil
	})
}

// --- notebook_outline ---

type outlineReq struct {
	Path string `json:"path"`
}

func (p *Pipeline) registerOutlineTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name: "notebook_outline",
		Description: "Summarize a Jupyter notebook: one row per cell with index, kind, execution count, " +
			"error flag, and a first-line preview. Useful for picking cell ranges before read_notebook.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Path to the .ipynb file"},
		}, []string{"path"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r outlineReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return errorResult(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		summaries, err := p.Outline(ctx, r.Path)
		if err != nil {
			return errorResult(err), nil
		}
		data, err := json.Marshal(summaries)
		if err != nil {
			return errorResult(fmt.Errorf("marshal: %w", err)), nil
		}
		return textResult(string(data)), nil
	})
}
