// Package mcptools exposes the memory service as MCP tools.
//
// Every tool follows the same shape:
// - a struct holding the service and the caller the server acts as; each
//   call runs with a fresh copy so project roles are reloaded
// - Definition() returns the mcp.Tool schema
// - Handle() runs the request and returns a JSON text result
//
// Service errors become tool errors carrying their reason code, so the
// agent sees "validation_error: ..." rather than a transport failure.
package mcptools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/team-memory/internal/model"
)

// intArg extracts an integer argument, returning ok=false when absent.
// JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string) (int, bool) {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return 0, false
	}
	return int(v), true
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// listArg splits a comma-separated string argument.
func listArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	for _, part := range strings.Split(req.GetString(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	reason := model.ReasonOf(err)
	if reason == "" {
		reason = model.ReasonInternal
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", reason, err)), nil
}
