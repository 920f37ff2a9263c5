package mcptools

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/service"
)

const instructions = `team-memory keeps decisions, work notes, knowledge and todos across sessions.

At the start of a task call memory_context with the project id and a short
description of the task. After finishing significant work call memory_store.
When a memory replaces older ones, pass their ids in supersedes instead of
leaving contradicting records behind.`

// NewServer registers every memory tool on a new MCP server. All calls run
// as a fresh copy of caller.
func NewServer(svc *service.Service, caller *auth.Caller, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"team-memory",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	storeTool := NewStoreTool(svc, caller)
	s.AddTool(storeTool.Definition(), storeTool.Handle)

	contextTool := NewContextTool(svc, caller)
	s.AddTool(contextTool.Definition(), contextTool.Handle)

	searchTool := NewSearchTool(svc, caller)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	todosTool := NewTodosTool(svc, caller)
	s.AddTool(todosTool.Definition(), todosTool.Handle)

	deprecateTool := NewDeprecateTool(svc, caller)
	s.AddTool(deprecateTool.Definition(), deprecateTool.Handle)

	restoreTool := NewRestoreTool(svc, caller)
	s.AddTool(restoreTool.Definition(), restoreTool.Handle)

	return s
}
