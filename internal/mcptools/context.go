package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/service"
)

// ContextTool handles the memory_context MCP tool.
type ContextTool struct {
	svc    *service.Service
	caller *auth.Caller
}

// NewContextTool creates a ContextTool acting as caller.
func NewContextTool(svc *service.Service, caller *auth.Caller) *ContextTool {
	return &ContextTool{svc: svc, caller: caller}
}

// Definition returns the MCP tool definition for memory_context.
func (t *ContextTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_context",
		mcp.WithDescription(
			"Load the working context for a project at the start of a task: global knowledge, team knowledge, "+
				"project decisions and recent project work, packed into a token budget and ranked against your query.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project id"),
		),
		mcp.WithString("query",
			mcp.Description("What you are about to work on; drives ranking"),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description("Token budget for the whole response (default: 2000)"),
		),
		mcp.WithString("category",
			mcp.Description("Boost memories of this category"),
		),
		mcp.WithBoolean("include_deprecated",
			mcp.Description("Include deprecated memories (default: false)"),
		),
	)
}

// Handle processes the memory_context tool call.
func (t *ContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID := req.GetString("project_id", "")
	if projectID == "" {
		return mcp.NewToolResultError("'project_id' is required"), nil
	}
	cr := service.ContextRequest{
		ProjectID:         projectID,
		Query:             req.GetString("query", ""),
		Category:          model.Category(req.GetString("category", "")),
		IncludeDeprecated: boolArg(req, "include_deprecated", false),
	}
	if n, ok := intArg(req, "max_tokens"); ok {
		cr.MaxTokens = &n
	}

	res, err := t.svc.Context(ctx, t.caller.Fresh(), cr)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

// SearchTool handles the memory_search MCP tool.
type SearchTool struct {
	svc    *service.Service
	caller *auth.Caller
}

// NewSearchTool creates a SearchTool acting as caller.
func NewSearchTool(svc *service.Service, caller *auth.Caller) *SearchTool {
	return &SearchTool{svc: svc, caller: caller}
}

// Definition returns the MCP tool definition for memory_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_search",
		mcp.WithDescription("Search memories by keyword with optional scope, type, category and tag filters."),
		mcp.WithString("query",
			mcp.Description("Keywords to match"),
		),
		mcp.WithString("scope",
			mcp.Description("global, team or project"),
		),
		mcp.WithString("scope_id",
			mcp.Description("Team or project id"),
		),
		mcp.WithString("type",
			mcp.Description("decision, work, knowledge or todo"),
		),
		mcp.WithString("category",
			mcp.Description("Only this category"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags; any match qualifies"),
		),
		mcp.WithBoolean("include_deprecated",
			mcp.Description("Include deprecated memories (default: false)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results, 1 to 50 (default: 10)"),
		),
	)
}

// Handle processes the memory_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sr := service.SearchRequest{
		Query:             req.GetString("query", ""),
		Scope:             model.Scope(req.GetString("scope", "")),
		ScopeID:           req.GetString("scope_id", ""),
		Type:              model.Type(req.GetString("type", "")),
		Category:          model.Category(req.GetString("category", "")),
		Tags:              listArg(req, "tags"),
		IncludeDeprecated: boolArg(req, "include_deprecated", false),
	}
	sr.Limit, _ = intArg(req, "limit")

	results, err := t.svc.Search(ctx, t.caller.Fresh(), sr)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{"memories": results, "count": len(results)})
}

// TodosTool handles the memory_todos MCP tool.
type TodosTool struct {
	svc    *service.Service
	caller *auth.Caller
}

func NewTodosTool(svc *service.Service, caller *auth.Caller) *TodosTool {
	return &TodosTool{svc: svc, caller: caller}
}

// Definition returns the MCP tool definition for memory_todos.
func (t *TodosTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_todos",
		mcp.WithDescription("List a project's todos assigned to an owner."),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project id"),
		),
		mcp.WithString("owner",
			mcp.Required(),
			mcp.Description("Owner recorded in the todo's metadata"),
		),
		mcp.WithString("status",
			mcp.Description("pending, done or all (default: pending)"),
		),
	)
}

// Handle processes the memory_todos tool call.
func (t *TodosTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, owner := req.GetString("project_id", ""), req.GetString("owner", "")
	todos, err := t.svc.Todos(ctx, t.caller.Fresh(), projectID, owner, req.GetString("status", ""))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{"project_id": projectID, "owner": owner, "todos": todos, "count": len(todos)})
}
