package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/service"
	"github.com/rcliao/team-memory/internal/suggest"
)

// StoreTool handles the memory_store MCP tool.
type StoreTool struct {
	svc    *service.Service
	caller *auth.Caller
}

// NewStoreTool creates a StoreTool acting as caller.
func NewStoreTool(svc *service.Service, caller *auth.Caller) *StoreTool {
	return &StoreTool{svc: svc, caller: caller}
}

// Definition returns the MCP tool definition for memory_store.
func (t *StoreTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_store",
		mcp.WithDescription(
			"Store a memory for later sessions. Record decisions with their rationale, finished work, "+
				"reusable knowledge and todos. Pass supersedes to retire memories this one replaces.",
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The memory text"),
		),
		mcp.WithString("scope",
			mcp.Description("global, team or project (default: project)"),
		),
		mcp.WithString("scope_id",
			mcp.Description("Project id for project scope; team scope defaults to your team"),
		),
		mcp.WithString("type",
			mcp.Description("decision, work, knowledge or todo (default: work)"),
		),
		mcp.WithString("summary",
			mcp.Description("Short summary (default: first 200 characters of content)"),
		),
		mcp.WithNumber("importance",
			mcp.Description("0.0 to 1.0 (default: 0.5)"),
		),
		mcp.WithString("category",
			mcp.Description("architecture, api, database, security, ui, test, infra, docs, frontend, backend or other"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags"),
		),
		mcp.WithString("file",
			mcp.Description("Source file the memory is about; used to suggest category and tags"),
		),
		mcp.WithString("supersedes",
			mcp.Description("Comma-separated ids of memories this one replaces"),
		),
	)
}

// Handle processes the memory_store tool call.
func (t *StoreTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	sr := service.StoreRequest{
		Scope:      model.Scope(req.GetString("scope", "")),
		ScopeID:    req.GetString("scope_id", ""),
		Type:       model.Type(req.GetString("type", "")),
		Content:    content,
		Summary:    req.GetString("summary", ""),
		Category:   model.Category(req.GetString("category", "")),
		Tags:       listArg(req, "tags"),
		Supersedes: listArg(req, "supersedes"),
	}
	if _, ok := req.GetArguments()["importance"].(float64); ok {
		v := req.GetFloat("importance", 0)
		sr.Importance = &v
	}
	if file := req.GetString("file", ""); file != "" {
		sr.Metadata = model.Metadata{suggest.MetadataFileKey: file}
	}

	res, err := t.svc.Store(ctx, t.caller.Fresh(), sr)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

// DeprecateTool handles the memory_deprecate MCP tool.
type DeprecateTool struct {
	svc    *service.Service
	caller *auth.Caller
}

func NewDeprecateTool(svc *service.Service, caller *auth.Caller) *DeprecateTool {
	return &DeprecateTool{svc: svc, caller: caller}
}

// Definition returns the MCP tool definition for memory_deprecate.
func (t *DeprecateTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_deprecate",
		mcp.WithDescription("Mark a memory as outdated so it stops appearing in context and search."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Memory id"),
		),
		mcp.WithString("superseded_by",
			mcp.Description("Id of the memory that replaces it"),
		),
	)
}

// Handle processes the memory_deprecate tool call.
func (t *DeprecateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	m, err := t.svc.Deprecate(ctx, t.caller.Fresh(), id, req.GetString("superseded_by", ""))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{
		"id":            m.ID,
		"message":       "Memory deprecated",
		"deprecated":    m.Deprecated,
		"superseded_by": m.SupersededBy,
	})
}

// RestoreTool handles the memory_restore MCP tool.
type RestoreTool struct {
	svc    *service.Service
	caller *auth.Caller
}

func NewRestoreTool(svc *service.Service, caller *auth.Caller) *RestoreTool {
	return &RestoreTool{svc: svc, caller: caller}
}

// Definition returns the MCP tool definition for memory_restore.
func (t *RestoreTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_restore",
		mcp.WithDescription("Undo a deprecation, clearing its successor link."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Memory id"),
		),
	)
}

// Handle processes the memory_restore tool call.
func (t *RestoreTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	m, err := t.svc.Restore(ctx, t.caller.Fresh(), id)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{
		"id":         m.ID,
		"message":    "Memory restored",
		"deprecated": m.Deprecated,
	})
}
