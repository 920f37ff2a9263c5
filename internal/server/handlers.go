package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
	"github.com/rcliao/team-memory/internal/service"
	"github.com/rcliao/team-memory/internal/store"
)

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	var req service.StoreRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Store(r.Context(), auth.FromContext(r.Context()), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.ContextRequest{
		ProjectID: chi.URLParam(r, "projectID"),
		Query:     q.Get("query"),
		Category:  model.Category(q.Get("category")),
	}
	maxTokens, ok, err := queryInt(r, "max_tokens")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ok {
		req.MaxTokens = &maxTokens
	}
	if req.IncludeDeprecated, err = queryBool(r, "include_deprecated"); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.Context(r.Context(), auth.FromContext(r.Context()), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.SearchRequest{
		Query:    q.Get("query"),
		Scope:    model.Scope(q.Get("scope")),
		ScopeID:  q.Get("scope_id"),
		Type:     model.Type(q.Get("type")),
		Category: model.Category(q.Get("category")),
		Tags:     queryList(r, "tags"),
	}
	var err error
	if req.Limit, _, err = queryInt(r, "limit"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.IncludeDeprecated, err = queryBool(r, "include_deprecated"); err != nil {
		s.writeError(w, r, err)
		return
	}

	results, err := s.svc.Search(r.Context(), auth.FromContext(r.Context()), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": results, "count": len(results)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Get(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch service.UpdateRequest
	if err := decode(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.svc.Update(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Delete(r.Context(), auth.FromContext(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Memory deleted", "id": id})
}

// handleDeprecate deprecates by default; {"deprecated": false} restores.
func (s *Server) handleDeprecate(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Deprecated   *bool  `json:"deprecated"`
		SupersededBy string `json:"superseded_by"`
	}{}
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	ctx, c, id := r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id")
	var (
		m   *model.Memory
		err error
	)
	if req.Deprecated == nil || *req.Deprecated {
		m, err = s.svc.Deprecate(ctx, c, id, req.SupersededBy)
	} else {
		m, err = s.svc.Restore(ctx, c, id)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	message := "Memory restored"
	if m.Deprecated {
		message = "Memory deprecated"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            m.ID,
		"message":       message,
		"deprecated":    m.Deprecated,
		"superseded_by": m.SupersededBy,
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": service.Categories()})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	scopeID := chi.URLParam(r, "scopeID")
	tags, err := s.svc.Tags(r.Context(), auth.FromContext(r.Context()), scopeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scope_id": scopeID, "tags": tags, "total": len(tags)})
}

func (s *Server) handleTodos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projectID, owner := q.Get("project_id"), q.Get("owner")
	todos, err := s.svc.Todos(r.Context(), auth.FromContext(r.Context()), projectID, owner, q.Get("status"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": projectID,
		"owner":      owner,
		"todos":      todos,
		"count":      len(todos),
	})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.Projects(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects, "count": len(projects)})
}

func (s *Server) handleSuggestProject(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.SuggestProjects(r.Context(), auth.FromContext(r.Context()), r.URL.Query().Get("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Stats(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.PurgeExpired(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	exp, err := s.svc.Export(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Memories []model.Memory `json:"memories"`
	}
	if err := decodeLimit(w, r, &req, maxImportBytes); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Import(r.Context(), auth.FromContext(r.Context()), req.Memories)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	members, err := s.svc.ListMembers(r.Context(), auth.FromContext(r.Context()), projectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project_id": projectID, "members": members})
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string     `json:"user_id"`
		Role   model.Role `json:"role"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.svc.AddMember(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "projectID"), req.UserID, req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.svc.ListTeams(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	team, err := s.svc.CreateTeam(r.Context(), auth.FromContext(r.Context()), req.ID, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.ListUsers(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string     `json:"id"`
		TeamID string     `json:"team_id"`
		Role   model.Role `json:"role"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	key, err := s.svc.CreateUser(r.Context(), auth.FromContext(r.Context()), req.ID, req.TeamID, req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

func (s *Server) handleRegenerateKey(w http.ResponseWriter, r *http.Request) {
	key, err := s.svc.RegenerateKey(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func (s *Server) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	f := store.AuditFilter{
		UserID: r.URL.Query().Get("user_id"),
		Action: r.URL.Query().Get("action"),
	}
	var err error
	if f.Limit, _, err = queryInt(r, "limit"); err != nil {
		s.writeError(w, r, err)
		return
	}
	logs, err := s.svc.AuditLogs(r.Context(), auth.FromContext(r.Context()), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}
