package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rcliao/team-memory/internal/model"
)

var reasonStatus = map[model.Reason]int{
	model.ReasonValidation:       http.StatusBadRequest,
	model.ReasonNotFound:         http.StatusNotFound,
	model.ReasonPermissionDenied: http.StatusForbidden,
	model.ReasonUnauthorized:     http.StatusForbidden,
	model.ReasonUnauthenticated:  http.StatusUnauthorized,
	model.ReasonConflict:         http.StatusConflict,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and a {"error","code"} body. Errors
// without a reason are logged and reported as internal.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reason := model.ReasonOf(err)
	status, ok := reasonStatus[reason]
	if !ok {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal error",
			"code":  "internal_error",
		})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": string(reason)})
}

// Request body caps. A single record's content is at most 64 KiB; imports
// carry whole project snapshots.
const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 64 << 20
)

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return decodeLimit(w, r, v, maxBodyBytes)
}

func decodeLimit(w http.ResponseWriter, r *http.Request, v any, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return model.Validationf("request body exceeds %d bytes", tooBig.Limit)
		}
		return model.Validationf("invalid json: %v", err)
	}
	return nil
}

// queryInt parses an optional integer parameter; ok is false when absent.
func queryInt(r *http.Request, key string) (n int, ok bool, err error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, false, nil
	}
	n, err = strconv.Atoi(raw)
	if err != nil {
		return 0, false, model.Validationf("%s must be an integer", key)
	}
	return n, true, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, model.Validationf("%s must be a boolean", key)
	}
	return b, nil
}

// queryList splits a comma-separated parameter, also accepting repeats.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
