package server

import (
	"net/http"
	"strings"

	"github.com/glewis05/propel-mcp/internal/routing"
	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	accessservices "github.com/glewis05/propel-mcp/modules/access/services"
)

func handleUsersAPI(w http.ResponseWriter, r *http.Request, engine *accessservices.Engine, queries *accessservices.Queries) {
	rc := routing.RouteClassAPI
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		status := accesstypes.UserStatus(strings.TrimSpace(q.Get("status")))
		if status != "" && !status.Valid() {
			routing.WriteError(w, r, rc, http.StatusBadRequest, "invalid_status", "unknown user status")
			return
		}
		users, err := queries.ListUsers(r.Context(),
			strings.TrimSpace(q.Get("program")),
			strings.TrimSpace(q.Get("clinic")),
			strings.TrimSpace(q.Get("organization")),
			status)
		if err != nil {
			writeServiceError(w, r, rc, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Users []accesstypes.UserSummary `json:"users"`
		}{Users: users})

	case http.MethodPost:
		var req accessservices.NewUserInput
		if !decodeJSONBody(w, r, rc, &req) {
			return
		}
		actor, _ := actorFromRequest(r)
		if actor == "" {
			routing.WriteError(w, r, rc, http.StatusBadRequest, "missing_actor", "X-Actor header is required")
			return
		}
		user, err := engine.CreateUser(r.Context(), req, actor)
		if err != nil {
			writeServiceError(w, r, rc, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)

	default:
		routing.WriteError(w, r, rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func handleUserDetailAPI(w http.ResponseWriter, r *http.Request, queries *accessservices.Queries) {
	rc := routing.RouteClassAPI
	if r.Method != http.MethodGet {
		routing.WriteError(w, r, rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		routing.WriteError(w, r, rc, http.StatusBadRequest, "missing_email", "email is required")
		return
	}
	detail, err := queries.GetUser(r.Context(), email)
	if err != nil {
		writeServiceError(w, r, rc, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
