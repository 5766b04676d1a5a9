package server

import (
	"net/http"
	"strings"

	"github.com/glewis05/propel-mcp/internal/routing"
	"github.com/glewis05/propel-mcp/modules/access/domain/ports"
	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	accessservices "github.com/glewis05/propel-mcp/modules/access/services"
)

func runModeFromRequest(raw string) (ports.RunMode, bool) {
	mode := ports.RunMode(strings.TrimSpace(raw))
	if mode == "" {
		mode = ports.ModePreview
	}
	return mode, mode.Valid()
}

func handleRosterImportAPI(w http.ResponseWriter, r *http.Request, engine *accessservices.Engine) {
	rc := routing.RouteClassAPI
	if r.Method != http.MethodPost {
		routing.WriteError(w, r, rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req struct {
		Mode string                     `json:"mode"`
		Rows []accessservices.RosterRow `json:"rows"`
	}
	if !decodeJSONBody(w, r, rc, &req) {
		return
	}
	mode, ok := runModeFromRequest(req.Mode)
	if !ok {
		routing.WriteError(w, r, rc, http.StatusBadRequest, "invalid_mode", "mode must be preview or commit")
		return
	}
	actor, _ := actorFromRequest(r)
	if actor == "" {
		routing.WriteError(w, r, rc, http.StatusBadRequest, "missing_actor", "X-Actor header is required")
		return
	}
	plan, err := engine.ReconcileRoster(r.Context(), req.Rows, actor, mode)
	if err != nil {
		writeServiceError(w, r, rc, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func handleReviewImportAPI(w http.ResponseWriter, r *http.Request, engine *accessservices.Engine) {
	rc := routing.RouteClassAPI
	if r.Method != http.MethodPost {
		routing.WriteError(w, r, rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req struct {
		Mode string                     `json:"mode"`
		Rows []accessservices.ReviewRow `json:"rows"`
	}
	if !decodeJSONBody(w, r, rc, &req) {
		return
	}
	mode, ok := runModeFromRequest(req.Mode)
	if !ok {
		routing.WriteError(w, r, rc, http.StatusBadRequest, "invalid_mode", "mode must be preview or commit")
		return
	}
	actor, _ := actorFromRequest(r)
	if actor == "" {
		routing.WriteError(w, r, rc, http.StatusBadRequest, "missing_actor", "X-Actor header is required")
		return
	}
	plan, err := engine.ReconcileReview(r.Context(), req.Rows, actor, mode)
	if err != nil {
		writeServiceError(w, r, rc, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func handleAccessListAPI(w http.ResponseWriter, r *http.Request, queries *accessservices.Queries) {
	rc := routing.RouteClassAPI
	if r.Method != http.MethodGet {
		routing.WriteError(w, r, rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	q := r.URL.Query()
	grants, err := queries.ListAccess(r.Context(), strings.TrimSpace(q.Get("email")), strings.TrimSpace(q.Get("program")))
	if err != nil {
		writeServiceError(w, r, rc, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Grants []accesstypes.GrantDetail `json:"grants"`
	}{Grants: grants})
}

func handleReviewsDueAPI(w http.ResponseWriter, r *http.Request, queries *accessservices.Queries) {
	rc := routing.RouteClassAPI
	if r.Method != http.MethodGet {
		routing.WriteError(w, r, rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	due, err := queries.ReviewsDue(r.Context(), strings.TrimSpace(r.URL.Query().Get("program")))
	if err != nil {
		writeServiceError(w, r, rc, err)
		return
	}
	writeJSON(w, http.StatusOK, due)
}

func handleReviewExportAPI(w http.ResponseWriter, r *http.Request, queries *accessservices.Queries) {
	rc := routing.RouteClassAPI
	if r.Method != http.MethodGet {
		routing.WriteError(w, r, rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	q := r.URL.Query()
	includeCurrent := q.Get("include_current") == "1" || q.Get("include_current") == "true"
	rows, err := queries.ExportReview(r.Context(),
		strings.TrimSpace(q.Get("program")),
		strings.TrimSpace(q.Get("clinic")),
		strings.TrimSpace(q.Get("location")),
		includeCurrent)
	if err != nil {
		writeServiceError(w, r, rc, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Rows []accesstypes.ReviewExportRow `json:"rows"`
	}{Rows: rows})
}
