package server

import (
	"encoding/json"
	"net/http"

	"github.com/glewis05/propel-mcp/internal/routing"
	"github.com/glewis05/propel-mcp/pkg/httperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError translates service-layer errors into the response
// envelope. Database input errors surface as 400 with a stable code
// rather than leaking driver messages.
func writeServiceError(w http.ResponseWriter, r *http.Request, rc routing.RouteClass, err error) {
	switch {
	case httperr.IsBadRequest(err):
		routing.WriteError(w, r, rc, http.StatusBadRequest, "bad_request", err.Error())
	case httperr.IsNotFound(err):
		routing.WriteError(w, r, rc, http.StatusNotFound, "not_found", err.Error())
	case httperr.IsConflict(err):
		routing.WriteError(w, r, rc, http.StatusConflict, "conflict", err.Error())
	case isPgUniqueViolation(err):
		routing.WriteError(w, r, rc, http.StatusConflict, "conflict", stablePgMessage(err))
	case isPgInvalidInput(err):
		routing.WriteError(w, r, rc, http.StatusBadRequest, "invalid_input", stablePgMessage(err))
	default:
		routing.WriteError(w, r, rc, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, rc routing.RouteClass, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		routing.WriteError(w, r, rc, http.StatusBadRequest, "invalid_json", "invalid json")
		return false
	}
	return true
}
