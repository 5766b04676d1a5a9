package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/glewis05/propel-mcp/internal/routing"
	auditports "github.com/glewis05/propel-mcp/modules/audit/domain/ports"
	audittypes "github.com/glewis05/propel-mcp/modules/audit/domain/types"
)

const auditDefaultLimit = 100

func handleAuditAPI(w http.ResponseWriter, r *http.Request, reader auditports.Reader) {
	rc := routing.RouteClassAPI
	if r.Method != http.MethodGet {
		routing.WriteError(w, r, rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	q := r.URL.Query()
	recordType := strings.TrimSpace(q.Get("record_type"))
	recordID := strings.TrimSpace(q.Get("record_id"))
	if recordType == "" || recordID == "" {
		routing.WriteError(w, r, rc, http.StatusBadRequest, "missing_record", "record_type and record_id are required")
		return
	}
	limit := auditDefaultLimit
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			routing.WriteError(w, r, rc, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	records, err := reader.ListByRecord(r.Context(), recordType, recordID, limit)
	if err != nil {
		writeServiceError(w, r, rc, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Records []audittypes.Record `json:"records"`
	}{Records: records})
}
