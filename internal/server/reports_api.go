package server

import (
	"net/http"
	"strings"

	"github.com/glewis05/propel-mcp/internal/routing"
	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	accessservices "github.com/glewis05/propel-mcp/modules/access/services"
)

func handleComplianceReportAPI(w http.ResponseWriter, r *http.Request, queries *accessservices.Queries) {
	rc := routing.RouteClassAPI
	if r.Method != http.MethodGet {
		routing.WriteError(w, r, rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	reportType := accesstypes.ReportType(strings.TrimSpace(r.URL.Query().Get("type")))
	report, err := queries.ComplianceReport(r.Context(), reportType)
	if err != nil {
		writeServiceError(w, r, rc, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func handleTrainingAPI(w http.ResponseWriter, r *http.Request, queries *accessservices.Queries) {
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
	records, err := queries.Training(r.Context(), email)
	if err != nil {
		writeServiceError(w, r, rc, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Records []accesstypes.TrainingRecord `json:"records"`
	}{Records: records})
}

func handleExpiredTrainingAPI(w http.ResponseWriter, r *http.Request, queries *accessservices.Queries) {
	rc := routing.RouteClassAPI
	if r.Method != http.MethodGet {
		routing.WriteError(w, r, rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	records, err := queries.ExpiredTraining(r.Context())
	if err != nil {
		writeServiceError(w, r, rc, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Records []accesstypes.TrainingRecord `json:"records"`
	}{Records: records})
}
