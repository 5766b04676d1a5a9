package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/glewis05/propel-mcp/internal/routing"
	configports "github.com/glewis05/propel-mcp/modules/config/domain/ports"
	configtypes "github.com/glewis05/propel-mcp/modules/config/domain/types"
	configservices "github.com/glewis05/propel-mcp/modules/config/services"
	networkports "github.com/glewis05/propel-mcp/modules/network/domain/ports"
	networkservices "github.com/glewis05/propel-mcp/modules/network/services"
	"github.com/glewis05/propel-mcp/pkg/httperr"
)

// resolveScopeRefs maps caller-facing references (program prefix or
// name, clinic code or name, location code or name) onto hierarchy
// IDs. Blank clinic and location are allowed; blank program is not.
func resolveScopeRefs(ctx context.Context, dir networkports.DirectoryStore, programRef, clinicRef, locationRef string) (programID, clinicID, locationID string, err error) {
	if strings.TrimSpace(programRef) == "" {
		return "", "", "", httperr.NewBadRequest("program is required")
	}
	programs, err := dir.ListPrograms(ctx)
	if err != nil {
		return "", "", "", err
	}
	program, err := networkservices.MatchProgram(programs, programRef)
	if err != nil {
		return "", "", "", httperr.NewNotFound(err.Error())
	}
	programID = program.ID

	if strings.TrimSpace(clinicRef) != "" {
		clinics, err := dir.ListClinics(ctx, programID)
		if err != nil {
			return "", "", "", err
		}
		clinic, err := networkservices.MatchClinic(clinics, clinicRef)
		if err != nil {
			return "", "", "", httperr.NewNotFound(err.Error())
		}
		clinicID = clinic.ID
	}

	if strings.TrimSpace(locationRef) != "" {
		if clinicID == "" {
			return "", "", "", httperr.NewBadRequest("location requires a clinic")
		}
		locations, err := dir.ListLocations(ctx, clinicID)
		if err != nil {
			return "", "", "", err
		}
		location, err := networkservices.MatchLocation(locations, locationRef)
		if err != nil {
			return "", "", "", httperr.NewNotFound(err.Error())
		}
		locationID = location.ID
	}
	return programID, clinicID, locationID, nil
}

func handleConfigValueAPI(w http.ResponseWriter, r *http.Request, store configports.Store, dir networkports.DirectoryStore) {
	rc := routing.RouteClassAPI
	resolver := configservices.NewResolver(store)

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		key := strings.TrimSpace(q.Get("key"))
		if key == "" {
			routing.WriteError(w, r, rc, http.StatusBadRequest, "missing_key", "key is required")
			return
		}
		programID, clinicID, locationID, err := resolveScopeRefs(r.Context(), dir,
			q.Get("program"), q.Get("clinic"), q.Get("location"))
		if err != nil {
			writeServiceError(w, r, rc, err)
			return
		}

		var res configtypes.Resolution
		if q.Get("with_chain") == "1" || q.Get("with_chain") == "true" {
			res, err = resolver.ResolveWithChain(r.Context(), key, programID, clinicID, locationID)
		} else {
			res, err = resolver.Resolve(r.Context(), key, programID, clinicID, locationID)
		}
		if err != nil {
			writeServiceError(w, r, rc, err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	case http.MethodPost:
		var req struct {
			Key      string `json:"config_key"`
			Program  string `json:"program"`
			Clinic   string `json:"clinic"`
			Location string `json:"location"`
			Value    string `json:"value"`
			Reason   string `json:"reason"`
		}
		if !decodeJSONBody(w, r, rc, &req) {
			return
		}
		actor, _ := actorFromRequest(r)
		if actor == "" {
			routing.WriteError(w, r, rc, http.StatusBadRequest, "missing_actor", "X-Actor header is required")
			return
		}
		programID, clinicID, locationID, err := resolveScopeRefs(r.Context(), dir,
			req.Program, req.Clinic, req.Location)
		if err != nil {
			writeServiceError(w, r, rc, err)
			return
		}

		// The deepest reference supplied decides the write level.
		scope := configtypes.Scope{Level: configtypes.SourceProgram, ProgramID: programID}
		if clinicID != "" {
			scope.Level = configtypes.SourceClinic
			scope.ClinicID = clinicID
		}
		if locationID != "" {
			scope.Level = configtypes.SourceLocation
			scope.LocationID = locationID
		}

		rec, err := resolver.SetValue(r.Context(), strings.TrimSpace(req.Key), scope, req.Value, actor, strings.TrimSpace(req.Reason))
		if err != nil {
			writeServiceError(w, r, rc, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)

	default:
		routing.WriteError(w, r, rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func handleConfigDefinitionsAPI(w http.ResponseWriter, r *http.Request, store configports.Store) {
	rc := routing.RouteClassAPI
	if r.Method != http.MethodGet {
		routing.WriteError(w, r, rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	defs, err := store.ListDefinitions(r.Context())
	if err != nil {
		writeServiceError(w, r, rc, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Definitions []configtypes.Definition `json:"definitions"`
	}{Definitions: defs})
}
