package server

import (
	"net/http"

	"github.com/glewis05/propel-mcp/internal/routing"
	networkports "github.com/glewis05/propel-mcp/modules/network/domain/ports"
	networktypes "github.com/glewis05/propel-mcp/modules/network/domain/types"
)

func handleProgramsAPI(w http.ResponseWriter, r *http.Request, dir networkports.DirectoryStore) {
	rc := routing.RouteClassAPI
	if r.Method != http.MethodGet {
		routing.WriteError(w, r, rc, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	tree, err := dir.ProgramTree(r.Context())
	if err != nil {
		writeServiceError(w, r, rc, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Programs []networktypes.ProgramTree `json:"programs"`
	}{Programs: tree})
}
