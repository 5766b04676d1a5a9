package ports

import (
	"context"

	"github.com/glewis05/propel-mcp/modules/network/domain/types"
)

// DirectoryStore is the read side of the program/clinic/location
// hierarchy used by the tool surface. The reconcilers do not use it:
// they read the directory through their own transaction so planning
// never sees state the commit would not.
type DirectoryStore interface {
	ListPrograms(ctx context.Context) ([]types.Program, error)
	ListClinics(ctx context.Context, programID string) ([]types.Clinic, error)
	ListLocations(ctx context.Context, clinicID string) ([]types.Location, error)
	ProgramTree(ctx context.Context) ([]types.ProgramTree, error)
}
