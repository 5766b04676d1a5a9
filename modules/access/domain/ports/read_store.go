package ports

import (
	"context"

	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
)

// UserFilter narrows user listings. Empty fields match everything.
type UserFilter struct {
	ProgramID    string
	ClinicID     string
	Organization string
	Status       accesstypes.UserStatus
}

// GrantFilter narrows grant listings.
type GrantFilter struct {
	Email      string
	ProgramID  string
	ClinicID   string
	LocationID string
	ActiveOnly bool
}

// ReadStore serves the tool-layer read side. Each call is a
// self-contained snapshot read.
type ReadStore interface {
	ListUsers(ctx context.Context, filter UserFilter) ([]accesstypes.UserSummary, error)
	GetUserDetail(ctx context.Context, email string) (accesstypes.UserDetail, bool, error)
	ListGrants(ctx context.Context, filter GrantFilter) ([]accesstypes.GrantDetail, error)
	// ListReviewCandidates returns active grants (optionally narrowed
	// by scope) with display fields, for reviews-due and the annual
	// review export.
	ListReviewCandidates(ctx context.Context, filter GrantFilter) ([]accesstypes.GrantDetail, error)
	LastReviewDates(ctx context.Context, accessIDs []string) (map[string]string, error)
	ListTraining(ctx context.Context, email string) ([]accesstypes.TrainingRecord, error)
	ListExpiredTraining(ctx context.Context) ([]accesstypes.TrainingRecord, error)
	ListBusinessAssociates(ctx context.Context) ([]accesstypes.UserSummary, error)
	// TerminatedWithActiveGrants surfaces the invariant breach the
	// terminated-access audit report exists to catch.
	TerminatedWithActiveGrants(ctx context.Context) ([]accesstypes.GrantDetail, error)
}
