// Package ports declares the access store contracts. The write side
// is a single Run harness: one transaction per reconciliation run,
// rolled back in preview mode, committed otherwise.
package ports

import (
	"context"

	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	auditports "github.com/glewis05/propel-mcp/modules/audit/domain/ports"
	networktypes "github.com/glewis05/propel-mcp/modules/network/domain/types"
)

type RunMode string

const (
	ModePreview RunMode = "preview"
	ModeCommit  RunMode = "commit"
)

func (m RunMode) Valid() bool { return m == ModePreview || m == ModeCommit }

// Store opens one transaction around fn. In preview mode the
// transaction is always rolled back, so fn runs the identical code
// path as a commit with no persisted effect. An error from fn rolls
// back and is returned.
type Store interface {
	Run(ctx context.Context, mode RunMode, fn func(tx Tx) error) error
}

// Tx is the transaction-scoped view the reconcilers plan and apply
// against. All reads observe the transaction's snapshot.
type Tx interface {
	ListPrograms(ctx context.Context) ([]networktypes.Program, error)
	ListClinics(ctx context.Context, programID string) ([]networktypes.Clinic, error)
	ListLocations(ctx context.Context, clinicID string) ([]networktypes.Location, error)

	GetUserByEmail(ctx context.Context, email string) (accesstypes.User, bool, error)
	CreateUser(ctx context.Context, u accesstypes.User) error

	// GetActiveGrant looks up the single active grant for the exact
	// scope tuple; NULL clinic/location are distinct identities.
	GetActiveGrant(ctx context.Context, userID string, scope accesstypes.Scope) (accesstypes.Grant, bool, error)
	// CountGrants counts grants for the exact scope tuple regardless
	// of state; it is the generation counter behind deterministic
	// grant IDs.
	CountGrants(ctx context.Context, userID string, scope accesstypes.Scope) (int, error)
	InsertGrant(ctx context.Context, g accesstypes.Grant) error
	UpdateGrant(ctx context.Context, g accesstypes.Grant) error
	InsertReview(ctx context.Context, r accesstypes.Review) error

	// Ledger appends on this same transaction.
	Ledger() auditports.Ledger
}
