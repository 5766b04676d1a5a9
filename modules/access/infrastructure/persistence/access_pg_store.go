// Package persistence is the PostgreSQL access store: the Run/Tx
// write harness used by the reconcilers and the read store behind the
// tool-layer queries.
package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/glewis05/propel-mcp/modules/access/domain/ports"
	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	auditports "github.com/glewis05/propel-mcp/modules/audit/domain/ports"
	auditpersistence "github.com/glewis05/propel-mcp/modules/audit/infrastructure/persistence"
	networktypes "github.com/glewis05/propel-mcp/modules/network/domain/types"
	networkpersistence "github.com/glewis05/propel-mcp/modules/network/infrastructure/persistence"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PGStore struct {
	pool pgBeginner
}

func NewPGStore(pool pgBeginner) ports.Store {
	return &PGStore{pool: pool}
}

// Run opens one transaction around fn. Preview mode leaves the commit
// out, so the deferred rollback undoes everything fn did.
func (s *PGStore) Run(ctx context.Context, mode ports.RunMode, fn func(tx ports.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if mode != ports.ModeCommit {
		return nil
	}
	return tx.Commit(ctx)
}

type pgTx struct {
	tx pgx.Tx
}

var _ ports.Tx = (*pgTx)(nil)

func (t *pgTx) ListPrograms(ctx context.Context) ([]networktypes.Program, error) {
	return networkpersistence.ListProgramsTx(ctx, t.tx)
}

func (t *pgTx) ListClinics(ctx context.Context, programID string) ([]networktypes.Clinic, error) {
	return networkpersistence.ListClinicsTx(ctx, t.tx, programID)
}

func (t *pgTx) ListLocations(ctx context.Context, clinicID string) ([]networktypes.Location, error) {
	return networkpersistence.ListLocationsTx(ctx, t.tx, clinicID)
}

func (t *pgTx) GetUserByEmail(ctx context.Context, email string) (accesstypes.User, bool, error) {
	var u accesstypes.User
	err := t.tx.QueryRow(ctx, `
SELECT user_id::text, name, email, COALESCE(organization, ''), COALESCE(job_role, ''),
       COALESCE(credentials, ''), status, is_business_associate, created_at
FROM users
WHERE lower(email) = lower($1)
`, email).Scan(&u.ID, &u.Name, &u.Email, &u.Organization, &u.JobRole,
		&u.Credentials, &u.Status, &u.IsBusinessAssociate, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return accesstypes.User{}, false, nil
	}
	if err != nil {
		return accesstypes.User{}, false, err
	}
	return u, true, nil
}

func (t *pgTx) CreateUser(ctx context.Context, u accesstypes.User) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO users (user_id, name, email, organization, job_role, credentials, status, is_business_associate, created_at)
VALUES ($1::uuid, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)
`, u.ID, u.Name, u.Email, u.Organization, u.JobRole, u.Credentials, string(u.Status), u.IsBusinessAssociate, u.CreatedAt)
	return err
}

const grantColumns = `
  access_id::text, user_id::text, program_id::text,
  COALESCE(clinic_id::text, ''), COALESCE(location_id::text, ''),
  role, is_active, granted_date, granted_by, review_cycle_months,
  next_review_due, revoked_date, COALESCE(revoked_by, ''), COALESCE(revoke_reason, '')`

func scanGrant(row pgx.Row) (accesstypes.Grant, error) {
	var g accesstypes.Grant
	err := row.Scan(&g.ID, &g.UserID, &g.Scope.ProgramID, &g.Scope.ClinicID, &g.Scope.LocationID,
		&g.Role, &g.IsActive, &g.GrantedDate, &g.GrantedBy, &g.ReviewCycleMonths,
		&g.NextReviewDue, &g.RevokedDate, &g.RevokedBy, &g.RevokeReason)
	return g, err
}

func (t *pgTx) GetActiveGrant(ctx context.Context, userID string, scope accesstypes.Scope) (accesstypes.Grant, bool, error) {
	g, err := scanGrant(t.tx.QueryRow(ctx, `
SELECT`+grantColumns+`
FROM access_grants
WHERE user_id = $1::uuid
  AND is_active
  AND program_id = $2::uuid
  AND clinic_id IS NOT DISTINCT FROM NULLIF($3, '')::uuid
  AND location_id IS NOT DISTINCT FROM NULLIF($4, '')::uuid
`, userID, scope.ProgramID, scope.ClinicID, scope.LocationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return accesstypes.Grant{}, false, nil
	}
	if err != nil {
		return accesstypes.Grant{}, false, err
	}
	return g, true, nil
}

func (t *pgTx) CountGrants(ctx context.Context, userID string, scope accesstypes.Scope) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
SELECT count(*)
FROM access_grants
WHERE user_id = $1::uuid
  AND program_id = $2::uuid
  AND clinic_id IS NOT DISTINCT FROM NULLIF($3, '')::uuid
  AND location_id IS NOT DISTINCT FROM NULLIF($4, '')::uuid
`, userID, scope.ProgramID, scope.ClinicID, scope.LocationID).Scan(&n)
	return n, err
}

func (t *pgTx) InsertGrant(ctx context.Context, g accesstypes.Grant) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO access_grants (access_id, user_id, program_id, clinic_id, location_id, role, is_active,
                           granted_date, granted_by, review_cycle_months, next_review_due)
VALUES ($1::uuid, $2::uuid, $3::uuid, NULLIF($4, '')::uuid, NULLIF($5, '')::uuid, $6, $7, $8, $9, $10, $11)
`, g.ID, g.UserID, g.Scope.ProgramID, g.Scope.ClinicID, g.Scope.LocationID, string(g.Role), g.IsActive,
		g.GrantedDate, g.GrantedBy, g.ReviewCycleMonths, g.NextReviewDue)
	return err
}

// UpdateGrant only rewrites an active row. Losing a race against a
// concurrent revoke matches zero rows instead of resurrecting the
// revoked grant.
func (t *pgTx) UpdateGrant(ctx context.Context, g accesstypes.Grant) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE access_grants
SET role = $1, is_active = $2, next_review_due = $3,
    revoked_date = $4, revoked_by = NULLIF($5, ''), revoke_reason = NULLIF($6, '')
WHERE access_id = $7::uuid
  AND is_active
`, string(g.Role), g.IsActive, g.NextReviewDue, g.RevokedDate, g.RevokedBy, g.RevokeReason, g.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return accesstypes.ErrGrantAlreadyRevoked
	}
	return nil
}

func (t *pgTx) InsertReview(ctx context.Context, r accesstypes.Review) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO access_reviews (review_id, access_id, review_date, reviewed_by, status, notes)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, NULLIF($6, ''))
`, r.ID, r.AccessID, r.ReviewDate, r.ReviewedBy, string(r.Status), r.Notes)
	return err
}

func (t *pgTx) Ledger() auditports.Ledger {
	return auditpersistence.NewTxLedger(t.tx)
}
