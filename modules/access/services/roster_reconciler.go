package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/glewis05/propel-mcp/modules/access/domain/ports"
	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	audittypes "github.com/glewis05/propel-mcp/modules/audit/domain/types"
	"github.com/glewis05/propel-mcp/pkg/uuidv7"
)

// RosterRow is one already-decoded staff roster row. Decoding the
// source spreadsheet is the adapter's job.
type RosterRow struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	JobRole      string `json:"job_role,omitempty"`
	Credentials  string `json:"credentials,omitempty"`
	Organization string `json:"organization,omitempty"`
	Program      string `json:"program"`
	Clinic       string `json:"clinic,omitempty"`
	AccessLevel  string `json:"access_level"`
	Email        string `json:"email"`
}

func (r RosterRow) fullName() string {
	return strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
}

// ReconcileRoster classifies each roster row against current state and
// applies the resulting mutations. Rows are independent: one bad row
// never blocks the rest. In preview mode the surrounding transaction
// rolls back, so the identical code path runs with no persisted
// effect.
func (e *Engine) ReconcileRoster(ctx context.Context, rows []RosterRow, grantedBy string, mode ports.RunMode) (Plan, error) {
	return e.run(ctx, mode, "roster", func(tx ports.Tx, plan *Plan) error {
		pc, err := newPlanContext(ctx, tx)
		if err != nil {
			return err
		}
		now := e.now()
		for i, row := range rows {
			if err := e.reconcileRosterRow(ctx, pc, plan, i, row, grantedBy, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) reconcileRosterRow(ctx context.Context, pc *planContext, plan *Plan, rowIndex int, row RosterRow, grantedBy string, now time.Time) error {
	email, ok := accesstypes.NormalizeEmail(row.Email)
	if !ok {
		plan.addError(rowIndex, KindInvalidEmail, fmt.Sprintf("invalid email %q", row.Email))
		return nil
	}
	role, ok := accesstypes.RoleFromAccessLevel(row.AccessLevel)
	if !ok {
		plan.addError(rowIndex, KindUnknownRole, fmt.Sprintf("unknown access level %q", row.AccessLevel))
		return nil
	}
	scope, failKind, failMsg, err := pc.resolveScope(ctx, row.Program, row.Clinic, "")
	if err != nil {
		return err
	}
	if failKind != "" {
		plan.addError(rowIndex, failKind, failMsg)
		return nil
	}

	user, userExists, err := pc.tx.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if userExists && user.Status == accesstypes.UserTerminated {
		plan.addError(rowIndex, KindUserTerminated, fmt.Sprintf("user %s is terminated", email))
		return nil
	}

	if !userExists {
		user = accesstypes.User{
			ID:           deterministicID("user", email),
			Name:         row.fullName(),
			Email:        email,
			Organization: strings.TrimSpace(row.Organization),
			JobRole:      strings.TrimSpace(row.JobRole),
			Credentials:  strings.TrimSpace(row.Credentials),
			Status:       accesstypes.UserActive,
			CreatedAt:    now,
		}
		grant, err := accesstypes.NewGrant(deterministicID("grant", email, scope.Key(), "0"), user, scope, role, grantedBy, 0, now)
		if err != nil {
			if kind, rowScoped := applyErrorKind(err); rowScoped {
				plan.addError(rowIndex, kind, err.Error())
				return nil
			}
			return err
		}
		if err := pc.tx.CreateUser(ctx, user); err != nil {
			return err
		}
		if err := auditUser(ctx, pc.tx, user, grantedBy); err != nil {
			return err
		}
		if err := pc.tx.InsertGrant(ctx, grant); err != nil {
			return err
		}
		if err := auditGrant(ctx, pc.tx, audittypes.ActionCreate, nil, grant, grantedBy, ""); err != nil {
			return err
		}
		plan.Entries = append(plan.Entries, PlanEntry{
			ID:             deterministicID("roster", email, scope.Key(), string(ClassifyCreateUserAndGrant), string(role)),
			RowIndex:       rowIndex,
			Classification: ClassifyCreateUserAndGrant,
			After:          grant,
		})
		return nil
	}

	existing, hasGrant, err := pc.tx.GetActiveGrant(ctx, user.ID, scope)
	if err != nil {
		return err
	}
	switch {
	case !hasGrant:
		generation, err := pc.tx.CountGrants(ctx, user.ID, scope)
		if err != nil {
			return err
		}
		grant, err := accesstypes.NewGrant(deterministicID("grant", email, scope.Key(), strconv.Itoa(generation)), user, scope, role, grantedBy, 0, now)
		if err != nil {
			if kind, rowScoped := applyErrorKind(err); rowScoped {
				plan.addError(rowIndex, kind, err.Error())
				return nil
			}
			return err
		}
		if err := pc.tx.InsertGrant(ctx, grant); err != nil {
			return err
		}
		if err := auditGrant(ctx, pc.tx, audittypes.ActionCreate, nil, grant, grantedBy, ""); err != nil {
			return err
		}
		plan.Entries = append(plan.Entries, PlanEntry{
			ID:             deterministicID("roster", email, scope.Key(), string(ClassifyCreateGrant), string(role)),
			RowIndex:       rowIndex,
			Classification: ClassifyCreateGrant,
			After:          grant,
		})

	case existing.Role == role:
		plan.Entries = append(plan.Entries, PlanEntry{
			ID:             deterministicID("roster", email, scope.Key(), string(ClassifyNoOp), string(role)),
			RowIndex:       rowIndex,
			Classification: ClassifyNoOp,
			Before:         existing,
		})

	default:
		before := existing
		reason := fmt.Sprintf("roster reconciliation: %s to %s", before.Role, role)
		if err := existing.ChangeRole(role, reason, now); err != nil {
			if kind, rowScoped := applyErrorKind(err); rowScoped {
				plan.addError(rowIndex, kind, err.Error())
				return nil
			}
			return err
		}
		if err := pc.tx.UpdateGrant(ctx, existing); err != nil {
			if kind, rowScoped := applyErrorKind(err); rowScoped {
				plan.addError(rowIndex, kind, err.Error())
				return nil
			}
			return err
		}
		review := accesstypes.Review{
			ID:         uuidv7.MustNewString(),
			AccessID:   existing.ID,
			ReviewDate: now,
			ReviewedBy: grantedBy,
			Status:     accesstypes.ReviewModified,
			Notes:      reason,
		}
		if err := pc.tx.InsertReview(ctx, review); err != nil {
			return err
		}
		if err := auditGrant(ctx, pc.tx, audittypes.ActionUpdate, &before, existing, grantedBy, reason); err != nil {
			return err
		}
		plan.Entries = append(plan.Entries, PlanEntry{
			ID:             deterministicID("roster", email, scope.Key(), string(ClassifyUpdateGrantRole), string(role)),
			RowIndex:       rowIndex,
			Classification: ClassifyUpdateGrantRole,
			Before:         before,
			After:          existing,
		})
	}
	return nil
}
