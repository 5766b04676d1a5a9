package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glewis05/propel-mcp/modules/access/domain/ports"
	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	audittypes "github.com/glewis05/propel-mcp/modules/audit/domain/types"
	"github.com/glewis05/propel-mcp/pkg/uuidv7"
)

// ReviewRow is one filled-in row of the annual-review worksheet. A
// blank action means the reviewer certified the access as-is.
type ReviewRow struct {
	Email    string `json:"email"`
	Program  string `json:"program"`
	Clinic   string `json:"clinic,omitempty"`
	Location string `json:"location,omitempty"`
	Action   string `json:"action"`
	NewRole  string `json:"new_role,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type reviewAction int

const (
	actionRecertify reviewAction = iota
	actionUpdate
	actionTerminate
)

// parseReviewAction validates the action and its companion fields.
// The closed set is {"", "Update", "Terminate"}; blank deliberately
// maps to recertify rather than a missing-field error.
func parseReviewAction(row ReviewRow) (reviewAction, ErrorKind, string) {
	switch strings.TrimSpace(strings.ToLower(row.Action)) {
	case "":
		return actionRecertify, "", ""
	case "update":
		if strings.TrimSpace(row.NewRole) == "" {
			return 0, KindMissingRequiredField, "action Update requires new_role"
		}
		if strings.TrimSpace(row.Notes) == "" {
			return 0, KindMissingRequiredField, "action Update requires notes"
		}
		return actionUpdate, "", ""
	case "terminate":
		if strings.TrimSpace(row.Notes) == "" {
			return 0, KindMissingRequiredField, "action Terminate requires notes"
		}
		return actionTerminate, "", ""
	default:
		return 0, KindInvalidAction, fmt.Sprintf("unknown review action %q", row.Action)
	}
}

// ReconcileReview applies review-response rows to the grants they
// reference. Same discipline as the roster path: per-row independence,
// preview rolls the transaction back.
func (e *Engine) ReconcileReview(ctx context.Context, rows []ReviewRow, reviewedBy string, mode ports.RunMode) (Plan, error) {
	return e.run(ctx, mode, "review", func(tx ports.Tx, plan *Plan) error {
		pc, err := newPlanContext(ctx, tx)
		if err != nil {
			return err
		}
		now := e.now()
		for i, row := range rows {
			if err := e.reconcileReviewRow(ctx, pc, plan, i, row, reviewedBy, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) reconcileReviewRow(ctx context.Context, pc *planContext, plan *Plan, rowIndex int, row ReviewRow, reviewedBy string, now time.Time) error {
	email, ok := accesstypes.NormalizeEmail(row.Email)
	if !ok {
		plan.addError(rowIndex, KindInvalidEmail, fmt.Sprintf("invalid email %q", row.Email))
		return nil
	}
	action, failKind, failMsg := parseReviewAction(row)
	if failKind != "" {
		plan.addError(rowIndex, failKind, failMsg)
		return nil
	}
	scope, failKind, failMsg, err := pc.resolveScope(ctx, row.Program, row.Clinic, row.Location)
	if err != nil {
		return err
	}
	if failKind != "" {
		plan.addError(rowIndex, failKind, failMsg)
		return nil
	}

	user, found, err := pc.tx.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !found {
		plan.addError(rowIndex, KindGrantNotFound, fmt.Sprintf("no user %s", email))
		return nil
	}
	grant, found, err := pc.tx.GetActiveGrant(ctx, user.ID, scope)
	if err != nil {
		return err
	}
	if !found {
		// Distinguish "never granted" from "granted and since revoked":
		// a revoked grant is terminal, and acting on it is a conflict.
		n, err := pc.tx.CountGrants(ctx, user.ID, scope)
		if err != nil {
			return err
		}
		if n > 0 {
			plan.addError(rowIndex, KindGrantAlreadyRevoked, fmt.Sprintf("grant for %s at the referenced scope is revoked", email))
			return nil
		}
		plan.addError(rowIndex, KindGrantNotFound, fmt.Sprintf("no grant for %s at the referenced scope", email))
		return nil
	}
	if !grant.UnderReview(now) {
		plan.addWarning(rowIndex, KindNotDue, fmt.Sprintf("grant for %s is not due until %s", email, grant.NextReviewDue.Format("2006-01-02")))
	}

	before := grant
	var (
		classification Classification
		reviewStatus   accesstypes.ReviewStatus
		auditAction    string
	)
	switch action {
	case actionRecertify:
		classification = ClassifyRecertify
		reviewStatus = accesstypes.ReviewCertified
		auditAction = audittypes.ActionRecertify
		err = grant.Certify(now)
	case actionUpdate:
		newRole, ok := accesstypes.RoleFromAccessLevel(row.NewRole)
		if !ok {
			plan.addError(rowIndex, KindUnknownRole, fmt.Sprintf("unknown role %q", row.NewRole))
			return nil
		}
		classification = ClassifyChangeRole
		reviewStatus = accesstypes.ReviewModified
		auditAction = audittypes.ActionUpdate
		err = grant.ChangeRole(newRole, row.Notes, now)
	case actionTerminate:
		classification = ClassifyRevoke
		reviewStatus = accesstypes.ReviewRevoked
		auditAction = audittypes.ActionRevoke
		err = grant.Revoke(reviewedBy, row.Notes, now)
	}
	if err != nil {
		if kind, rowScoped := applyErrorKind(err); rowScoped {
			plan.addError(rowIndex, kind, err.Error())
			return nil
		}
		return err
	}

	if err := pc.tx.UpdateGrant(ctx, grant); err != nil {
		if kind, rowScoped := applyErrorKind(err); rowScoped {
			plan.addError(rowIndex, kind, err.Error())
			return nil
		}
		return err
	}
	review := accesstypes.Review{
		ID:         uuidv7.MustNewString(),
		AccessID:   grant.ID,
		ReviewDate: now,
		ReviewedBy: reviewedBy,
		Status:     reviewStatus,
		Notes:      strings.TrimSpace(row.Notes),
	}
	if err := pc.tx.InsertReview(ctx, review); err != nil {
		return err
	}
	if err := auditGrant(ctx, pc.tx, auditAction, &before, grant, reviewedBy, strings.TrimSpace(row.Notes)); err != nil {
		return err
	}
	plan.Entries = append(plan.Entries, PlanEntry{
		ID:             deterministicID("review", email, scope.Key(), string(classification), string(grant.Role)),
		RowIndex:       rowIndex,
		Classification: classification,
		Before:         before,
		After:          grant,
	})
	return nil
}
