package types

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrGrantAlreadyRevoked = errors.New("grant is revoked")
	ErrReasonRequired      = errors.New("a non-empty reason is required")
	ErrUserTerminated      = errors.New("user is terminated")
	ErrInvalidRole         = errors.New("invalid role")
)

// DefaultReviewCycleMonths applies when a grant is created without an
// explicit cycle.
const DefaultReviewCycleMonths = 12

// Scope is the (program, optional clinic, optional location) tuple a
// grant attaches to. NULL clinic/location are distinct scope
// identities, never wildcards.
type Scope struct {
	ProgramID  string `json:"program_id"`
	ClinicID   string `json:"clinic_id,omitempty"`
	LocationID string `json:"location_id,omitempty"`
}

// Key is a stable composite identity for uniqueness checks.
func (s Scope) Key() string {
	return s.ProgramID + "|" + s.ClinicID + "|" + s.LocationID
}

// Grant is mutable only through the transition methods below; the
// stores persist whatever state those methods produce.
type Grant struct {
	ID                string     `json:"access_id"`
	UserID            string     `json:"user_id"`
	Scope             Scope      `json:"scope"`
	Role              Role       `json:"role"`
	IsActive          bool       `json:"is_active"`
	GrantedDate       time.Time  `json:"granted_date"`
	GrantedBy         string     `json:"granted_by"`
	ReviewCycleMonths int        `json:"review_cycle_months"`
	NextReviewDue     time.Time  `json:"next_review_due"`
	RevokedDate       *time.Time `json:"revoked_date,omitempty"`
	RevokedBy         string     `json:"revoked_by,omitempty"`
	RevokeReason      string     `json:"revoke_reason,omitempty"`
}

// NewGrant activates a grant: none -> Active. The caller supplies the
// id; review scheduling starts from now.
func NewGrant(id string, user User, scope Scope, role Role, grantedBy string, cycleMonths int, now time.Time) (Grant, error) {
	if !role.Valid() {
		return Grant{}, ErrInvalidRole
	}
	if user.Status == UserTerminated {
		return Grant{}, ErrUserTerminated
	}
	if cycleMonths <= 0 {
		cycleMonths = DefaultReviewCycleMonths
	}
	now = now.UTC()
	return Grant{
		ID:                id,
		UserID:            user.ID,
		Scope:             scope,
		Role:              role,
		IsActive:          true,
		GrantedDate:       now,
		GrantedBy:         grantedBy,
		ReviewCycleMonths: cycleMonths,
		NextReviewDue:     now.AddDate(0, cycleMonths, 0),
	}, nil
}

// UnderReview reports the derived state: an active grant whose next
// review date has passed.
func (g *Grant) UnderReview(now time.Time) bool {
	return g.IsActive && now.After(g.NextReviewDue)
}

// Certify confirms access remains appropriate and resets the review
// clock. Active/UnderReview -> Active.
func (g *Grant) Certify(now time.Time) error {
	if !g.IsActive {
		return ErrGrantAlreadyRevoked
	}
	g.NextReviewDue = now.UTC().AddDate(0, g.ReviewCycleMonths, 0)
	return nil
}

// ChangeRole moves the grant to a new role and resets the review
// clock. Requires a non-empty reason.
func (g *Grant) ChangeRole(newRole Role, reason string, now time.Time) error {
	if !g.IsActive {
		return ErrGrantAlreadyRevoked
	}
	if !newRole.Valid() {
		return ErrInvalidRole
	}
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	g.Role = newRole
	g.NextReviewDue = now.UTC().AddDate(0, g.ReviewCycleMonths, 0)
	return nil
}

// Revoke is terminal. Requires a non-empty reason.
func (g *Grant) Revoke(revokedBy string, reason string, now time.Time) error {
	if !g.IsActive {
		return ErrGrantAlreadyRevoked
	}
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	now = now.UTC()
	g.IsActive = false
	g.RevokedDate = &now
	g.RevokedBy = revokedBy
	g.RevokeReason = reason
	return nil
}
