package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/glewis05/propel-mcp/modules/access/domain/ports"
	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
)

// PGReadStore serves the tool-layer read queries. Each call runs in
// its own read transaction.
type PGReadStore struct {
	pool pgBeginner
}

func NewPGReadStore(pool pgBeginner) ports.ReadStore {
	return &PGReadStore{pool: pool}
}

func (s *PGReadStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGReadStore) ListUsers(ctx context.Context, filter ports.UserFilter) ([]accesstypes.UserSummary, error) {
	var out []accesstypes.UserSummary
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
SELECT u.user_id::text, u.name, u.email, COALESCE(u.organization, ''), COALESCE(u.job_role, ''),
       COALESCE(u.credentials, ''), u.status, u.is_business_associate, u.created_at,
       (SELECT count(*) FROM access_grants g WHERE g.user_id = u.user_id AND g.is_active) AS active_grants
FROM users u
WHERE ($1 = '' OR u.status = $1)
  AND ($2 = '' OR lower(u.organization) = lower($2))
  AND ($3 = '' OR EXISTS (
        SELECT 1 FROM access_grants g
        WHERE g.user_id = u.user_id AND g.is_active
          AND g.program_id = $3::uuid
          AND ($4 = '' OR g.clinic_id = $4::uuid)))
ORDER BY u.email ASC
`, string(filter.Status), filter.Organization, filter.ProgramID, filter.ClinicID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var u accesstypes.UserSummary
			if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Organization, &u.JobRole,
				&u.Credentials, &u.Status, &u.IsBusinessAssociate, &u.CreatedAt, &u.ActiveGrantCount); err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	return out, err
}

const grantDetailQuery = `
SELECT g.access_id::text, g.user_id::text, g.program_id::text,
       COALESCE(g.clinic_id::text, ''), COALESCE(g.location_id::text, ''),
       g.role, g.is_active, g.granted_date, g.granted_by, g.review_cycle_months,
       g.next_review_due, g.revoked_date, COALESCE(g.revoked_by, ''), COALESCE(g.revoke_reason, ''),
       u.name, u.email, u.status,
       p.name, COALESCE(c.name, ''), COALESCE(l.name, '')
FROM access_grants g
JOIN users u ON u.user_id = g.user_id
JOIN programs p ON p.program_id = g.program_id
LEFT JOIN clinics c ON c.clinic_id = g.clinic_id
LEFT JOIN locations l ON l.location_id = g.location_id
`

func scanGrantDetail(rows pgx.Rows, now time.Time) (accesstypes.GrantDetail, error) {
	var d accesstypes.GrantDetail
	err := rows.Scan(&d.ID, &d.UserID, &d.Scope.ProgramID, &d.Scope.ClinicID, &d.Scope.LocationID,
		&d.Role, &d.IsActive, &d.GrantedDate, &d.GrantedBy, &d.ReviewCycleMonths,
		&d.NextReviewDue, &d.RevokedDate, &d.RevokedBy, &d.RevokeReason,
		&d.UserName, &d.UserEmail, &d.UserStatus,
		&d.ProgramName, &d.ClinicName, &d.LocationName)
	if err != nil {
		return accesstypes.GrantDetail{}, err
	}
	d.UnderReview = d.Grant.UnderReview(now)
	return d, nil
}

func (s *PGReadStore) queryGrantDetails(ctx context.Context, tx pgx.Tx, where string, args ...any) ([]accesstypes.GrantDetail, error) {
	rows, err := tx.Query(ctx, grantDetailQuery+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	now := time.Now().UTC()
	var out []accesstypes.GrantDetail
	for rows.Next() {
		d, err := scanGrantDetail(rows, now)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PGReadStore) GetUserDetail(ctx context.Context, email string) (accesstypes.UserDetail, bool, error) {
	var detail accesstypes.UserDetail
	found := false
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var u accesstypes.User
		err := tx.QueryRow(ctx, `
SELECT user_id::text, name, email, COALESCE(organization, ''), COALESCE(job_role, ''),
       COALESCE(credentials, ''), status, is_business_associate, created_at
FROM users
WHERE lower(email) = lower($1)
`, email).Scan(&u.ID, &u.Name, &u.Email, &u.Organization, &u.JobRole,
			&u.Credentials, &u.Status, &u.IsBusinessAssociate, &u.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		detail.User = u

		grants, err := s.queryGrantDetails(ctx, tx, `WHERE g.user_id = $1::uuid ORDER BY g.access_id`, u.ID)
		if err != nil {
			return err
		}
		detail.Grants = grants

		training, err := listTrainingTx(ctx, tx, `WHERE t.user_id = $1::uuid`, u.ID)
		if err != nil {
			return err
		}
		detail.Training = training
		return nil
	})
	return detail, found, err
}

func (s *PGReadStore) ListGrants(ctx context.Context, filter ports.GrantFilter) ([]accesstypes.GrantDetail, error) {
	var out []accesstypes.GrantDetail
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		details, err := s.queryGrantDetails(ctx, tx, `
WHERE ($1 = '' OR lower(u.email) = lower($1))
  AND ($2 = '' OR g.program_id = $2::uuid)
  AND ($3 = '' OR g.clinic_id = $3::uuid)
  AND ($4 = '' OR g.location_id = $4::uuid)
  AND (NOT $5 OR g.is_active)
ORDER BY u.email, g.access_id
`, filter.Email, filter.ProgramID, filter.ClinicID, filter.LocationID, filter.ActiveOnly)
		if err != nil {
			return err
		}
		out = details
		return nil
	})
	return out, err
}

func (s *PGReadStore) ListReviewCandidates(ctx context.Context, filter ports.GrantFilter) ([]accesstypes.GrantDetail, error) {
	filter.ActiveOnly = true
	return s.ListGrants(ctx, filter)
}

func (s *PGReadStore) LastReviewDates(ctx context.Context, accessIDs []string) (map[string]string, error) {
	out := map[string]string{}
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
SELECT access_id::text, to_char(max(review_date), 'YYYY-MM-DD')
FROM access_reviews
WHERE access_id = ANY($1::uuid[])
GROUP BY access_id
`, accessIDs)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id, date string
			if err := rows.Scan(&id, &date); err != nil {
				return err
			}
			out[id] = date
		}
		return rows.Err()
	})
	return out, err
}

const trainingColumns = `
SELECT t.training_id::text, t.user_id::text, u.email, t.training_type, t.status,
       t.assigned_date, t.completed_date, t.expires_date
FROM training_records t
JOIN users u ON u.user_id = t.user_id
`

func listTrainingTx(ctx context.Context, tx pgx.Tx, where string, args ...any) ([]accesstypes.TrainingRecord, error) {
	rows, err := tx.Query(ctx, trainingColumns+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accesstypes.TrainingRecord
	for rows.Next() {
		var tr accesstypes.TrainingRecord
		if err := rows.Scan(&tr.ID, &tr.UserID, &tr.UserEmail, &tr.TrainingType, &tr.Status,
			&tr.AssignedDate, &tr.CompletedDate, &tr.ExpiresDate); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s *PGReadStore) ListTraining(ctx context.Context, email string) ([]accesstypes.TrainingRecord, error) {
	var out []accesstypes.TrainingRecord
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = listTrainingTx(ctx, tx, `WHERE lower(u.email) = lower($1)`, email)
		return err
	})
	return out, err
}

func (s *PGReadStore) ListExpiredTraining(ctx context.Context) ([]accesstypes.TrainingRecord, error) {
	var out []accesstypes.TrainingRecord
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = listTrainingTx(ctx, tx, `WHERE t.status = 'Expired' OR t.expires_date < now()`)
		return err
	})
	return out, err
}

func (s *PGReadStore) ListBusinessAssociates(ctx context.Context) ([]accesstypes.UserSummary, error) {
	var out []accesstypes.UserSummary
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
SELECT u.user_id::text, u.name, u.email, COALESCE(u.organization, ''), COALESCE(u.job_role, ''),
       COALESCE(u.credentials, ''), u.status, u.is_business_associate, u.created_at,
       (SELECT count(*) FROM access_grants g WHERE g.user_id = u.user_id AND g.is_active)
FROM users u
WHERE u.is_business_associate
ORDER BY u.email ASC
`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var u accesstypes.UserSummary
			if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Organization, &u.JobRole,
				&u.Credentials, &u.Status, &u.IsBusinessAssociate, &u.CreatedAt, &u.ActiveGrantCount); err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	return out, err
}

func (s *PGReadStore) TerminatedWithActiveGrants(ctx context.Context) ([]accesstypes.GrantDetail, error) {
	var out []accesstypes.GrantDetail
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		details, err := s.queryGrantDetails(ctx, tx, `
WHERE g.is_active AND u.status = 'Terminated'
ORDER BY u.email, g.access_id
`)
		if err != nil {
			return err
		}
		out = details
		return nil
	})
	return out, err
}
