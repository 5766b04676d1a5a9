package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glewis05/propel-mcp/modules/access/domain/ports"
	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	networkports "github.com/glewis05/propel-mcp/modules/network/domain/ports"
	networkservices "github.com/glewis05/propel-mcp/modules/network/services"
	"github.com/glewis05/propel-mcp/pkg/httperr"
)

// DueSoonHorizonDays is how far ahead the reviews-due report looks.
const DueSoonHorizonDays = 30

const dateLayout = "2006-01-02"

// Queries composes the read-side operations: user and grant listings,
// reviews due, the annual-review export, and compliance reports.
type Queries struct {
	reads ports.ReadStore
	dir   networkports.DirectoryStore
	now   func() time.Time
}

func NewQueries(reads ports.ReadStore, dir networkports.DirectoryStore) *Queries {
	return &Queries{
		reads: reads,
		dir:   dir,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the query clock. Test hook.
func (q *Queries) WithClock(now func() time.Time) *Queries {
	q.now = now
	return q
}

// resolveProgramRef maps an optional caller reference to a program id.
// Blank means no filter.
func (q *Queries) resolveProgramRef(ctx context.Context, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", nil
	}
	programs, err := q.dir.ListPrograms(ctx)
	if err != nil {
		return "", err
	}
	program, err := networkservices.MatchProgram(programs, ref)
	if err != nil {
		return "", httperr.NewNotFound(err.Error())
	}
	return program.ID, nil
}

func (q *Queries) resolveClinicRef(ctx context.Context, programID, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", nil
	}
	if programID == "" {
		return "", httperr.NewBadRequest("clinic filter requires a program")
	}
	clinics, err := q.dir.ListClinics(ctx, programID)
	if err != nil {
		return "", err
	}
	clinic, err := networkservices.MatchClinic(clinics, ref)
	if err != nil {
		return "", httperr.NewNotFound(err.Error())
	}
	return clinic.ID, nil
}

func (q *Queries) resolveLocationRef(ctx context.Context, clinicID, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", nil
	}
	if clinicID == "" {
		return "", httperr.NewBadRequest("location filter requires a clinic")
	}
	locations, err := q.dir.ListLocations(ctx, clinicID)
	if err != nil {
		return "", err
	}
	location, err := networkservices.MatchLocation(locations, ref)
	if err != nil {
		return "", httperr.NewNotFound(err.Error())
	}
	return location.ID, nil
}

func (q *Queries) ListUsers(ctx context.Context, programRef, clinicRef, organization string, status accesstypes.UserStatus) ([]accesstypes.UserSummary, error) {
	if status != "" && !status.Valid() {
		return nil, httperr.NewBadRequest(fmt.Sprintf("invalid status %q", status))
	}
	programID, err := q.resolveProgramRef(ctx, programRef)
	if err != nil {
		return nil, err
	}
	clinicID, err := q.resolveClinicRef(ctx, programID, clinicRef)
	if err != nil {
		return nil, err
	}
	return q.reads.ListUsers(ctx, ports.UserFilter{
		ProgramID:    programID,
		ClinicID:     clinicID,
		Organization: strings.TrimSpace(organization),
		Status:       status,
	})
}

func (q *Queries) GetUser(ctx context.Context, rawEmail string) (accesstypes.UserDetail, error) {
	email, ok := accesstypes.NormalizeEmail(rawEmail)
	if !ok {
		return accesstypes.UserDetail{}, httperr.NewBadRequest(fmt.Sprintf("invalid email %q", rawEmail))
	}
	detail, found, err := q.reads.GetUserDetail(ctx, email)
	if err != nil {
		return accesstypes.UserDetail{}, err
	}
	if !found {
		return accesstypes.UserDetail{}, httperr.NewNotFound(fmt.Sprintf("no user %s", email))
	}
	return detail, nil
}

func (q *Queries) ListAccess(ctx context.Context, email, programRef string) ([]accesstypes.GrantDetail, error) {
	programID, err := q.resolveProgramRef(ctx, programRef)
	if err != nil {
		return nil, err
	}
	filter := ports.GrantFilter{ProgramID: programID}
	if strings.TrimSpace(email) != "" {
		normalized, ok := accesstypes.NormalizeEmail(email)
		if !ok {
			return nil, httperr.NewBadRequest(fmt.Sprintf("invalid email %q", email))
		}
		filter.Email = normalized
	}
	return q.reads.ListGrants(ctx, filter)
}

// ReviewsDue splits active grants into overdue and due within the
// horizon.
func (q *Queries) ReviewsDue(ctx context.Context, programRef string) (accesstypes.ReviewsDue, error) {
	programID, err := q.resolveProgramRef(ctx, programRef)
	if err != nil {
		return accesstypes.ReviewsDue{}, err
	}
	candidates, err := q.reads.ListReviewCandidates(ctx, ports.GrantFilter{ProgramID: programID, ActiveOnly: true})
	if err != nil {
		return accesstypes.ReviewsDue{}, err
	}

	now := q.now()
	out := accesstypes.ReviewsDue{Overdue: []accesstypes.ReviewDueItem{}, DueSoon: []accesstypes.ReviewDueItem{}}
	for _, g := range candidates {
		days := int(g.NextReviewDue.Sub(now).Hours() / 24)
		switch {
		case now.After(g.NextReviewDue):
			out.Overdue = append(out.Overdue, accesstypes.ReviewDueItem{GrantDetail: g, DaysOverdue: -days})
		case days <= DueSoonHorizonDays:
			out.DueSoon = append(out.DueSoon, accesstypes.ReviewDueItem{GrantDetail: g, DaysUntilDue: days})
		}
	}
	return out, nil
}

// ExportReview builds the annual-review worksheet rows. Action,
// NewRole and Notes are blank for the reviewer to fill in; the result
// round-trips through ReconcileReview. By default only grants due or
// overdue are included; includeCurrent widens to every active grant.
func (q *Queries) ExportReview(ctx context.Context, programRef, clinicRef, locationRef string, includeCurrent bool) ([]accesstypes.ReviewExportRow, error) {
	programID, err := q.resolveProgramRef(ctx, programRef)
	if err != nil {
		return nil, err
	}
	clinicID, err := q.resolveClinicRef(ctx, programID, clinicRef)
	if err != nil {
		return nil, err
	}
	locationID, err := q.resolveLocationRef(ctx, clinicID, locationRef)
	if err != nil {
		return nil, err
	}
	candidates, err := q.reads.ListReviewCandidates(ctx, ports.GrantFilter{
		ProgramID:  programID,
		ClinicID:   clinicID,
		LocationID: locationID,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}

	now := q.now()
	horizon := now.AddDate(0, 0, DueSoonHorizonDays)
	var selected []accesstypes.GrantDetail
	var ids []string
	for _, g := range candidates {
		if !includeCurrent && g.NextReviewDue.After(horizon) {
			continue
		}
		selected = append(selected, g)
		ids = append(ids, g.ID)
	}

	lastReviews := map[string]string{}
	if len(ids) > 0 {
		lastReviews, err = q.reads.LastReviewDates(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	rows := make([]accesstypes.ReviewExportRow, 0, len(selected))
	for _, g := range selected {
		rows = append(rows, accesstypes.ReviewExportRow{
			Name:          g.UserName,
			Email:         g.UserEmail,
			Status:        string(g.UserStatus),
			Role:          string(g.Role),
			Program:       g.ProgramName,
			Clinic:        g.ClinicName,
			Location:      g.LocationName,
			AccessGranted: g.GrantedDate.Format(dateLayout),
			LastReview:    lastReviews[g.ID],
			NextReviewDue: g.NextReviewDue.Format(dateLayout),
		})
	}
	return rows, nil
}

func (q *Queries) Training(ctx context.Context, rawEmail string) ([]accesstypes.TrainingRecord, error) {
	email, ok := accesstypes.NormalizeEmail(rawEmail)
	if !ok {
		return nil, httperr.NewBadRequest(fmt.Sprintf("invalid email %q", rawEmail))
	}
	return q.reads.ListTraining(ctx, email)
}

func (q *Queries) ExpiredTraining(ctx context.Context) ([]accesstypes.TrainingRecord, error) {
	return q.reads.ListExpiredTraining(ctx)
}

// ComplianceReport composes one of the closed report types over the
// read store.
func (q *Queries) ComplianceReport(ctx context.Context, reportType accesstypes.ReportType) (accesstypes.ComplianceReport, error) {
	if !reportType.Valid() {
		return accesstypes.ComplianceReport{}, httperr.NewBadRequest(fmt.Sprintf("unknown report type %q", reportType))
	}
	report := accesstypes.ComplianceReport{
		Type:        reportType,
		GeneratedAt: q.now(),
		Summary:     map[string]int{},
	}

	switch reportType {
	case accesstypes.ReportAccessList:
		grants, err := q.reads.ListGrants(ctx, ports.GrantFilter{ActiveOnly: true})
		if err != nil {
			return accesstypes.ComplianceReport{}, err
		}
		report.AccessList = grants
		report.Summary["active_grants"] = len(grants)

	case accesstypes.ReportReviewStatus:
		due, err := q.ReviewsDue(ctx, "")
		if err != nil {
			return accesstypes.ComplianceReport{}, err
		}
		report.ReviewStatus = &due
		report.Summary["overdue"] = len(due.Overdue)
		report.Summary["due_soon"] = len(due.DueSoon)

	case accesstypes.ReportTrainingCompliance:
		expired, err := q.reads.ListExpiredTraining(ctx)
		if err != nil {
			return accesstypes.ComplianceReport{}, err
		}
		report.Training = expired
		report.Summary["expired"] = len(expired)

	case accesstypes.ReportTerminatedAudit:
		breaches, err := q.reads.TerminatedWithActiveGrants(ctx)
		if err != nil {
			return accesstypes.ComplianceReport{}, err
		}
		report.TerminatedAudit = breaches
		report.Summary["terminated_with_active_access"] = len(breaches)

	case accesstypes.ReportBusinessAssociates:
		users, err := q.reads.ListBusinessAssociates(ctx)
		if err != nil {
			return accesstypes.ComplianceReport{}, err
		}
		report.BusinessAssociates = users
		report.Summary["business_associates"] = len(users)
	}
	return report, nil
}
