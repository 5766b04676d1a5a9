package types

import "time"

// UserSummary is a directory listing row.
type UserSummary struct {
	User
	ActiveGrantCount int `json:"active_grant_count"`
}

// GrantDetail joins a grant with the display names of its user and
// scope for the read side.
type GrantDetail struct {
	Grant
	UserName     string     `json:"user_name"`
	UserEmail    string     `json:"user_email"`
	UserStatus   UserStatus `json:"user_status"`
	ProgramName  string     `json:"program_name"`
	ClinicName   string     `json:"clinic_name,omitempty"`
	LocationName string     `json:"location_name,omitempty"`
	UnderReview  bool       `json:"under_review"`
}

// UserDetail is the single-user view: profile, grants, training.
type UserDetail struct {
	User     User             `json:"user"`
	Grants   []GrantDetail    `json:"grants"`
	Training []TrainingRecord `json:"training"`
}

// ReviewDueItem is one grant in the reviews-due report.
type ReviewDueItem struct {
	GrantDetail
	DaysOverdue  int `json:"days_overdue,omitempty"`
	DaysUntilDue int `json:"days_until_due,omitempty"`
}

// ReviewsDue splits grants by urgency: past due versus due within the
// horizon.
type ReviewsDue struct {
	Overdue []ReviewDueItem `json:"overdue"`
	DueSoon []ReviewDueItem `json:"due_soon"`
}

// ReviewExportRow is one row of the annual-review worksheet. Action,
// NewRole and Notes ship blank; the filled-in sheet round-trips
// through the review importer.
type ReviewExportRow struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Status        string `json:"status"`
	Role          string `json:"role"`
	Program       string `json:"program"`
	Clinic        string `json:"clinic,omitempty"`
	Location      string `json:"location,omitempty"`
	AccessGranted string `json:"access_granted"`
	LastReview    string `json:"last_review_date,omitempty"`
	NextReviewDue string `json:"next_review_due"`
	Action        string `json:"action"`
	NewRole       string `json:"new_role"`
	Notes         string `json:"notes"`
}

type TrainingStatus string

const (
	TrainingCurrent TrainingStatus = "Current"
	TrainingPending TrainingStatus = "Pending"
	TrainingExpired TrainingStatus = "Expired"
)

type TrainingRecord struct {
	ID            string         `json:"training_id"`
	UserID        string         `json:"user_id"`
	UserEmail     string         `json:"user_email,omitempty"`
	TrainingType  string         `json:"training_type"`
	Status        TrainingStatus `json:"status"`
	AssignedDate  *time.Time     `json:"assigned_date,omitempty"`
	CompletedDate *time.Time     `json:"completed_date,omitempty"`
	ExpiresDate   *time.Time     `json:"expires_date,omitempty"`
}

type ReportType string

const (
	ReportAccessList         ReportType = "access_list"
	ReportReviewStatus       ReportType = "review_status"
	ReportTrainingCompliance ReportType = "training_compliance"
	ReportTerminatedAudit    ReportType = "terminated_audit"
	ReportBusinessAssociates ReportType = "business_associates"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportAccessList, ReportReviewStatus, ReportTrainingCompliance,
		ReportTerminatedAudit, ReportBusinessAssociates:
		return true
	}
	return false
}

// ComplianceReport is the envelope for every report type; only the
// section matching Type is populated.
type ComplianceReport struct {
	Type               ReportType       `json:"report_type"`
	GeneratedAt        time.Time        `json:"generated_at"`
	Summary            map[string]int   `json:"summary"`
	AccessList         []GrantDetail    `json:"access_list,omitempty"`
	ReviewStatus       *ReviewsDue      `json:"review_status,omitempty"`
	Training           []TrainingRecord `json:"training,omitempty"`
	TerminatedAudit    []GrantDetail    `json:"terminated_audit,omitempty"`
	BusinessAssociates []UserSummary    `json:"business_associates,omitempty"`
}
