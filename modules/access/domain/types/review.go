package types

import "time"

type ReviewStatus string

const (
	ReviewCertified ReviewStatus = "Certified"
	ReviewModified  ReviewStatus = "Modified"
	ReviewRevoked   ReviewStatus = "Revoked"
)

// Review is the immutable record of one completed review action on a
// grant. Exactly one is written per Certify/ChangeRole/Revoke.
type Review struct {
	ID         string       `json:"review_id"`
	AccessID   string       `json:"access_id"`
	ReviewDate time.Time    `json:"review_date"`
	ReviewedBy string       `json:"reviewed_by"`
	Status     ReviewStatus `json:"status"`
	Notes      string       `json:"notes,omitempty"`
}
