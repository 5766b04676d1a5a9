package types

import (
	"strings"
	"time"
)

type UserStatus string

const (
	UserActive     UserStatus = "Active"
	UserInactive   UserStatus = "Inactive"
	UserTerminated UserStatus = "Terminated"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserActive, UserInactive, UserTerminated:
		return true
	}
	return false
}

// User is identified by email; comparisons always use the normalized
// form. Terminated is terminal.
type User struct {
	ID                  string     `json:"user_id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Organization        string     `json:"organization,omitempty"`
	JobRole             string     `json:"job_role,omitempty"`
	Credentials         string     `json:"credentials,omitempty"`
	Status              UserStatus `json:"status"`
	IsBusinessAssociate bool       `json:"is_business_associate"`
	CreatedAt           time.Time  `json:"created_at"`
}

// NormalizeEmail trims and lowercases. Validity here is only the
// presence of an @ with text on both sides; anything stricter belongs
// to the upstream adapter.
func NormalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", false
	}
	return email, true
}
