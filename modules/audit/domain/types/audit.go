package types

import (
	"encoding/json"
	"time"
)

// Record is a single append-only audit entry. Exactly one Record is
// written for every committed mutation to a user, an access grant, or
// a config value, inside the same transaction as the mutation itself.
type Record struct {
	ID         string          `json:"audit_id"`
	RecordType string          `json:"record_type"`
	RecordID   string          `json:"record_id"`
	Action     string          `json:"action"`
	OldValue   json.RawMessage `json:"old_value,omitempty"`
	NewValue   json.RawMessage `json:"new_value"`
	Actor      string          `json:"actor"`
	Reason     string          `json:"reason,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

const (
	RecordTypeUser        = "user"
	RecordTypeAccessGrant = "access_grant"
	RecordTypeConfigValue = "config_value"
)

const (
	ActionCreate    = "create"
	ActionUpdate    = "update"
	ActionRecertify = "recertify"
	ActionRevoke    = "revoke"
)
