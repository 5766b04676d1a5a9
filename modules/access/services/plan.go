// Package services holds the reconciliation engine: roster and review
// planning, the shared plan/commit harness, and the read-side report
// composition.
package services

import (
	"github.com/google/uuid"
)

// Classification tags one plan entry with the mutation it proposes.
type Classification string

const (
	ClassifyCreateUserAndGrant Classification = "CreateUserAndGrant"
	ClassifyCreateGrant        Classification = "CreateGrant"
	ClassifyUpdateGrantRole    Classification = "UpdateGrantRole"
	ClassifyNoOp               Classification = "NoOp"
	ClassifyRecertify          Classification = "Recertify"
	ClassifyChangeRole         Classification = "ChangeRole"
	ClassifyRevoke             Classification = "Revoke"
)

// ErrorKind is the closed set of row-scoped failure codes.
type ErrorKind string

const (
	KindInvalidEmail         ErrorKind = "INVALID_EMAIL"
	KindUnknownRole          ErrorKind = "UNKNOWN_ROLE"
	KindProgramNotFound      ErrorKind = "PROGRAM_NOT_FOUND"
	KindClinicNotFound       ErrorKind = "CLINIC_NOT_FOUND"
	KindLocationNotFound     ErrorKind = "LOCATION_NOT_FOUND"
	KindGrantNotFound        ErrorKind = "GRANT_NOT_FOUND"
	KindNotDue               ErrorKind = "NOT_DUE"
	KindMissingRequiredField ErrorKind = "MISSING_REQUIRED_FIELD"
	KindInvalidAction        ErrorKind = "INVALID_ACTION"
	KindDuplicateGrant       ErrorKind = "DUPLICATE_GRANT"
	KindGrantAlreadyRevoked  ErrorKind = "GRANT_ALREADY_REVOKED"
	KindUserTerminated       ErrorKind = "USER_TERMINATED"
	KindScopeMismatch        ErrorKind = "SCOPE_MISMATCH"
)

// ErrorClass groups kinds by the taxonomy the caller reports on.
type ErrorClass string

const (
	ClassValidation ErrorClass = "validation"
	ClassNotFound   ErrorClass = "not_found"
	ClassConflict   ErrorClass = "conflict"
	ClassIntegrity  ErrorClass = "integrity"
)

func (k ErrorKind) Class() ErrorClass {
	switch k {
	case KindProgramNotFound, KindClinicNotFound, KindLocationNotFound, KindGrantNotFound:
		return ClassNotFound
	case KindDuplicateGrant, KindGrantAlreadyRevoked, KindUserTerminated:
		return ClassConflict
	case KindScopeMismatch:
		return ClassIntegrity
	default:
		return ClassValidation
	}
}

// RowError is one row-scoped failure. Warning-severity errors flag the
// row without excluding it from the plan.
type RowError struct {
	RowIndex int        `json:"row_index"`
	Kind     ErrorKind  `json:"kind"`
	Class    ErrorClass `json:"class"`
	Message  string     `json:"message"`
	Warning  bool       `json:"warning,omitempty"`
}

// PlanEntry is one proposed mutation with before/after snapshots.
// Snapshot payloads are the serialized domain records; Before is nil
// for creations.
type PlanEntry struct {
	ID             string         `json:"entry_id"`
	RowIndex       int            `json:"row_index"`
	Classification Classification `json:"classification"`
	Before         any            `json:"before,omitempty"`
	After          any            `json:"after,omitempty"`
}

// Plan is the full outcome of one reconciliation run. Preview and
// commit produce the same Plan for the same input and store state.
type Plan struct {
	Mode    string      `json:"mode"`
	Entries []PlanEntry `json:"entries"`
	Errors  []RowError  `json:"errors"`
}

func (p *Plan) addError(rowIndex int, kind ErrorKind, message string) {
	p.Errors = append(p.Errors, RowError{
		RowIndex: rowIndex,
		Kind:     kind,
		Class:    kind.Class(),
		Message:  message,
	})
}

func (p *Plan) addWarning(rowIndex int, kind ErrorKind, message string) {
	p.Errors = append(p.Errors, RowError{
		RowIndex: rowIndex,
		Kind:     kind,
		Class:    kind.Class(),
		Message:  message,
		Warning:  true,
	})
}

// planNamespace scopes deterministic IDs. Plan entries and the rows
// they create derive IDs from the mutation's identity, so identical
// runs over identical state produce identical plans.
var planNamespace = uuid.MustParse("8f1f9ab2-33cc-45a1-9a70-5cde1f1a7b6e")

func deterministicID(parts ...string) string {
	name := ""
	for i, p := range parts {
		if i > 0 {
			name += "\x00"
		}
		name += p
	}
	return uuid.NewSHA1(planNamespace, []byte(name)).String()
}
