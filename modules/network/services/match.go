// Package services resolves caller-supplied program/clinic/location
// references against directory listings. Matching is pure so the
// reconcilers can run it against reads taken inside their own
// transaction.
package services

import (
	"fmt"
	"strings"

	"github.com/glewis05/propel-mcp/modules/network/domain/types"
)

type MatchError struct {
	Ref       string
	Ambiguous bool
}

func (e *MatchError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("ambiguous reference %q", e.Ref)
	}
	return fmt.Sprintf("no match for reference %q", e.Ref)
}

func notFound(ref string) error  { return &MatchError{Ref: ref} }
func ambiguous(ref string) error { return &MatchError{Ref: ref, Ambiguous: true} }

// MatchProgram resolves ref against a program list. Precedence: exact
// prefix (case-insensitive), exact name, then unique name prefix.
// Anything matching more than one program is ambiguous, not a pick.
func MatchProgram(programs []types.Program, ref string) (types.Program, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return types.Program{}, notFound(ref)
	}
	lowered := strings.ToLower(ref)

	for _, p := range programs {
		if strings.ToLower(p.Prefix) == lowered {
			return p, nil
		}
	}
	for _, p := range programs {
		if strings.ToLower(p.Name) == lowered {
			return p, nil
		}
	}

	var hits []types.Program
	for _, p := range programs {
		if strings.HasPrefix(strings.ToLower(p.Name), lowered) {
			hits = append(hits, p)
		}
	}
	switch len(hits) {
	case 0:
		return types.Program{}, notFound(ref)
	case 1:
		return hits[0], nil
	default:
		return types.Program{}, ambiguous(ref)
	}
}

// MatchClinic resolves ref within one program's clinics by code or
// name (case-insensitive), then by unique name prefix.
func MatchClinic(clinics []types.Clinic, ref string) (types.Clinic, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return types.Clinic{}, notFound(ref)
	}
	lowered := strings.ToLower(ref)

	for _, c := range clinics {
		if c.Code != "" && strings.ToLower(c.Code) == lowered {
			return c, nil
		}
	}
	for _, c := range clinics {
		if strings.ToLower(c.Name) == lowered {
			return c, nil
		}
	}

	var hits []types.Clinic
	for _, c := range clinics {
		if strings.HasPrefix(strings.ToLower(c.Name), lowered) {
			hits = append(hits, c)
		}
	}
	switch len(hits) {
	case 0:
		return types.Clinic{}, notFound(ref)
	case 1:
		return hits[0], nil
	default:
		return types.Clinic{}, ambiguous(ref)
	}
}

// MatchLocation resolves ref within one clinic's locations by code or
// name, then by unique name prefix.
func MatchLocation(locations []types.Location, ref string) (types.Location, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return types.Location{}, notFound(ref)
	}
	lowered := strings.ToLower(ref)

	for _, l := range locations {
		if l.Code != "" && strings.ToLower(l.Code) == lowered {
			return l, nil
		}
	}
	for _, l := range locations {
		if strings.ToLower(l.Name) == lowered {
			return l, nil
		}
	}

	var hits []types.Location
	for _, l := range locations {
		if strings.HasPrefix(strings.ToLower(l.Name), lowered) {
			hits = append(hits, l)
		}
	}
	switch len(hits) {
	case 0:
		return types.Location{}, notFound(ref)
	case 1:
		return hits[0], nil
	default:
		return types.Location{}, ambiguous(ref)
	}
}
