package types

import (
	"errors"
	"testing"
	"time"
)

var stateTestNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func activeUser() User {
	return User{ID: "u1", Name: "Dana Reyes", Email: "dana@clinic.example", Status: UserActive}
}

func TestNewGrantSchedulesReview(t *testing.T) {
	g, err := NewGrant("g1", activeUser(), Scope{ProgramID: "p1"}, RoleReadOnly, "admin@propel.example", 0, stateTestNow)
	if err != nil {
		t.Fatalf("NewGrant: %v", err)
	}
	if !g.IsActive {
		t.Fatalf("new grant must be active")
	}
	want := stateTestNow.AddDate(0, DefaultReviewCycleMonths, 0)
	if !g.NextReviewDue.Equal(want) {
		t.Fatalf("next review %v, want %v", g.NextReviewDue, want)
	}
	if g.GrantedBy != "admin@propel.example" {
		t.Fatalf("granted_by = %q", g.GrantedBy)
	}
}

func TestNewGrantRejectsTerminatedUser(t *testing.T) {
	u := activeUser()
	u.Status = UserTerminated
	_, err := NewGrant("g1", u, Scope{ProgramID: "p1"}, RoleReadOnly, "admin@propel.example", 0, stateTestNow)
	if !errors.Is(err, ErrUserTerminated) {
		t.Fatalf("want ErrUserTerminated, got %v", err)
	}
}

func TestUnderReviewIsDerivedFromDueDate(t *testing.T) {
	g, _ := NewGrant("g1", activeUser(), Scope{ProgramID: "p1"}, RoleReadOnly, "admin@propel.example", 12, stateTestNow)
	if g.UnderReview(stateTestNow) {
		t.Fatalf("fresh grant must not be under review")
	}
	later := stateTestNow.AddDate(0, 13, 0)
	if !g.UnderReview(later) {
		t.Fatalf("grant past its due date must be under review")
	}
}

func TestCertifyResetsReviewClock(t *testing.T) {
	g, _ := NewGrant("g1", activeUser(), Scope{ProgramID: "p1"}, RoleReadOnly, "admin@propel.example", 12, stateTestNow)
	later := stateTestNow.AddDate(0, 13, 0)
	if err := g.Certify(later); err != nil {
		t.Fatalf("Certify: %v", err)
	}
	if g.UnderReview(later) {
		t.Fatalf("certified grant must not be under review")
	}
	want := later.AddDate(0, 12, 0)
	if !g.NextReviewDue.Equal(want) {
		t.Fatalf("next review %v, want %v", g.NextReviewDue, want)
	}
}

func TestChangeRoleRequiresReason(t *testing.T) {
	g, _ := NewGrant("g1", activeUser(), Scope{ProgramID: "p1"}, RoleReadOnly, "admin@propel.example", 12, stateTestNow)
	if err := g.ChangeRole(RoleReadWrite, "  ", stateTestNow); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("want ErrReasonRequired, got %v", err)
	}
	if err := g.ChangeRole(RoleReadWrite, "promotion", stateTestNow); err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}
	if g.Role != RoleReadWrite {
		t.Fatalf("role = %q", g.Role)
	}
}

func TestRevokeIsTerminal(t *testing.T) {
	g, _ := NewGrant("g1", activeUser(), Scope{ProgramID: "p1"}, RoleReadOnly, "admin@propel.example", 12, stateTestNow)
	if err := g.Revoke("admin@propel.example", "", stateTestNow); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("want ErrReasonRequired, got %v", err)
	}
	if err := g.Revoke("admin@propel.example", "left the organization", stateTestNow); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if g.IsActive || g.RevokedDate == nil || g.RevokeReason == "" {
		t.Fatalf("revoked grant state: %+v", g)
	}

	if err := g.Certify(stateTestNow); !errors.Is(err, ErrGrantAlreadyRevoked) {
		t.Fatalf("Certify after revoke: want ErrGrantAlreadyRevoked, got %v", err)
	}
	if err := g.ChangeRole(RoleReadWrite, "x", stateTestNow); !errors.Is(err, ErrGrantAlreadyRevoked) {
		t.Fatalf("ChangeRole after revoke: want ErrGrantAlreadyRevoked, got %v", err)
	}
	if err := g.Revoke("admin@propel.example", "again", stateTestNow); !errors.Is(err, ErrGrantAlreadyRevoked) {
		t.Fatalf("Revoke after revoke: want ErrGrantAlreadyRevoked, got %v", err)
	}
}

func TestRoleFromAccessLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"Read + Write + Order", RoleReadWriteOrder, true},
		{"Read + Write", RoleReadWrite, true},
		{"Read Only", RoleReadOnly, true},
		{"read only", RoleReadOnly, true},
		{"  Read   Only ", RoleReadOnly, true},
		{"Read-Write-Order", RoleReadWriteOrder, true},
		{"Admin", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := RoleFromAccessLevel(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("RoleFromAccessLevel(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{" Dana@Clinic.example ", "dana@clinic.example", true},
		{"dana@clinic.example", "dana@clinic.example", true},
		{"no-at-sign", "", false},
		{"@clinic.example", "", false},
		{"dana@", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeEmail(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("NormalizeEmail(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
