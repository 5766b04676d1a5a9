package services_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/glewis05/propel-mcp/modules/access/domain/ports"
	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	"github.com/glewis05/propel-mcp/modules/access/services"
	audittypes "github.com/glewis05/propel-mcp/modules/audit/domain/types"
)

func TestRosterNewUserGetsUserAndGrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	plan, err := h.engine.ReconcileRoster(ctx, []services.RosterRow{
		{FirstName: "Ana", LastName: "Silva", Program: "P4M", Clinic: "FRANZ", AccessLevel: "Read Only", Email: "a@x.com"},
	}, "admin@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("ReconcileRoster: %v", err)
	}
	if len(plan.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", plan.Errors)
	}
	if len(plan.Entries) != 1 || plan.Entries[0].Classification != services.ClassifyCreateUserAndGrant {
		t.Fatalf("entries: %+v", plan.Entries)
	}
	grant, ok := plan.Entries[0].After.(accesstypes.Grant)
	if !ok {
		t.Fatalf("After is %T", plan.Entries[0].After)
	}
	if grant.Role != accesstypes.RoleReadOnly {
		t.Fatalf("role %q, want Read-Only", grant.Role)
	}
	if grant.Scope.ProgramID != p4mID || grant.Scope.ClinicID != franzID {
		t.Fatalf("scope %+v", grant.Scope)
	}

	detail, found, err := h.store.GetUserDetail(ctx, "a@x.com")
	if err != nil || !found {
		t.Fatalf("user not persisted (found=%v err=%v)", found, err)
	}
	if len(detail.Grants) != 1 || !detail.Grants[0].IsActive {
		t.Fatalf("grants: %+v", detail.Grants)
	}
}

func TestRosterExistingUserNewScopeCreatesGrantOnly(t *testing.T) {
	h := newHarness(t)

	plan, err := h.engine.ReconcileRoster(context.Background(), []services.RosterRow{
		{FirstName: "Bob", LastName: "Okafor", Program: "Prevention4ME", Clinic: "Franzen Clinic", AccessLevel: "Read + Write", Email: "bob@clinic.example"},
	}, "admin@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("ReconcileRoster: %v", err)
	}
	if len(plan.Entries) != 1 || plan.Entries[0].Classification != services.ClassifyCreateGrant {
		t.Fatalf("entries: %+v", plan.Entries)
	}
}

func TestRosterSameRoleIsNoOp(t *testing.T) {
	h := newHarness(t)

	plan, err := h.engine.ReconcileRoster(context.Background(), []services.RosterRow{
		{Program: "P4M", AccessLevel: "Read + Write", Email: "bob@clinic.example"},
	}, "admin@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("ReconcileRoster: %v", err)
	}
	if len(plan.Entries) != 1 || plan.Entries[0].Classification != services.ClassifyNoOp {
		t.Fatalf("entries: %+v", plan.Entries)
	}
	if got := len(h.ledger.All()); got != 0 {
		t.Fatalf("NoOp must not write audit records, got %d", got)
	}
}

func TestRosterDifferentRoleUpdatesGrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	plan, err := h.engine.ReconcileRoster(ctx, []services.RosterRow{
		{Program: "P4M", AccessLevel: "Read + Write + Order", Email: "bob@clinic.example"},
	}, "admin@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("ReconcileRoster: %v", err)
	}
	if len(plan.Entries) != 1 || plan.Entries[0].Classification != services.ClassifyUpdateGrantRole {
		t.Fatalf("entries: %+v", plan.Entries)
	}
	before := plan.Entries[0].Before.(accesstypes.Grant)
	after := plan.Entries[0].After.(accesstypes.Grant)
	if before.Role != accesstypes.RoleReadWrite || after.Role != accesstypes.RoleReadWriteOrder {
		t.Fatalf("role change %q -> %q", before.Role, after.Role)
	}

	recs := h.ledger.All()
	if len(recs) != 1 {
		t.Fatalf("want 1 audit record, got %d", len(recs))
	}
	if recs[0].Action != audittypes.ActionUpdate || len(recs[0].OldValue) == 0 {
		t.Fatalf("audit record: %+v", recs[0])
	}
}

func TestRosterRowErrors(t *testing.T) {
	h := newHarness(t)

	rows := []services.RosterRow{
		{Program: "P4M", AccessLevel: "Read Only", Email: "not-an-email"},
		{Program: "P4M", AccessLevel: "Superuser", Email: "c@x.com"},
		{Program: "Nonexistent", AccessLevel: "Read Only", Email: "d@x.com"},
		{Program: "P4M", Clinic: "NOPE", AccessLevel: "Read Only", Email: "e@x.com"},
		{Program: "P4M", AccessLevel: "Read Only", Email: "f@x.com"},
	}
	plan, err := h.engine.ReconcileRoster(context.Background(), rows, "admin@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("ReconcileRoster: %v", err)
	}

	wantKinds := map[int]services.ErrorKind{
		0: services.KindInvalidEmail,
		1: services.KindUnknownRole,
		2: services.KindProgramNotFound,
		3: services.KindClinicNotFound,
	}
	if len(plan.Errors) != len(wantKinds) {
		t.Fatalf("errors: %+v", plan.Errors)
	}
	for _, e := range plan.Errors {
		if wantKinds[e.RowIndex] != e.Kind {
			t.Errorf("row %d: kind %q, want %q", e.RowIndex, e.Kind, wantKinds[e.RowIndex])
		}
	}
	// The good row still lands despite four bad siblings.
	if len(plan.Entries) != 1 || plan.Entries[0].RowIndex != 4 {
		t.Fatalf("entries: %+v", plan.Entries)
	}
}

func TestRosterPreviewIsIdempotentAndPersistsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rows := []services.RosterRow{
		{FirstName: "Ana", LastName: "Silva", Program: "P4M", Clinic: "FRANZ", AccessLevel: "Read Only", Email: "a@x.com"},
		{Program: "P4M", AccessLevel: "Read + Write + Order", Email: "bob@clinic.example"},
	}

	first, err := h.engine.ReconcileRoster(ctx, rows, "admin@propel.example", ports.ModePreview)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	second, err := h.engine.ReconcileRoster(ctx, rows, "admin@propel.example", ports.ModePreview)
	if err != nil {
		t.Fatalf("second preview: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("preview runs differ:\n%+v\n%+v", first, second)
	}

	if _, found, err := h.store.GetUserDetail(ctx, "a@x.com"); err != nil || found {
		t.Fatalf("preview persisted a user (found=%v err=%v)", found, err)
	}
	if got := len(h.ledger.All()); got != 0 {
		t.Fatalf("preview persisted %d audit records", got)
	}
}

func TestRosterCommitTwiceSecondRunIsAllNoOp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rows := []services.RosterRow{
		{FirstName: "Ana", LastName: "Silva", Program: "P4M", Clinic: "FRANZ", AccessLevel: "Read Only", Email: "a@x.com"},
		{Program: "P4M", AccessLevel: "Read + Write + Order", Email: "bob@clinic.example"},
	}

	if _, err := h.engine.ReconcileRoster(ctx, rows, "admin@propel.example", ports.ModeCommit); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	audited := len(h.ledger.All())

	second, err := h.engine.ReconcileRoster(ctx, rows, "admin@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	for _, e := range second.Entries {
		if e.Classification != services.ClassifyNoOp {
			t.Fatalf("second run produced %q for row %d", e.Classification, e.RowIndex)
		}
	}
	if got := len(h.ledger.All()); got != audited {
		t.Fatalf("second commit wrote %d extra audit records", got-audited)
	}
}

func TestRosterPreviewMatchesCommit(t *testing.T) {
	previewed := newHarness(t)
	committed := newHarness(t)
	ctx := context.Background()
	rows := []services.RosterRow{
		{FirstName: "Ana", LastName: "Silva", Program: "P4M", Clinic: "FRANZ", AccessLevel: "Read Only", Email: "a@x.com"},
		{Program: "P4M", AccessLevel: "Read + Write + Order", Email: "bob@clinic.example"},
		{Program: "Nonexistent", AccessLevel: "Read Only", Email: "d@x.com"},
	}

	preview, err := previewed.engine.ReconcileRoster(ctx, rows, "admin@propel.example", ports.ModePreview)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	commit, err := committed.engine.ReconcileRoster(ctx, rows, "admin@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	preview.Mode, commit.Mode = "", ""
	if !reflect.DeepEqual(preview, commit) {
		t.Fatalf("preview and commit plans differ:\n%+v\n%+v", preview, commit)
	}
}

func TestRosterTerminatedUserIsRejected(t *testing.T) {
	state := seedState()
	state.Users[goneID] = accesstypes.User{
		ID:     goneID,
		Name:   "Gone Person",
		Email:  "gone@clinic.example",
		Status: accesstypes.UserTerminated,
	}
	h := harnessWithState(t, state)

	plan, err := h.engine.ReconcileRoster(context.Background(), []services.RosterRow{
		{Program: "P4M", AccessLevel: "Read Only", Email: "gone@clinic.example"},
	}, "admin@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("ReconcileRoster: %v", err)
	}
	if len(plan.Errors) != 1 || plan.Errors[0].Kind != services.KindUserTerminated {
		t.Fatalf("errors: %+v", plan.Errors)
	}
	if plan.Errors[0].Class != services.ClassConflict {
		t.Fatalf("class %q", plan.Errors[0].Class)
	}
}
