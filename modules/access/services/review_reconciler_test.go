package services_test

import (
	"context"
	"testing"

	"github.com/glewis05/propel-mcp/modules/access/domain/ports"
	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	"github.com/glewis05/propel-mcp/modules/access/services"
	audittypes "github.com/glewis05/propel-mcp/modules/audit/domain/types"
)

// Blank action means recertify. This asymmetry with the other
// required-field rules is deliberate and pinned here.
func TestReviewBlankActionRecertifies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	plan, err := h.engine.ReconcileReview(ctx, []services.ReviewRow{
		{Email: "bob@clinic.example", Program: "P4M", Action: ""},
	}, "reviewer@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("ReconcileReview: %v", err)
	}
	if len(plan.Errors) != 0 {
		t.Fatalf("errors: %+v", plan.Errors)
	}
	if len(plan.Entries) != 1 || plan.Entries[0].Classification != services.ClassifyRecertify {
		t.Fatalf("entries: %+v", plan.Entries)
	}
	after := plan.Entries[0].After.(accesstypes.Grant)
	if !after.NextReviewDue.Equal(testNow.AddDate(0, 12, 0)) {
		t.Fatalf("next review %v", after.NextReviewDue)
	}

	recs := h.ledger.All()
	if len(recs) != 1 || recs[0].Action != audittypes.ActionRecertify {
		t.Fatalf("audit: %+v", recs)
	}
}

func TestReviewUpdateChangesRole(t *testing.T) {
	h := newHarness(t)

	plan, err := h.engine.ReconcileReview(context.Background(), []services.ReviewRow{
		{Email: "bob@clinic.example", Program: "P4M", Action: "Update", NewRole: "Read Only", Notes: "reduced duties"},
	}, "reviewer@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("ReconcileReview: %v", err)
	}
	if len(plan.Entries) != 1 || plan.Entries[0].Classification != services.ClassifyChangeRole {
		t.Fatalf("entries: %+v", plan.Entries)
	}
	after := plan.Entries[0].After.(accesstypes.Grant)
	if after.Role != accesstypes.RoleReadOnly {
		t.Fatalf("role %q", after.Role)
	}
}

func TestReviewTerminateRevokes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	plan, err := h.engine.ReconcileReview(ctx, []services.ReviewRow{
		{Email: "bob@clinic.example", Program: "P4M", Action: "Terminate", Notes: "left the organization"},
	}, "reviewer@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("ReconcileReview: %v", err)
	}
	if len(plan.Entries) != 1 || plan.Entries[0].Classification != services.ClassifyRevoke {
		t.Fatalf("entries: %+v", plan.Entries)
	}

	grants, err := h.store.ListGrants(ctx, ports.GrantFilter{Email: "bob@clinic.example"})
	if err != nil {
		t.Fatalf("ListGrants: %v", err)
	}
	if len(grants) != 1 || grants[0].IsActive {
		t.Fatalf("grant still active: %+v", grants)
	}
	if grants[0].RevokedBy != "reviewer@propel.example" || grants[0].RevokeReason == "" {
		t.Fatalf("revocation fields: %+v", grants[0].Grant)
	}
}

func TestReviewMissingRequiredFields(t *testing.T) {
	h := newHarness(t)

	plan, err := h.engine.ReconcileReview(context.Background(), []services.ReviewRow{
		{Email: "bob@clinic.example", Program: "P4M", Action: "Terminate"},
		{Email: "bob@clinic.example", Program: "P4M", Action: "Update", Notes: "note but no role"},
		{Email: "bob@clinic.example", Program: "P4M", Action: "Archive", Notes: "x"},
	}, "reviewer@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("ReconcileReview: %v", err)
	}
	if len(plan.Entries) != 0 {
		t.Fatalf("no mutation may apply, got %+v", plan.Entries)
	}
	wantKinds := map[int]services.ErrorKind{
		0: services.KindMissingRequiredField,
		1: services.KindMissingRequiredField,
		2: services.KindInvalidAction,
	}
	if len(plan.Errors) != len(wantKinds) {
		t.Fatalf("errors: %+v", plan.Errors)
	}
	for _, e := range plan.Errors {
		if e.Kind != wantKinds[e.RowIndex] {
			t.Errorf("row %d: %q, want %q", e.RowIndex, e.Kind, wantKinds[e.RowIndex])
		}
	}

	// Terminate with empty notes applied nothing.
	grants, err := h.store.ListGrants(context.Background(), ports.GrantFilter{Email: "bob@clinic.example", ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListGrants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("grant should remain active, got %+v", grants)
	}
	if got := len(h.ledger.All()); got != 0 {
		t.Fatalf("audit records written: %d", got)
	}
}

func TestReviewUnknownGrant(t *testing.T) {
	h := newHarness(t)

	plan, err := h.engine.ReconcileReview(context.Background(), []services.ReviewRow{
		{Email: "nobody@clinic.example", Program: "P4M", Action: ""},
		{Email: "bob@clinic.example", Program: "P4M", Clinic: "FRANZ", Action: ""},
	}, "reviewer@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("ReconcileReview: %v", err)
	}
	if len(plan.Errors) != 2 {
		t.Fatalf("errors: %+v", plan.Errors)
	}
	for _, e := range plan.Errors {
		if e.Kind != services.KindGrantNotFound {
			t.Errorf("row %d: %q, want GRANT_NOT_FOUND", e.RowIndex, e.Kind)
		}
	}
}

// A revoked grant is terminal: every later action on the same scope is
// a conflict, never a silent miss.
func TestReviewRevokedGrantIsTerminal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.engine.ReconcileReview(ctx, []services.ReviewRow{
		{Email: "bob@clinic.example", Program: "P4M", Action: "Terminate", Notes: "left"},
	}, "reviewer@propel.example", ports.ModeCommit); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	for _, row := range []services.ReviewRow{
		{Email: "bob@clinic.example", Program: "P4M", Action: ""},
		{Email: "bob@clinic.example", Program: "P4M", Action: "Update", NewRole: "Read Only", Notes: "retry"},
		{Email: "bob@clinic.example", Program: "P4M", Action: "Terminate", Notes: "again"},
	} {
		plan, err := h.engine.ReconcileReview(ctx, []services.ReviewRow{row}, "reviewer@propel.example", ports.ModeCommit)
		if err != nil {
			t.Fatalf("action %q after revoke: %v", row.Action, err)
		}
		if len(plan.Errors) != 1 || plan.Errors[0].Kind != services.KindGrantAlreadyRevoked {
			t.Fatalf("action %q: errors %+v, want GRANT_ALREADY_REVOKED", row.Action, plan.Errors)
		}
		if plan.Errors[0].Class != services.ClassConflict {
			t.Fatalf("action %q: class %q, want conflict", row.Action, plan.Errors[0].Class)
		}
		if len(plan.Entries) != 0 {
			t.Fatalf("action %q: entries %+v", row.Action, plan.Entries)
		}
	}
}

func TestReviewNotDueIsWarningNotExclusion(t *testing.T) {
	state := seedState()
	g := state.Grants[bobGrant]
	g.NextReviewDue = testNow.AddDate(0, 6, 0)
	state.Grants[bobGrant] = g
	h := harnessWithState(t, state)

	plan, err := h.engine.ReconcileReview(context.Background(), []services.ReviewRow{
		{Email: "bob@clinic.example", Program: "P4M", Action: ""},
	}, "reviewer@propel.example", ports.ModeCommit)
	if err != nil {
		t.Fatalf("ReconcileReview: %v", err)
	}
	if len(plan.Entries) != 1 || plan.Entries[0].Classification != services.ClassifyRecertify {
		t.Fatalf("not-due row must still process, entries: %+v", plan.Entries)
	}
	if len(plan.Errors) != 1 || plan.Errors[0].Kind != services.KindNotDue || !plan.Errors[0].Warning {
		t.Fatalf("want NOT_DUE warning, got %+v", plan.Errors)
	}
}
