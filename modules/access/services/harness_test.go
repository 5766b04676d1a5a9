package services_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	accessmemory "github.com/glewis05/propel-mcp/modules/access/infrastructure/memory"
	"github.com/glewis05/propel-mcp/modules/access/services"
	auditmemory "github.com/glewis05/propel-mcp/modules/audit/infrastructure/memory"
	networktypes "github.com/glewis05/propel-mcp/modules/network/domain/types"
)

const (
	p4mID    = "11111111-1111-7111-8111-111111111111"
	franzID  = "22222222-2222-7222-8222-222222222222"
	mainID   = "33333333-3333-7333-8333-333333333333"
	rxID     = "44444444-4444-7444-8444-444444444444"
	bobID    = "55555555-5555-7555-8555-555555555555"
	bobGrant = "66666666-6666-7666-8666-666666666666"
	goneID   = "77777777-7777-7777-8777-777777777777"
)

var testNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

// seedState builds the shared fixture: two programs, a clinic with one
// location, and bob holding a program-scoped Read-Write grant that is
// overdue for review.
func seedState() *accessmemory.State {
	state := accessmemory.NewState()
	state.Programs = []networktypes.Program{
		{ID: p4mID, Name: "Prevention4ME", Prefix: "P4M", Status: "active"},
		{ID: rxID, Name: "Prescription Services", Prefix: "RXS", Status: "active"},
	}
	state.Clinics = []networktypes.Clinic{
		{ID: franzID, ProgramID: p4mID, Name: "Franzen Clinic", Code: "FRANZ", Status: "active"},
	}
	state.Locations = []networktypes.Location{
		{ID: mainID, ClinicID: franzID, Name: "Franzen Main", Code: "FRANZ-01"},
	}
	state.Users[bobID] = accesstypes.User{
		ID:        bobID,
		Name:      "Bob Okafor",
		Email:     "bob@clinic.example",
		Status:    accesstypes.UserActive,
		CreatedAt: testNow.AddDate(-2, 0, 0),
	}
	state.Grants[bobGrant] = accesstypes.Grant{
		ID:                bobGrant,
		UserID:            bobID,
		Scope:             accesstypes.Scope{ProgramID: p4mID},
		Role:              accesstypes.RoleReadWrite,
		IsActive:          true,
		GrantedDate:       testNow.AddDate(-2, 0, 0),
		GrantedBy:         "admin@propel.example",
		ReviewCycleMonths: 12,
		NextReviewDue:     testNow.AddDate(0, -1, 0),
	}
	return state
}

type harness struct {
	store  *accessmemory.Store
	ledger *auditmemory.Ledger
	engine *services.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return harnessWithState(t, seedState())
}

func harnessWithState(t *testing.T, state *accessmemory.State) *harness {
	t.Helper()
	ledger := auditmemory.NewLedger()
	store := accessmemory.NewStore(state, ledger)
	engine := services.NewEngine(store, zerolog.Nop()).
		WithClock(func() time.Time { return testNow })
	return &harness{store: store, ledger: ledger, engine: engine}
}
