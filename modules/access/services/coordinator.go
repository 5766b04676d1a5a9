package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/glewis05/propel-mcp/modules/access/domain/ports"
	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	audittypes "github.com/glewis05/propel-mcp/modules/audit/domain/types"
	networktypes "github.com/glewis05/propel-mcp/modules/network/domain/types"
	networkservices "github.com/glewis05/propel-mcp/modules/network/services"
	"github.com/glewis05/propel-mcp/pkg/httperr"
)

// Engine runs roster and review reconciliations. Both go through the
// same harness: one store transaction, one planning pass per row, and
// apply calls that fail per entry without touching sibling entries.
type Engine struct {
	store ports.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewEngine(store ports.Store, log zerolog.Logger) *Engine {
	return &Engine{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the engine clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) run(ctx context.Context, mode ports.RunMode, name string, fn func(tx ports.Tx, plan *Plan) error) (Plan, error) {
	if !mode.Valid() {
		return Plan{}, httperr.NewBadRequest("mode must be preview or commit")
	}
	plan := Plan{Mode: string(mode)}
	err := e.store.Run(ctx, mode, func(tx ports.Tx) error {
		return fn(tx, &plan)
	})
	if err != nil {
		return Plan{}, err
	}
	e.log.Info().
		Str("reconciler", name).
		Str("mode", string(mode)).
		Int("entries", len(plan.Entries)).
		Int("errors", len(plan.Errors)).
		Msg("reconciliation run complete")
	return plan, nil
}

// planContext caches directory reads taken inside the run's
// transaction so every row plans against the same snapshot.
type planContext struct {
	tx        ports.Tx
	programs  []networktypes.Program
	clinics   map[string][]networktypes.Clinic
	locations map[string][]networktypes.Location
}

func newPlanContext(ctx context.Context, tx ports.Tx) (*planContext, error) {
	programs, err := tx.ListPrograms(ctx)
	if err != nil {
		return nil, err
	}
	return &planContext{
		tx:        tx,
		programs:  programs,
		clinics:   map[string][]networktypes.Clinic{},
		locations: map[string][]networktypes.Location{},
	}, nil
}

func (pc *planContext) clinicsFor(ctx context.Context, programID string) ([]networktypes.Clinic, error) {
	if cached, ok := pc.clinics[programID]; ok {
		return cached, nil
	}
	clinics, err := pc.tx.ListClinics(ctx, programID)
	if err != nil {
		return nil, err
	}
	pc.clinics[programID] = clinics
	return clinics, nil
}

func (pc *planContext) locationsFor(ctx context.Context, clinicID string) ([]networktypes.Location, error) {
	if cached, ok := pc.locations[clinicID]; ok {
		return cached, nil
	}
	locations, err := pc.tx.ListLocations(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	pc.locations[clinicID] = locations
	return locations, nil
}

// resolveScope turns caller references into a concrete scope tuple.
// A failed match reports the kind of the level that failed; an error
// return means infrastructure, not a row problem.
func (pc *planContext) resolveScope(ctx context.Context, programRef, clinicRef, locationRef string) (accesstypes.Scope, ErrorKind, string, error) {
	program, err := networkservices.MatchProgram(pc.programs, programRef)
	if err != nil {
		return accesstypes.Scope{}, KindProgramNotFound, err.Error(), nil
	}
	scope := accesstypes.Scope{ProgramID: program.ID}
	if clinicRef == "" {
		if locationRef != "" {
			return accesstypes.Scope{}, KindLocationNotFound, "location reference requires a clinic", nil
		}
		return scope, "", "", nil
	}

	clinics, err := pc.clinicsFor(ctx, program.ID)
	if err != nil {
		return accesstypes.Scope{}, "", "", err
	}
	clinic, err := networkservices.MatchClinic(clinics, clinicRef)
	if err != nil {
		return accesstypes.Scope{}, KindClinicNotFound, err.Error(), nil
	}
	scope.ClinicID = clinic.ID
	if locationRef == "" {
		return scope, "", "", nil
	}

	locations, err := pc.locationsFor(ctx, clinic.ID)
	if err != nil {
		return accesstypes.Scope{}, "", "", err
	}
	location, err := networkservices.MatchLocation(locations, locationRef)
	if err != nil {
		return accesstypes.Scope{}, KindLocationNotFound, err.Error(), nil
	}
	scope.LocationID = location.ID
	return scope, "", "", nil
}

// applyErrorKind maps a state-machine violation hit at apply time to
// its row-error kind. Unknown errors are infrastructure failures.
func applyErrorKind(err error) (ErrorKind, bool) {
	switch {
	case errors.Is(err, accesstypes.ErrGrantAlreadyRevoked):
		return KindGrantAlreadyRevoked, true
	case errors.Is(err, accesstypes.ErrUserTerminated):
		return KindUserTerminated, true
	case errors.Is(err, accesstypes.ErrReasonRequired):
		return KindMissingRequiredField, true
	case errors.Is(err, accesstypes.ErrInvalidRole):
		return KindUnknownRole, true
	}
	return "", false
}

func auditUser(ctx context.Context, tx ports.Tx, u accesstypes.User, actor string) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return tx.Ledger().Append(ctx, audittypes.Record{
		RecordType: audittypes.RecordTypeUser,
		RecordID:   u.ID,
		Action:     audittypes.ActionCreate,
		NewValue:   payload,
		Actor:      actor,
	})
}

func auditGrant(ctx context.Context, tx ports.Tx, action string, before *accesstypes.Grant, after accesstypes.Grant, actor string, reason string) error {
	newPayload, err := json.Marshal(after)
	if err != nil {
		return err
	}
	rec := audittypes.Record{
		RecordType: audittypes.RecordTypeAccessGrant,
		RecordID:   after.ID,
		Action:     action,
		NewValue:   newPayload,
		Actor:      actor,
		Reason:     reason,
	}
	if before != nil {
		oldPayload, err := json.Marshal(*before)
		if err != nil {
			return err
		}
		rec.OldValue = oldPayload
	}
	return tx.Ledger().Append(ctx, rec)
}
