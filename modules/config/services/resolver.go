// Package services implements the configuration hierarchy: value
// resolution through location -> clinic -> program -> default, and the
// audited write path for overrides.
package services

import (
	"context"
	"fmt"
	"strings"

	audittypes "github.com/glewis05/propel-mcp/modules/audit/domain/types"
	"github.com/glewis05/propel-mcp/modules/config/domain/ports"
	"github.com/glewis05/propel-mcp/modules/config/domain/types"
	"github.com/glewis05/propel-mcp/pkg/httperr"
)

type Resolver struct {
	store ports.Store
}

func NewResolver(store ports.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the effective value of key at the given scope and
// the level that supplied it. Levels are consulted strictly from the
// most specific ID supplied: a stored empty value falls through to the
// next level, exactly as if the row were absent.
func (r *Resolver) Resolve(ctx context.Context, key string, programID string, clinicID string, locationID string) (types.Resolution, error) {
	return r.resolve(ctx, key, programID, clinicID, locationID, false)
}

// ResolveWithChain is Resolve plus the full inheritance chain for
// display. It adds no resolution logic of its own.
func (r *Resolver) ResolveWithChain(ctx context.Context, key string, programID string, clinicID string, locationID string) (types.Resolution, error) {
	return r.resolve(ctx, key, programID, clinicID, locationID, true)
}

func (r *Resolver) resolve(ctx context.Context, key string, programID string, clinicID string, locationID string, withChain bool) (types.Resolution, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return types.Resolution{}, httperr.NewBadRequest("config key is required")
	}
	if strings.TrimSpace(programID) == "" {
		return types.Resolution{}, httperr.NewBadRequest("program is required")
	}
	if locationID != "" && clinicID == "" {
		return types.Resolution{}, httperr.NewBadRequest("location scope requires a clinic")
	}

	def, found, err := r.store.GetDefinition(ctx, key)
	if err != nil {
		return types.Resolution{}, err
	}
	if !found {
		return types.Resolution{}, httperr.NewNotFound(fmt.Sprintf("unknown config key %q", key))
	}

	type level struct {
		source types.SourceLevel
		scope  types.Scope
		active bool
	}
	levels := []level{
		{source: types.SourceLocation, scope: types.Scope{Level: types.SourceLocation, ProgramID: programID, ClinicID: clinicID, LocationID: locationID}, active: locationID != ""},
		{source: types.SourceClinic, scope: types.Scope{Level: types.SourceClinic, ProgramID: programID, ClinicID: clinicID}, active: clinicID != ""},
		{source: types.SourceProgram, scope: types.Scope{Level: types.SourceProgram, ProgramID: programID}, active: true},
	}

	res := types.Resolution{Key: key}
	for _, lv := range levels {
		if !lv.active {
			continue
		}
		row, ok, err := r.store.GetValue(ctx, key, lv.scope)
		if err != nil {
			return types.Resolution{}, err
		}
		set := ok && (&row).IsSet()
		if withChain {
			var cell *string
			if ok {
				cell = row.Value
			}
			res.Chain = append(res.Chain, types.ChainLevel{Level: lv.source, Value: cell, IsOverride: set})
		}
		if set && res.Source == "" {
			res.Value = *row.Value
			res.Source = lv.source
		}
	}

	if res.Source == "" {
		res.Value = def.DefaultValue
		res.Source = types.SourceDefault
	}
	if withChain {
		defVal := def.DefaultValue
		res.Chain = append(res.Chain, types.ChainLevel{Level: types.SourceDefault, Value: &defVal})
		for i := range res.Chain {
			res.Chain[i].IsEffective = res.Chain[i].Level == res.Source
		}
	}
	return res, nil
}

// SetValue writes an override after validating the key exists and the
// proposed value passes the definition's validation rule. Ancestry
// verification, the row write, and the audit record share one store
// transaction.
func (r *Resolver) SetValue(ctx context.Context, key string, scope types.Scope, value string, actor string, reason string) (audittypes.Record, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return audittypes.Record{}, httperr.NewBadRequest("config key is required")
	}
	if strings.TrimSpace(actor) == "" {
		return audittypes.Record{}, httperr.NewBadRequest("actor is required")
	}
	if err := validateScope(scope); err != nil {
		return audittypes.Record{}, err
	}

	def, found, err := r.store.GetDefinition(ctx, key)
	if err != nil {
		return audittypes.Record{}, err
	}
	if !found {
		return audittypes.Record{}, httperr.NewNotFound(fmt.Sprintf("unknown config key %q", key))
	}

	if def.ValidationExpr != "" && value != "" {
		ok, err := EvaluateValidationRule(def.ValidationExpr, value)
		if err != nil {
			return audittypes.Record{}, fmt.Errorf("validation rule for %q: %w", key, err)
		}
		if !ok {
			return audittypes.Record{}, httperr.NewBadRequest(fmt.Sprintf("value %q rejected by validation rule for %q", value, key))
		}
	}

	return r.store.UpsertValue(ctx, key, scope, value, actor, reason)
}

func validateScope(scope types.Scope) error {
	if scope.ProgramID == "" {
		return httperr.NewBadRequest("scope program is required")
	}
	switch scope.Level {
	case types.SourceProgram:
		if scope.ClinicID != "" || scope.LocationID != "" {
			return httperr.NewBadRequest("program scope must not carry clinic or location")
		}
	case types.SourceClinic:
		if scope.ClinicID == "" {
			return httperr.NewBadRequest("clinic scope requires a clinic")
		}
		if scope.LocationID != "" {
			return httperr.NewBadRequest("clinic scope must not carry a location")
		}
	case types.SourceLocation:
		if scope.ClinicID == "" || scope.LocationID == "" {
			return httperr.NewBadRequest("location scope requires clinic and location")
		}
	default:
		return httperr.NewBadRequest("invalid scope level")
	}
	return nil
}
