// Package memory is the in-memory config store used by tests and by
// handler wiring when no database is configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	auditports "github.com/glewis05/propel-mcp/modules/audit/domain/ports"
	audittypes "github.com/glewis05/propel-mcp/modules/audit/domain/types"
	"github.com/glewis05/propel-mcp/modules/config/domain/ports"
	"github.com/glewis05/propel-mcp/modules/config/domain/types"
	networktypes "github.com/glewis05/propel-mcp/modules/network/domain/types"
	"github.com/glewis05/propel-mcp/pkg/httperr"
	"github.com/glewis05/propel-mcp/pkg/uuidv7"
)

type Store struct {
	mu     sync.Mutex
	defs   map[string]types.Definition
	values map[string]types.Value

	programs  map[string]bool
	clinics   map[string]string // clinic id -> program id
	locations map[string]string // location id -> clinic id

	ledger auditports.Ledger
	now    func() time.Time
}

func NewStore(tree []networktypes.ProgramTree, ledger auditports.Ledger) *Store {
	s := &Store{
		defs:      map[string]types.Definition{},
		values:    map[string]types.Value{},
		programs:  map[string]bool{},
		clinics:   map[string]string{},
		locations: map[string]string{},
		ledger:    ledger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, p := range tree {
		s.programs[p.Program.ID] = true
		for _, c := range p.Clinics {
			s.clinics[c.Clinic.ID] = p.Program.ID
			for _, l := range c.Locations {
				s.locations[l.ID] = c.Clinic.ID
			}
		}
	}
	return s
}

var _ ports.Store = (*Store)(nil)

func (s *Store) GetDefinition(_ context.Context, key string) (types.Definition, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.defs[key]
	return def, ok, nil
}

func (s *Store) ListDefinitions(_ context.Context) ([]types.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Definition, 0, len(s.defs))
	for _, def := range s.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) AddDefinition(_ context.Context, def types.Definition) error {
	if def.Key == "" || def.DisplayName == "" {
		return httperr.NewBadRequest("config definition key and display_name are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.Key] = def
	return nil
}

func scopeKey(key string, scope types.Scope) string {
	return key + "|" + string(scope.Level) + "|" + scope.ProgramID + "|" + scope.ClinicID + "|" + scope.LocationID
}

func (s *Store) GetValue(_ context.Context, key string, scope types.Scope) (types.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[scopeKey(key, scope)]
	return v, ok, nil
}

func (s *Store) UpsertValue(ctx context.Context, key string, scope types.Scope, value string, actor string, reason string) (audittypes.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.defs[key]; !ok {
		return audittypes.Record{}, httperr.NewNotFound(fmt.Sprintf("unknown config key %q", key))
	}
	if err := s.verifyScope(scope); err != nil {
		return audittypes.Record{}, err
	}

	k := scopeKey(key, scope)
	prev, hadPrev := s.values[k]

	v := value
	next := types.Value{
		ID:        prev.ID,
		Key:       key,
		Scope:     scope,
		Value:     &v,
		UpdatedBy: actor,
		UpdatedAt: s.now(),
	}
	action := audittypes.ActionUpdate
	if !hadPrev {
		next.ID = uuidv7.MustNewString()
		action = audittypes.ActionCreate
	}

	newPayload, err := json.Marshal(map[string]any{"config_key": key, "scope": scope, "value": value})
	if err != nil {
		return audittypes.Record{}, err
	}
	rec := audittypes.Record{
		RecordType: audittypes.RecordTypeConfigValue,
		RecordID:   next.ID,
		Action:     action,
		NewValue:   newPayload,
		Actor:      actor,
		Reason:     reason,
		CreatedAt:  next.UpdatedAt,
	}
	if hadPrev {
		oldPayload, err := json.Marshal(map[string]any{"config_key": key, "scope": scope, "value": prev.Value})
		if err != nil {
			return audittypes.Record{}, err
		}
		rec.OldValue = oldPayload
	}
	if err := s.ledger.Append(ctx, rec); err != nil {
		return audittypes.Record{}, err
	}
	s.values[k] = next
	return rec, nil
}

func (s *Store) verifyScope(scope types.Scope) error {
	switch scope.Level {
	case types.SourceProgram:
		if !s.programs[scope.ProgramID] {
			return httperr.NewNotFound(fmt.Sprintf("program %s not found", scope.ProgramID))
		}
	case types.SourceClinic:
		if s.clinics[scope.ClinicID] != scope.ProgramID {
			return httperr.NewBadRequest(fmt.Sprintf("clinic %s is not part of program %s", scope.ClinicID, scope.ProgramID))
		}
	case types.SourceLocation:
		if s.locations[scope.LocationID] != scope.ClinicID || s.clinics[scope.ClinicID] != scope.ProgramID {
			return httperr.NewBadRequest(fmt.Sprintf("location %s is not part of clinic %s", scope.LocationID, scope.ClinicID))
		}
	default:
		return httperr.NewBadRequest("invalid scope level")
	}
	return nil
}
