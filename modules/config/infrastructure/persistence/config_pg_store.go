// Package persistence is the PostgreSQL store for config definitions
// and per-scope value rows.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	audittypes "github.com/glewis05/propel-mcp/modules/audit/domain/types"
	auditpersistence "github.com/glewis05/propel-mcp/modules/audit/infrastructure/persistence"
	"github.com/glewis05/propel-mcp/modules/config/domain/ports"
	"github.com/glewis05/propel-mcp/modules/config/domain/types"
	"github.com/glewis05/propel-mcp/pkg/httperr"
	"github.com/glewis05/propel-mcp/pkg/uuidv7"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PGStore struct {
	pool pgBeginner
}

func NewPGStore(pool pgBeginner) ports.Store {
	return &PGStore{pool: pool}
}

func (s *PGStore) GetDefinition(ctx context.Context, key string) (types.Definition, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Definition{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	def, found, err := getDefinitionTx(ctx, tx, key)
	if err != nil {
		return types.Definition{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.Definition{}, false, err
	}
	return def, found, nil
}

func getDefinitionTx(ctx context.Context, tx pgx.Tx, key string) (types.Definition, bool, error) {
	var def types.Definition
	err := tx.QueryRow(ctx, `
SELECT config_key, display_name, COALESCE(description, ''), default_value, COALESCE(validation_expr, '')
FROM config_definitions
WHERE config_key = $1
`, key).Scan(&def.Key, &def.DisplayName, &def.Description, &def.DefaultValue, &def.ValidationExpr)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Definition{}, false, nil
	}
	if err != nil {
		return types.Definition{}, false, err
	}
	return def, true, nil
}

func (s *PGStore) ListDefinitions(ctx context.Context) ([]types.Definition, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT config_key, display_name, COALESCE(description, ''), default_value, COALESCE(validation_expr, '')
FROM config_definitions
ORDER BY config_key ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Definition
	for rows.Next() {
		var def types.Definition
		if err := rows.Scan(&def.Key, &def.DisplayName, &def.Description, &def.DefaultValue, &def.ValidationExpr); err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) AddDefinition(ctx context.Context, def types.Definition) error {
	if def.Key == "" || def.DisplayName == "" {
		return httperr.NewBadRequest("config definition key and display_name are required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	_, err = tx.Exec(ctx, `
INSERT INTO config_definitions (config_key, display_name, description, default_value, validation_expr)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (config_key) DO UPDATE SET
  display_name = EXCLUDED.display_name,
  description = EXCLUDED.description,
  default_value = EXCLUDED.default_value,
  validation_expr = EXCLUDED.validation_expr
`, def.Key, def.DisplayName, def.Description, def.DefaultValue, def.ValidationExpr)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) GetValue(ctx context.Context, key string, scope types.Scope) (types.Value, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Value{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	val, found, err := getValueTx(ctx, tx, key, scope)
	if err != nil {
		return types.Value{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.Value{}, false, err
	}
	return val, found, nil
}

func getValueTx(ctx context.Context, tx pgx.Tx, key string, scope types.Scope) (types.Value, bool, error) {
	var v types.Value
	v.Key = key
	v.Scope = scope
	err := tx.QueryRow(ctx, `
SELECT value_id::text, value, updated_by, updated_at
FROM config_values
WHERE config_key = $1
  AND level = $2
  AND program_id = $3::uuid
  AND clinic_id IS NOT DISTINCT FROM NULLIF($4, '')::uuid
  AND location_id IS NOT DISTINCT FROM NULLIF($5, '')::uuid
`, key, string(scope.Level), scope.ProgramID, scope.ClinicID, scope.LocationID).
		Scan(&v.ID, &v.Value, &v.UpdatedBy, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Value{}, false, nil
	}
	if err != nil {
		return types.Value{}, false, err
	}
	return v, true, nil
}

// UpsertValue verifies the scope exists in the hierarchy, writes the
// row, and appends one audit record, all on the same transaction.
func (s *PGStore) UpsertValue(ctx context.Context, key string, scope types.Scope, value string, actor string, reason string) (audittypes.Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return audittypes.Record{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, found, err := getDefinitionTx(ctx, tx, key); err != nil {
		return audittypes.Record{}, err
	} else if !found {
		return audittypes.Record{}, httperr.NewNotFound(fmt.Sprintf("unknown config key %q", key))
	}
	if err := verifyScopeTx(ctx, tx, scope); err != nil {
		return audittypes.Record{}, err
	}

	prev, hadPrev, err := getValueTx(ctx, tx, key, scope)
	if err != nil {
		return audittypes.Record{}, err
	}

	valueID := prev.ID
	action := audittypes.ActionUpdate
	now := time.Now().UTC()
	if hadPrev {
		_, err = tx.Exec(ctx, `
UPDATE config_values
SET value = $1, updated_by = $2, updated_at = $3
WHERE value_id = $4::uuid
`, value, actor, now, valueID)
	} else {
		action = audittypes.ActionCreate
		valueID, err = uuidv7.NewString()
		if err != nil {
			return audittypes.Record{}, err
		}
		_, err = tx.Exec(ctx, `
INSERT INTO config_values (value_id, config_key, level, program_id, clinic_id, location_id, value, updated_by, updated_at)
VALUES ($1::uuid, $2, $3, $4::uuid, NULLIF($5, '')::uuid, NULLIF($6, '')::uuid, $7, $8, $9)
`, valueID, key, string(scope.Level), scope.ProgramID, scope.ClinicID, scope.LocationID, value, actor, now)
	}
	if err != nil {
		return audittypes.Record{}, err
	}

	rec, err := configAuditRecord(key, scope, prev, hadPrev, value, valueID, action, actor, reason)
	if err != nil {
		return audittypes.Record{}, err
	}
	if err := auditpersistence.NewTxLedger(tx).Append(ctx, rec); err != nil {
		return audittypes.Record{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return audittypes.Record{}, err
	}
	rec.CreatedAt = now
	return rec, nil
}

func verifyScopeTx(ctx context.Context, tx pgx.Tx, scope types.Scope) error {
	var ok bool
	switch scope.Level {
	case types.SourceProgram:
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM programs WHERE program_id = $1::uuid)`, scope.ProgramID).Scan(&ok)
		if err != nil {
			return err
		}
		if !ok {
			return httperr.NewNotFound(fmt.Sprintf("program %s not found", scope.ProgramID))
		}
	case types.SourceClinic:
		err := tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM clinics WHERE clinic_id = $1::uuid AND program_id = $2::uuid)
`, scope.ClinicID, scope.ProgramID).Scan(&ok)
		if err != nil {
			return err
		}
		if !ok {
			return httperr.NewBadRequest(fmt.Sprintf("clinic %s is not part of program %s", scope.ClinicID, scope.ProgramID))
		}
	case types.SourceLocation:
		err := tx.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1
  FROM locations l
  JOIN clinics c ON c.clinic_id = l.clinic_id
  WHERE l.location_id = $1::uuid AND l.clinic_id = $2::uuid AND c.program_id = $3::uuid
)
`, scope.LocationID, scope.ClinicID, scope.ProgramID).Scan(&ok)
		if err != nil {
			return err
		}
		if !ok {
			return httperr.NewBadRequest(fmt.Sprintf("location %s is not part of clinic %s", scope.LocationID, scope.ClinicID))
		}
	default:
		return httperr.NewBadRequest("invalid scope level")
	}
	return nil
}

func configAuditRecord(key string, scope types.Scope, prev types.Value, hadPrev bool, value string, valueID string, action string, actor string, reason string) (audittypes.Record, error) {
	newPayload, err := json.Marshal(map[string]any{"config_key": key, "scope": scope, "value": value})
	if err != nil {
		return audittypes.Record{}, err
	}
	rec := audittypes.Record{
		RecordType: audittypes.RecordTypeConfigValue,
		RecordID:   valueID,
		Action:     action,
		NewValue:   newPayload,
		Actor:      actor,
		Reason:     reason,
	}
	if hadPrev {
		oldPayload, err := json.Marshal(map[string]any{"config_key": key, "scope": scope, "value": prev.Value})
		if err != nil {
			return audittypes.Record{}, err
		}
		rec.OldValue = oldPayload
	}
	return rec, nil
}
