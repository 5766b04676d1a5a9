package persistence

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/glewis05/propel-mcp/modules/audit/domain/ports"
	"github.com/glewis05/propel-mcp/modules/audit/domain/types"
	"github.com/glewis05/propel-mcp/pkg/httperr"
	"github.com/glewis05/propel-mcp/pkg/uuidv7"
)

// TxLedger appends audit records on an already-open transaction owned
// by the caller. The caller commits or rolls back; the ledger never
// does either.
type TxLedger struct {
	tx pgx.Tx
}

func NewTxLedger(tx pgx.Tx) *TxLedger {
	return &TxLedger{tx: tx}
}

func (l *TxLedger) Append(ctx context.Context, rec types.Record) error {
	if strings.TrimSpace(rec.RecordType) == "" || strings.TrimSpace(rec.RecordID) == "" {
		return httperr.NewBadRequest("audit record_type and record_id are required")
	}
	if strings.TrimSpace(rec.Action) == "" {
		return httperr.NewBadRequest("audit action is required")
	}
	id := rec.ID
	if id == "" {
		v, err := uuidv7.NewString()
		if err != nil {
			return err
		}
		id = v
	}

	_, err := l.tx.Exec(ctx, `
INSERT INTO audit_records (audit_id, record_type, record_id, action, old_value, new_value, actor, reason, created_at)
VALUES ($1::uuid, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, now())
`, id, rec.RecordType, rec.RecordID, rec.Action, nullableJSON(rec.OldValue), []byte(rec.NewValue), rec.Actor, rec.Reason)
	return err
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGReader serves audit lookups with one read transaction per call.
type PGReader struct {
	pool pgBeginner
}

func NewPGReader(pool pgBeginner) ports.Reader {
	return &PGReader{pool: pool}
}

func (s *PGReader) ListByRecord(ctx context.Context, recordType string, recordID string, limit int) ([]types.Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := tx.Query(ctx, `
SELECT
  audit_id::text,
  record_type,
  record_id,
  action,
  COALESCE(old_value::text, ''),
  new_value::text,
  actor,
  COALESCE(reason, ''),
  created_at
FROM audit_records
WHERE record_type = $1 AND record_id = $2
ORDER BY created_at DESC, audit_id DESC
LIMIT $3
`, recordType, recordID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		var rec types.Record
		var oldVal, newVal string
		if err := rows.Scan(&rec.ID, &rec.RecordType, &rec.RecordID, &rec.Action, &oldVal, &newVal, &rec.Actor, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if oldVal != "" {
			rec.OldValue = []byte(oldVal)
		}
		rec.NewValue = []byte(newVal)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
