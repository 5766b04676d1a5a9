package ports

import (
	"context"

	"github.com/glewis05/propel-mcp/modules/audit/domain/types"
)

// Ledger appends audit records. Implementations are bound to the
// transaction of the mutation being described: the record and the
// mutation persist together or not at all. Append never updates or
// deletes existing records.
type Ledger interface {
	Append(ctx context.Context, rec types.Record) error
}

// Reader serves the audit read side.
type Reader interface {
	ListByRecord(ctx context.Context, recordType string, recordID string, limit int) ([]types.Record, error)
}
