package memory

import (
	"context"
	"sync"

	"github.com/glewis05/propel-mcp/modules/audit/domain/types"
	"github.com/glewis05/propel-mcp/pkg/uuidv7"
)

// Ledger is the in-memory audit sink used by tests and by handler
// wiring when no database is configured.
type Ledger struct {
	mu      sync.Mutex
	records []types.Record
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Append(_ context.Context, rec types.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuidv7.MustNewString()
	}
	l.records = append(l.records, rec)
	return nil
}

func (l *Ledger) ListByRecord(_ context.Context, recordType string, recordID string, limit int) ([]types.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var out []types.Record
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := l.records[i]
		if rec.RecordType == recordType && rec.RecordID == recordID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// All returns every record in append order. Test helper.
func (l *Ledger) All() []types.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.Record, len(l.records))
	copy(out, l.records)
	return out
}
