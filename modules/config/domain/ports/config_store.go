package ports

import (
	"context"

	audittypes "github.com/glewis05/propel-mcp/modules/audit/domain/types"
	"github.com/glewis05/propel-mcp/modules/config/domain/types"
)

// Store persists config definitions and per-scope value rows.
//
// GetValue returns (value, found): found=false means no row for that
// exact scope instance, which is different from a row holding an
// empty value. UpsertValue must, in one transaction: verify the
// scope's ancestry (clinic under the stated program, location under
// the stated clinic), write the row, and append the audit record it
// returns.
type Store interface {
	GetDefinition(ctx context.Context, key string) (types.Definition, bool, error)
	ListDefinitions(ctx context.Context) ([]types.Definition, error)
	// AddDefinition registers a key if absent, or refreshes display
	// metadata and default for an existing key. Keys are never removed.
	AddDefinition(ctx context.Context, def types.Definition) error

	GetValue(ctx context.Context, key string, scope types.Scope) (types.Value, bool, error)
	UpsertValue(ctx context.Context, key string, scope types.Scope, value string, actor string, reason string) (audittypes.Record, error)
}
