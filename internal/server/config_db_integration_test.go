package server

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	configtypes "github.com/glewis05/propel-mcp/modules/config/domain/types"
	configpersistence "github.com/glewis05/propel-mcp/modules/config/infrastructure/persistence"
	configservices "github.com/glewis05/propel-mcp/modules/config/services"
)

func connectTestPool(ctx context.Context, t *testing.T) (*pgxpool.Pool, bool) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Logf("skip postgres: %v", err)
		return nil, false
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Logf("skip postgres: %v", err)
		return nil, false
	}
	return pool, true
}

// Exercises the definition registry and scoped resolution against a
// migrated database. Rows are keyed uniquely per run so reruns do not
// collide.
func TestConfigStorePG_ResolveRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, ok := connectTestPool(ctx, t)
	if !ok {
		t.Skip("postgres unreachable")
	}
	defer pool.Close()

	key := "itest_key_" + time.Now().UTC().Format("20060102150405")
	store := configpersistence.NewPGStore(pool)
	if err := store.AddDefinition(ctx, configtypes.Definition{
		Key:          key,
		DisplayName:  "Integration Key",
		DefaultValue: "fallback",
	}); err != nil {
		t.Fatal(err)
	}

	resolver := configservices.NewResolver(store)

	var programID string
	if err := pool.QueryRow(ctx, `SELECT program_id::text FROM programs ORDER BY name LIMIT 1`).Scan(&programID); err != nil {
		t.Skipf("no seeded programs: %v", err)
	}

	res, err := resolver.Resolve(ctx, key, programID, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Value != "fallback" || res.Source != configtypes.SourceDefault {
		t.Fatalf("resolution=%+v", res)
	}

	if _, err := store.UpsertValue(ctx, key, configtypes.Scope{
		Level:     configtypes.SourceProgram,
		ProgramID: programID,
	}, "override", "itest@propel.example", "integration check"); err != nil {
		t.Fatal(err)
	}

	res, err = resolver.Resolve(ctx, key, programID, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Value != "override" || res.Source != configtypes.SourceProgram {
		t.Fatalf("resolution=%+v", res)
	}
}
