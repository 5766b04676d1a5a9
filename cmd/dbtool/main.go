package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"gopkg.in/yaml.v3"

	configtypes "github.com/glewis05/propel-mcp/modules/config/domain/types"
	configpersistence "github.com/glewis05/propel-mcp/modules/config/infrastructure/persistence"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: dbtool <migrate|seed-defs|config-smoke> [args]")
	}

	switch os.Args[1] {
	case "migrate":
		migrate(os.Args[2:])
	case "seed-defs":
		seedDefs(os.Args[2:])
	case "config-smoke":
		configSmoke(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

func migrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url, dir string
	fs.StringVar(&url, "url", "", "postgres connection string")
	fs.StringVar(&dir, "dir", "db/migrations", "migrations directory")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = db.Close() }()

	if err := goose.SetDialect("postgres"); err != nil {
		fatal(err)
	}
	if err := goose.Up(db, dir); err != nil {
		fatal(err)
	}
	fmt.Println("migrations applied")
}

// seedDefs loads the config-definition registry from a YAML file and
// upserts every entry. Existing keys keep their value rows; only the
// display metadata and default are refreshed.
func seedDefs(args []string) {
	fs := flag.NewFlagSet("seed-defs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url, file string
	fs.StringVar(&url, "url", "", "postgres connection string")
	fs.StringVar(&file, "file", "db/seed/config_definitions.yaml", "definition registry file")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		fatal(err)
	}
	var registry struct {
		Definitions []configtypes.Definition `yaml:"definitions"`
	}
	if err := yaml.Unmarshal(raw, &registry); err != nil {
		fatal(err)
	}
	if len(registry.Definitions) == 0 {
		fatalf("no definitions in %s", file)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer pool.Close()

	store := configpersistence.NewPGStore(pool)
	for _, def := range registry.Definitions {
		if def.Key == "" {
			fatalf("definition with empty key in %s", file)
		}
		if err := store.AddDefinition(ctx, def); err != nil {
			fatal(err)
		}
		fmt.Printf("seeded %s\n", def.Key)
	}
}

// configSmoke verifies the schema end to end without leaving data
// behind: everything happens inside one rolled-back transaction.
func configSmoke(args []string) {
	fs := flag.NewFlagSet("config-smoke", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO config_definitions (config_key, display_name, default_value)
VALUES ('smoke_key', 'Smoke Key', 'smoke-default')
ON CONFLICT (config_key) DO NOTHING;`); err != nil {
		fatal(err)
	}

	var got string
	if err := tx.QueryRow(ctx, `SELECT default_value FROM config_definitions WHERE config_key = 'smoke_key'`).Scan(&got); err != nil {
		fatal(err)
	}
	if got != "smoke-default" {
		fatalf("unexpected default_value %q", got)
	}
	fmt.Println("config smoke ok")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
