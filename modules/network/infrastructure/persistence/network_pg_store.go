package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/glewis05/propel-mcp/modules/network/domain/ports"
	"github.com/glewis05/propel-mcp/modules/network/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type DirectoryPGStore struct {
	pool pgBeginner
}

func NewDirectoryPGStore(pool pgBeginner) ports.DirectoryStore {
	return &DirectoryPGStore{pool: pool}
}

func (s *DirectoryPGStore) ListPrograms(ctx context.Context) ([]types.Program, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	out, err := ListProgramsTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func ListProgramsTx(ctx context.Context, tx pgx.Tx) ([]types.Program, error) {
	rows, err := tx.Query(ctx, `
SELECT
  program_id::text,
  name,
  prefix,
  COALESCE(program_type, ''),
  status
FROM programs
ORDER BY name ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Program
	for rows.Next() {
		var p types.Program
		if err := rows.Scan(&p.ID, &p.Name, &p.Prefix, &p.ProgramType, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *DirectoryPGStore) ListClinics(ctx context.Context, programID string) ([]types.Clinic, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	out, err := ListClinicsTx(ctx, tx, programID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func ListClinicsTx(ctx context.Context, tx pgx.Tx, programID string) ([]types.Clinic, error) {
	rows, err := tx.Query(ctx, `
SELECT
  clinic_id::text,
  program_id::text,
  name,
  COALESCE(code, ''),
  status
FROM clinics
WHERE program_id = $1::uuid
ORDER BY name ASC
`, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Clinic
	for rows.Next() {
		var c types.Clinic
		if err := rows.Scan(&c.ID, &c.ProgramID, &c.Name, &c.Code, &c.Status); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *DirectoryPGStore) ListLocations(ctx context.Context, clinicID string) ([]types.Location, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	out, err := ListLocationsTx(ctx, tx, clinicID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func ListLocationsTx(ctx context.Context, tx pgx.Tx, clinicID string) ([]types.Location, error) {
	rows, err := tx.Query(ctx, `
SELECT
  location_id::text,
  clinic_id::text,
  name,
  COALESCE(code, '')
FROM locations
WHERE clinic_id = $1::uuid
ORDER BY name ASC
`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Location
	for rows.Next() {
		var l types.Location
		if err := rows.Scan(&l.ID, &l.ClinicID, &l.Name, &l.Code); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ProgramTree assembles the full hierarchy in one transaction so the
// tree is a consistent snapshot.
func (s *DirectoryPGStore) ProgramTree(ctx context.Context) ([]types.ProgramTree, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	programs, err := ListProgramsTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	var out []types.ProgramTree
	for _, p := range programs {
		node := types.ProgramTree{Program: p}
		clinics, err := ListClinicsTx(ctx, tx, p.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range clinics {
			cnode := types.ClinicTree{Clinic: c}
			locations, err := ListLocationsTx(ctx, tx, c.ID)
			if err != nil {
				return nil, err
			}
			cnode.Locations = locations
			node.Clinics = append(node.Clinics, cnode)
		}
		out = append(out, node)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
