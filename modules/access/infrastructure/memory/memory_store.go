// Package memory is the in-memory access store. Run clones the world
// state, lets the transaction function mutate the clone, and swaps it
// in only on commit, so preview runs roll back for real.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/glewis05/propel-mcp/modules/access/domain/ports"
	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	auditports "github.com/glewis05/propel-mcp/modules/audit/domain/ports"
	audittypes "github.com/glewis05/propel-mcp/modules/audit/domain/types"
	networktypes "github.com/glewis05/propel-mcp/modules/network/domain/types"
)

// State is the whole in-memory world: directory, users, grants,
// reviews, training.
type State struct {
	Programs  []networktypes.Program
	Clinics   []networktypes.Clinic
	Locations []networktypes.Location
	Users     map[string]accesstypes.User
	Grants    map[string]accesstypes.Grant
	Reviews   []accesstypes.Review
	Training  []accesstypes.TrainingRecord
}

func NewState() *State {
	return &State{
		Users:  map[string]accesstypes.User{},
		Grants: map[string]accesstypes.Grant{},
	}
}

func (s *State) clone() *State {
	next := &State{
		Programs:  append([]networktypes.Program(nil), s.Programs...),
		Clinics:   append([]networktypes.Clinic(nil), s.Clinics...),
		Locations: append([]networktypes.Location(nil), s.Locations...),
		Users:     make(map[string]accesstypes.User, len(s.Users)),
		Grants:    make(map[string]accesstypes.Grant, len(s.Grants)),
		Reviews:   append([]accesstypes.Review(nil), s.Reviews...),
		Training:  append([]accesstypes.TrainingRecord(nil), s.Training...),
	}
	for id, u := range s.Users {
		next.Users[id] = u
	}
	for id, g := range s.Grants {
		next.Grants[id] = g
	}
	return next
}

type Store struct {
	mu     sync.Mutex
	state  *State
	ledger auditports.Ledger
}

func NewStore(seed *State, ledger auditports.Ledger) *Store {
	if seed == nil {
		seed = NewState()
	}
	return &Store{state: seed, ledger: ledger}
}

var _ ports.Store = (*Store)(nil)
var _ ports.ReadStore = (*Store)(nil)

// Run serializes all writers, matching the single-writer store model.
func (s *Store) Run(_ context.Context, mode ports.RunMode, fn func(tx ports.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if mode != ports.ModeCommit {
		return nil
	}
	s.state = tx.state
	for _, rec := range tx.pendingAudit {
		if err := s.ledger.Append(context.Background(), rec); err != nil {
			return err
		}
	}
	return nil
}

// memTx mutates a private clone; audit appends are buffered and only
// reach the shared ledger when the run commits.
type memTx struct {
	state        *State
	pendingAudit []audittypes.Record
}

var _ ports.Tx = (*memTx)(nil)

func (t *memTx) ListPrograms(_ context.Context) ([]networktypes.Program, error) {
	return append([]networktypes.Program(nil), t.state.Programs...), nil
}

func (t *memTx) ListClinics(_ context.Context, programID string) ([]networktypes.Clinic, error) {
	var out []networktypes.Clinic
	for _, c := range t.state.Clinics {
		if c.ProgramID == programID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *memTx) ListLocations(_ context.Context, clinicID string) ([]networktypes.Location, error) {
	var out []networktypes.Location
	for _, l := range t.state.Locations {
		if l.ClinicID == clinicID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (t *memTx) GetUserByEmail(_ context.Context, email string) (accesstypes.User, bool, error) {
	for _, u := range t.state.Users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return accesstypes.User{}, false, nil
}

func (t *memTx) CreateUser(_ context.Context, u accesstypes.User) error {
	t.state.Users[u.ID] = u
	return nil
}

func (t *memTx) GetActiveGrant(_ context.Context, userID string, scope accesstypes.Scope) (accesstypes.Grant, bool, error) {
	for _, g := range t.state.Grants {
		if g.UserID == userID && g.IsActive && g.Scope.Key() == scope.Key() {
			return g, true, nil
		}
	}
	return accesstypes.Grant{}, false, nil
}

func (t *memTx) CountGrants(_ context.Context, userID string, scope accesstypes.Scope) (int, error) {
	n := 0
	for _, g := range t.state.Grants {
		if g.UserID == userID && g.Scope.Key() == scope.Key() {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertGrant(_ context.Context, g accesstypes.Grant) error {
	t.state.Grants[g.ID] = g
	return nil
}

// UpdateGrant matches the database contract: only an active row may be
// rewritten, so a revoked grant can never be resurrected.
func (t *memTx) UpdateGrant(_ context.Context, g accesstypes.Grant) error {
	current, ok := t.state.Grants[g.ID]
	if !ok || !current.IsActive {
		return accesstypes.ErrGrantAlreadyRevoked
	}
	t.state.Grants[g.ID] = g
	return nil
}

func (t *memTx) InsertReview(_ context.Context, r accesstypes.Review) error {
	t.state.Reviews = append(t.state.Reviews, r)
	return nil
}

func (t *memTx) Ledger() auditports.Ledger { return &bufferedLedger{tx: t} }

type bufferedLedger struct {
	tx *memTx
}

func (l *bufferedLedger) Append(_ context.Context, rec audittypes.Record) error {
	l.tx.pendingAudit = append(l.tx.pendingAudit, rec)
	return nil
}

// Directory reads for the query layer.

func (s *Store) ListPrograms(ctx context.Context) ([]networktypes.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]networktypes.Program(nil), s.state.Programs...), nil
}

func (s *Store) ListClinics(_ context.Context, programID string) ([]networktypes.Clinic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []networktypes.Clinic
	for _, c := range s.state.Clinics {
		if c.ProgramID == programID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListLocations(_ context.Context, clinicID string) ([]networktypes.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []networktypes.Location
	for _, l := range s.state.Locations {
		if l.ClinicID == clinicID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) ProgramTree(_ context.Context) ([]networktypes.ProgramTree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []networktypes.ProgramTree
	for _, p := range s.state.Programs {
		node := networktypes.ProgramTree{Program: p}
		for _, c := range s.state.Clinics {
			if c.ProgramID != p.ID {
				continue
			}
			cnode := networktypes.ClinicTree{Clinic: c}
			for _, l := range s.state.Locations {
				if l.ClinicID == c.ID {
					cnode.Locations = append(cnode.Locations, l)
				}
			}
			node.Clinics = append(node.Clinics, cnode)
		}
		out = append(out, node)
	}
	return out, nil
}

// Read side.

func (s *Store) programName(id string) string {
	for _, p := range s.state.Programs {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

func (s *Store) clinicName(id string) string {
	for _, c := range s.state.Clinics {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

func (s *Store) locationName(id string) string {
	for _, l := range s.state.Locations {
		if l.ID == id {
			return l.Name
		}
	}
	return ""
}

func (s *Store) grantDetail(g accesstypes.Grant) accesstypes.GrantDetail {
	u := s.state.Users[g.UserID]
	return accesstypes.GrantDetail{
		Grant:        g,
		UserName:     u.Name,
		UserEmail:    u.Email,
		UserStatus:   u.Status,
		ProgramName:  s.programName(g.Scope.ProgramID),
		ClinicName:   s.clinicName(g.Scope.ClinicID),
		LocationName: s.locationName(g.Scope.LocationID),
		UnderReview:  g.UnderReview(time.Now().UTC()),
	}
}

func (s *Store) activeGrantCount(userID string) int {
	n := 0
	for _, g := range s.state.Grants {
		if g.UserID == userID && g.IsActive {
			n++
		}
	}
	return n
}

func (s *Store) userMatchesScope(userID, programID, clinicID string) bool {
	if programID == "" && clinicID == "" {
		return true
	}
	for _, g := range s.state.Grants {
		if g.UserID != userID || !g.IsActive {
			continue
		}
		if programID != "" && g.Scope.ProgramID != programID {
			continue
		}
		if clinicID != "" && g.Scope.ClinicID != clinicID {
			continue
		}
		return true
	}
	return false
}

func (s *Store) ListUsers(_ context.Context, filter ports.UserFilter) ([]accesstypes.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []accesstypes.UserSummary
	for _, u := range s.state.Users {
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if filter.Organization != "" && !strings.EqualFold(u.Organization, filter.Organization) {
			continue
		}
		if !s.userMatchesScope(u.ID, filter.ProgramID, filter.ClinicID) {
			continue
		}
		out = append(out, accesstypes.UserSummary{User: u, ActiveGrantCount: s.activeGrantCount(u.ID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) GetUserDetail(_ context.Context, email string) (accesstypes.UserDetail, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.state.Users {
		if u.Email != email {
			continue
		}
		detail := accesstypes.UserDetail{User: u, Grants: []accesstypes.GrantDetail{}, Training: []accesstypes.TrainingRecord{}}
		for _, g := range s.sortedGrants() {
			if g.UserID == u.ID {
				detail.Grants = append(detail.Grants, s.grantDetail(g))
			}
		}
		for _, tr := range s.state.Training {
			if tr.UserID == u.ID {
				tr.UserEmail = u.Email
				detail.Training = append(detail.Training, tr)
			}
		}
		return detail, true, nil
	}
	return accesstypes.UserDetail{}, false, nil
}

func (s *Store) sortedGrants() []accesstypes.Grant {
	out := make([]accesstypes.Grant, 0, len(s.state.Grants))
	for _, g := range s.state.Grants {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) listGrants(filter ports.GrantFilter) []accesstypes.GrantDetail {
	var out []accesstypes.GrantDetail
	for _, g := range s.sortedGrants() {
		if filter.ActiveOnly && !g.IsActive {
			continue
		}
		if filter.ProgramID != "" && g.Scope.ProgramID != filter.ProgramID {
			continue
		}
		if filter.ClinicID != "" && g.Scope.ClinicID != filter.ClinicID {
			continue
		}
		if filter.LocationID != "" && g.Scope.LocationID != filter.LocationID {
			continue
		}
		detail := s.grantDetail(g)
		if filter.Email != "" && detail.UserEmail != filter.Email {
			continue
		}
		out = append(out, detail)
	}
	return out
}

func (s *Store) ListGrants(_ context.Context, filter ports.GrantFilter) ([]accesstypes.GrantDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listGrants(filter), nil
}

func (s *Store) ListReviewCandidates(_ context.Context, filter ports.GrantFilter) ([]accesstypes.GrantDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filter.ActiveOnly = true
	return s.listGrants(filter), nil
}

func (s *Store) LastReviewDates(_ context.Context, accessIDs []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]bool, len(accessIDs))
	for _, id := range accessIDs {
		wanted[id] = true
	}
	latest := map[string]time.Time{}
	for _, r := range s.state.Reviews {
		if !wanted[r.AccessID] {
			continue
		}
		if r.ReviewDate.After(latest[r.AccessID]) {
			latest[r.AccessID] = r.ReviewDate
		}
	}
	out := make(map[string]string, len(latest))
	for id, ts := range latest {
		out[id] = ts.Format("2006-01-02")
	}
	return out, nil
}

func (s *Store) ListTraining(_ context.Context, email string) ([]accesstypes.TrainingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []accesstypes.TrainingRecord
	for _, u := range s.state.Users {
		if u.Email != email {
			continue
		}
		for _, tr := range s.state.Training {
			if tr.UserID == u.ID {
				tr.UserEmail = u.Email
				out = append(out, tr)
			}
		}
	}
	return out, nil
}

func (s *Store) ListExpiredTraining(_ context.Context) ([]accesstypes.TrainingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var out []accesstypes.TrainingRecord
	for _, tr := range s.state.Training {
		expired := tr.Status == accesstypes.TrainingExpired ||
			(tr.ExpiresDate != nil && tr.ExpiresDate.Before(now))
		if !expired {
			continue
		}
		if u, ok := s.state.Users[tr.UserID]; ok {
			tr.UserEmail = u.Email
		}
		out = append(out, tr)
	}
	return out, nil
}

func (s *Store) ListBusinessAssociates(_ context.Context) ([]accesstypes.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []accesstypes.UserSummary
	for _, u := range s.state.Users {
		if u.IsBusinessAssociate {
			out = append(out, accesstypes.UserSummary{User: u, ActiveGrantCount: s.activeGrantCount(u.ID)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) TerminatedWithActiveGrants(_ context.Context) ([]accesstypes.GrantDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []accesstypes.GrantDetail
	for _, g := range s.sortedGrants() {
		if !g.IsActive {
			continue
		}
		if u, ok := s.state.Users[g.UserID]; ok && u.Status == accesstypes.UserTerminated {
			out = append(out, s.grantDetail(g))
		}
	}
	return out, nil
}
