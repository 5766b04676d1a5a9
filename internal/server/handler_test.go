package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	accesstypes "github.com/glewis05/propel-mcp/modules/access/domain/types"
	accessmemory "github.com/glewis05/propel-mcp/modules/access/infrastructure/memory"
	auditmemory "github.com/glewis05/propel-mcp/modules/audit/infrastructure/memory"
	configtypes "github.com/glewis05/propel-mcp/modules/config/domain/types"
	configmemory "github.com/glewis05/propel-mcp/modules/config/infrastructure/memory"
	networktypes "github.com/glewis05/propel-mcp/modules/network/domain/types"
)

const (
	testProgramID  = "11111111-1111-7111-8111-111111111111"
	testClinicID   = "22222222-2222-7222-8222-222222222222"
	testLocationID = "33333333-3333-7333-8333-333333333333"
)

func testTree() []networktypes.ProgramTree {
	return []networktypes.ProgramTree{
		{
			Program: networktypes.Program{ID: testProgramID, Name: "Prevention4ME", Prefix: "P4M", Status: "active"},
			Clinics: []networktypes.ClinicTree{
				{
					Clinic: networktypes.Clinic{ID: testClinicID, ProgramID: testProgramID, Name: "Franzen Clinic", Code: "FRANZ", Status: "active"},
					Locations: []networktypes.Location{
						{ID: testLocationID, ClinicID: testClinicID, Name: "Franzen Main", Code: "FRANZ-01"},
					},
				},
			},
		},
	}
}

func testSeedState() *accessmemory.State {
	state := accessmemory.NewState()
	state.Programs = []networktypes.Program{
		{ID: testProgramID, Name: "Prevention4ME", Prefix: "P4M", Status: "active"},
	}
	state.Clinics = []networktypes.Clinic{
		{ID: testClinicID, ProgramID: testProgramID, Name: "Franzen Clinic", Code: "FRANZ", Status: "active"},
	}
	state.Locations = []networktypes.Location{
		{ID: testLocationID, ClinicID: testClinicID, Name: "Franzen Main", Code: "FRANZ-01"},
	}
	return state
}

func setConfigPaths(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	root := filepath.Clean(filepath.Join(wd, "..", ".."))
	t.Setenv("ALLOWLIST_PATH", filepath.Join(root, "config", "routing", "allowlist.yaml"))
	t.Setenv("AUTHZ_MODEL_PATH", filepath.Join(root, "config", "access", "model.conf"))
	t.Setenv("AUTHZ_POLICY_PATH", filepath.Join(root, "config", "access", "policy.csv"))
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	setConfigPaths(t)

	ledger := auditmemory.NewLedger()
	store := accessmemory.NewStore(testSeedState(), ledger)
	configStore := configmemory.NewStore(testTree(), ledger)
	if err := configStore.AddDefinition(context.Background(), configtypes.Definition{
		Key:          "helpdesk_phone",
		DisplayName:  "Helpdesk Phone",
		DefaultValue: "555-0100",
	}); err != nil {
		t.Fatal(err)
	}

	h, err := NewHandlerWithOptions(HandlerOptions{
		AccessStore: store,
		ReadStore:   store,
		ConfigStore: configStore,
		Directory:   store,
		AuditReader: ledger,
	})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func doJSON(t *testing.T, h http.Handler, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Accept", "application/json")
	if role != "" {
		req.Header.Set(headerActor, "tester@propel.example")
		req.Header.Set(headerActorRole, role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Healthz(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestHandler_UnknownRouteNotFound(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/nope", "admin", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestHandler_RosterImportThenAccessList(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/access/roster-import", "admin", map[string]any{
		"mode": "commit",
		"rows": []map[string]string{
			{
				"first_name":   "Ada",
				"last_name":    "Okafor",
				"email":        "ada@clinic.example",
				"program":      "P4M",
				"clinic":       "FRANZ",
				"access_level": "Read Only",
			},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var plan struct {
		Mode    string `json:"mode"`
		Entries []struct {
			Classification string `json:"classification"`
		} `json:"entries"`
		Errors []any `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &plan); err != nil {
		t.Fatal(err)
	}
	if plan.Mode != "commit" || len(plan.Entries) != 1 || len(plan.Errors) != 0 {
		t.Fatalf("plan=%+v", plan)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/access?email=ada@clinic.example", "viewer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var listing struct {
		Grants []accesstypes.GrantDetail `json:"grants"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatal(err)
	}
	if len(listing.Grants) != 1 || listing.Grants[0].Role != accesstypes.RoleReadOnly {
		t.Fatalf("grants=%+v", listing.Grants)
	}
}

func TestHandler_ConfigValueRoundTripWithAudit(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/config/value", "admin", map[string]string{
		"config_key": "helpdesk_phone",
		"program":    "P4M",
		"value":      "555-0200",
		"reason":     "program rollout",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var audit struct {
		RecordType string `json:"record_type"`
		RecordID   string `json:"record_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &audit); err != nil {
		t.Fatal(err)
	}
	if audit.RecordType != "config_value" || audit.RecordID == "" {
		t.Fatalf("audit=%+v", audit)
	}

	rec = doJSON(t, h, http.MethodGet,
		"/api/config/value?key=helpdesk_phone&program=P4M&clinic=FRANZ&with_chain=1",
		"viewer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var res configtypes.Resolution
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Value != "555-0200" || res.Source != configtypes.SourceProgram {
		t.Fatalf("resolution=%+v", res)
	}
	if len(res.Chain) == 0 {
		t.Fatal("expected inheritance chain")
	}

	rec = doJSON(t, h, http.MethodGet,
		"/api/audit?record_type=config_value&record_id="+audit.RecordID, "admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var trail struct {
		Records []struct {
			Action string `json:"action"`
		} `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &trail); err != nil {
		t.Fatal(err)
	}
	if len(trail.Records) != 1 || trail.Records[0].Action != "create" {
		t.Fatalf("trail=%+v", trail)
	}
}

func TestHandler_AuthzDeniesViewerWrites(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/users", "viewer", map[string]string{
		"name":  "Ada Okafor",
		"email": "ada@clinic.example",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandler_WriteRequiresActorHeader(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewBufferString(`{"name":"Ada","email":"ada@clinic.example"}`))
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerActorRole, "admin")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandler_CreateUserThenDetail(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/users", "admin", map[string]string{
		"name":  "Ada Okafor",
		"email": "Ada@Clinic.example",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var created accesstypes.User
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Email != "ada@clinic.example" {
		t.Fatalf("email=%q", created.Email)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/user?email=ada@clinic.example", "viewer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/user?email=nobody@clinic.example", "viewer", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandler_ProgramsTree(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/programs", "viewer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var tree struct {
		Programs []networktypes.ProgramTree `json:"programs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &tree); err != nil {
		t.Fatal(err)
	}
	if len(tree.Programs) != 1 || len(tree.Programs[0].Clinics) != 1 {
		t.Fatalf("tree=%+v", tree.Programs)
	}
}

func TestHandler_ComplianceReportBadType(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/reports/compliance?type=bogus", "admin", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodGet, "/api/reports/compliance?type=access_list", "admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandler_ReviewsDue(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/access/roster-import", "admin", map[string]any{
		"mode": "commit",
		"rows": []map[string]string{
			{
				"first_name":   "Ada",
				"last_name":    "Okafor",
				"email":        "ada@clinic.example",
				"program":      "P4M",
				"access_level": "Read + Write",
			},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/access/reviews-due", "viewer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var due accesstypes.ReviewsDue
	if err := json.Unmarshal(rec.Body.Bytes(), &due); err != nil {
		t.Fatal(err)
	}
	// Fresh grant: a full review cycle away from its due date.
	if len(due.Overdue) != 0 || len(due.DueSoon) != 0 {
		t.Fatalf("due=%+v", due)
	}
}
