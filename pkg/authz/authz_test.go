package authz

import (
	"os"
	"path/filepath"
	"testing"
)

const testModel = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

const testPolicy = `p, role:admin, /api/*, *
p, role:auditor, /api/reports/compliance, GET
`

func writeTestPolicyFiles(t *testing.T) (modelPath string, policyPath string) {
	t.Helper()
	dir := t.TempDir()
	modelPath = filepath.Join(dir, "model.conf")
	policyPath = filepath.Join(dir, "policy.csv")
	if err := os.WriteFile(modelPath, []byte(testModel), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(policyPath, []byte(testPolicy), 0o600); err != nil {
		t.Fatal(err)
	}
	return modelPath, policyPath
}

func TestModeFromEnv(t *testing.T) {
	t.Setenv("AUTHZ_MODE", "")
	t.Setenv("AUTHZ_UNSAFE_ALLOW_DISABLED", "")

	mode, err := ModeFromEnv()
	if err != nil || mode != ModeEnforce {
		t.Fatalf("default mode = %q err=%v, want enforce", mode, err)
	}

	t.Setenv("AUTHZ_MODE", "shadow")
	mode, err = ModeFromEnv()
	if err != nil || mode != ModeShadow {
		t.Fatalf("mode = %q err=%v, want shadow", mode, err)
	}

	t.Setenv("AUTHZ_MODE", "disabled")
	if _, err := ModeFromEnv(); err == nil {
		t.Fatal("disabled without escape hatch must error")
	}
	t.Setenv("AUTHZ_UNSAFE_ALLOW_DISABLED", "1")
	mode, err = ModeFromEnv()
	if err != nil || mode != ModeDisabled {
		t.Fatalf("mode = %q err=%v, want disabled", mode, err)
	}

	t.Setenv("AUTHZ_MODE", "bogus")
	if _, err := ModeFromEnv(); err == nil {
		t.Fatal("invalid mode must error")
	}
}

func TestSubjectFromActorRole(t *testing.T) {
	t.Parallel()

	if got := SubjectFromActorRole(" Admin "); got != "role:admin" {
		t.Fatalf("subject = %q", got)
	}
	if got := SubjectFromActorRole(""); got != "role:anonymous" {
		t.Fatalf("subject = %q", got)
	}
}

func TestAuthorizeModes(t *testing.T) {
	modelPath, policyPath := writeTestPolicyFiles(t)

	enforce, err := NewAuthorizer(modelPath, policyPath, ModeEnforce)
	if err != nil {
		t.Fatal(err)
	}

	allowed, enforced, err := enforce.Authorize("role:admin", "/api/access/roster-import", "POST")
	if err != nil || !allowed || !enforced {
		t.Fatalf("admin: allowed=%v enforced=%v err=%v", allowed, enforced, err)
	}

	allowed, enforced, err = enforce.Authorize("role:auditor", "/api/access/roster-import", "POST")
	if err != nil || allowed || !enforced {
		t.Fatalf("auditor write: allowed=%v enforced=%v err=%v", allowed, enforced, err)
	}

	shadow, err := NewAuthorizer(modelPath, policyPath, ModeShadow)
	if err != nil {
		t.Fatal(err)
	}
	allowed, enforced, err = shadow.Authorize("role:auditor", "/api/access/roster-import", "POST")
	if err != nil || allowed || enforced {
		t.Fatalf("shadow: allowed=%v enforced=%v err=%v", allowed, enforced, err)
	}

	disabled := &Authorizer{mode: ModeDisabled}
	allowed, enforced, err = disabled.Authorize("role:anonymous", "/anything", "DELETE")
	if err != nil || !allowed || enforced {
		t.Fatalf("disabled: allowed=%v enforced=%v err=%v", allowed, enforced, err)
	}
}
