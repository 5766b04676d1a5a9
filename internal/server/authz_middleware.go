package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/glewis05/propel-mcp/internal/routing"
	"github.com/glewis05/propel-mcp/pkg/authz"
)

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := defaultConfigPath("config/access/model.conf")
		if err != nil {
			return nil, err
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := defaultConfigPath("config/access/policy.csv")
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}
	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

func defaultConfigPath(rel string) (string, error) {
	path := rel
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: " + rel + " not found")
}

type authorizer interface {
	Authorize(subject string, object string, action string) (allowed bool, enforced bool, err error)
}

func withAuthz(classifier *routing.Classifier, a authorizer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassUI
		if classifier != nil {
			rc = classifier.Classify(path)
		}
		if path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		_, role := actorFromRequest(r)
		subject := authz.SubjectFromActorRole(role)

		allowed, enforced, err := a.Authorize(subject, object, action)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func authzRequirementForRoute(method string, path string) (object string, action string, ok bool) {
	switch path {
	case "/api/config/value":
		if method == http.MethodGet {
			return authz.ObjectConfig, authz.ActionRead, true
		}
		if method == http.MethodPost {
			return authz.ObjectConfig, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/config/definitions":
		if method == http.MethodGet {
			return authz.ObjectConfig, authz.ActionRead, true
		}
		return "", "", false
	case "/api/access/roster-import", "/api/access/review-import":
		if method == http.MethodPost {
			return authz.ObjectAccess, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/access", "/api/access/reviews-due", "/api/access/review-export":
		if method == http.MethodGet {
			return authz.ObjectAccess, authz.ActionRead, true
		}
		return "", "", false
	case "/api/users":
		if method == http.MethodGet {
			return authz.ObjectUsers, authz.ActionRead, true
		}
		if method == http.MethodPost {
			return authz.ObjectUsers, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/user", "/api/programs":
		if method == http.MethodGet {
			return authz.ObjectUsers, authz.ActionRead, true
		}
		return "", "", false
	case "/api/reports/compliance":
		if method == http.MethodGet {
			return authz.ObjectReports, authz.ActionRead, true
		}
		return "", "", false
	case "/api/training", "/api/training/expired":
		if method == http.MethodGet {
			return authz.ObjectTraining, authz.ActionRead, true
		}
		return "", "", false
	case "/api/audit":
		if method == http.MethodGet {
			return authz.ObjectAudit, authz.ActionRead, true
		}
		return "", "", false
	default:
		return "", "", false
	}
}
