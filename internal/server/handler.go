package server

import (
	"context"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/glewis05/propel-mcp/internal/routing"
	accessports "github.com/glewis05/propel-mcp/modules/access/domain/ports"
	accesspersistence "github.com/glewis05/propel-mcp/modules/access/infrastructure/persistence"
	accessservices "github.com/glewis05/propel-mcp/modules/access/services"
	auditports "github.com/glewis05/propel-mcp/modules/audit/domain/ports"
	auditpersistence "github.com/glewis05/propel-mcp/modules/audit/infrastructure/persistence"
	configports "github.com/glewis05/propel-mcp/modules/config/domain/ports"
	configpersistence "github.com/glewis05/propel-mcp/modules/config/infrastructure/persistence"
	networkports "github.com/glewis05/propel-mcp/modules/network/domain/ports"
	networkpersistence "github.com/glewis05/propel-mcp/modules/network/infrastructure/persistence"
)

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

// HandlerOptions carries injectable stores. Any nil store is replaced
// by a Postgres-backed default sharing one pool built from the
// environment; tests inject memory stores and never touch a database.
type HandlerOptions struct {
	Logger      *zerolog.Logger
	AccessStore accessports.Store
	ReadStore   accessports.ReadStore
	ConfigStore configports.Store
	Directory   networkports.DirectoryStore
	AuditReader auditports.Reader
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	allowlistPath := os.Getenv("ALLOWLIST_PATH")
	if allowlistPath == "" {
		p, err := defaultConfigPath("config/routing/allowlist.yaml")
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}
	classifier, err := routing.NewClassifier(a)
	if err != nil {
		return nil, err
	}

	accessStore := opts.AccessStore
	readStore := opts.ReadStore
	configStore := opts.ConfigStore
	directory := opts.Directory
	auditReader := opts.AuditReader

	var pool *pgxpool.Pool
	needsPG := accessStore == nil || readStore == nil || configStore == nil || directory == nil || auditReader == nil
	if needsPG {
		p, err := pgxpool.New(context.Background(), dbDSNFromEnv())
		if err != nil {
			return nil, err
		}
		pool = p
	}
	if accessStore == nil {
		accessStore = accesspersistence.NewPGStore(pool)
	}
	if readStore == nil {
		readStore = accesspersistence.NewPGReadStore(pool)
	}
	if configStore == nil {
		configStore = configpersistence.NewPGStore(pool)
	}
	if directory == nil {
		directory = networkpersistence.NewDirectoryPGStore(pool)
	}
	if auditReader == nil {
		auditReader = auditpersistence.NewPGReader(pool)
	}

	engine := accessservices.NewEngine(accessStore, log)
	queries := accessservices.NewQueries(readStore, directory)

	authorizer, err := loadAuthorizer()
	if err != nil {
		return nil, err
	}

	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	router.Handle(routing.RouteClassAPI, http.MethodGet, "/api/config/value", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleConfigValueAPI(w, r, configStore, directory)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodPost, "/api/config/value", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleConfigValueAPI(w, r, configStore, directory)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodGet, "/api/config/definitions", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleConfigDefinitionsAPI(w, r, configStore)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodPost, "/api/access/roster-import", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleRosterImportAPI(w, r, engine)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodPost, "/api/access/review-import", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleReviewImportAPI(w, r, engine)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodGet, "/api/access", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAccessListAPI(w, r, queries)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodGet, "/api/access/reviews-due", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleReviewsDueAPI(w, r, queries)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodGet, "/api/access/review-export", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleReviewExportAPI(w, r, queries)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodGet, "/api/users", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleUsersAPI(w, r, engine, queries)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodPost, "/api/users", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleUsersAPI(w, r, engine, queries)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodGet, "/api/user", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleUserDetailAPI(w, r, queries)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodGet, "/api/programs", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleProgramsAPI(w, r, directory)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodGet, "/api/reports/compliance", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleComplianceReportAPI(w, r, queries)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodGet, "/api/training", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleTrainingAPI(w, r, queries)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodGet, "/api/training/expired", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleExpiredTrainingAPI(w, r, queries)
	}))
	router.Handle(routing.RouteClassAPI, http.MethodGet, "/api/audit", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAuditAPI(w, r, auditReader)
	}))

	var h http.Handler = router
	h = withAuthz(classifier, authorizer, h)
	h = withRequestLog(log, h)
	return h, nil
}
