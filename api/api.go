package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"casetrack/access"
	"casetrack/audit"
	"casetrack/config"
	"casetrack/core"
	"casetrack/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterEntry holds a rate limiter with last seen time
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// API holds the REST server and its collaborators. Handlers own the
// authorization step: they resolve the acting user's effective level through
// the request-scoped checker before delegating to the authz-agnostic services.
type API struct {
	router *mux.Router
	server *http.Server

	cases      *service.CaseService
	tasks      *service.TaskService
	iocs       *service.IOCService
	activities *audit.Tracker
	users      core.UserStorage
	grants     core.GrantStorage
	access     *access.Controller

	config *config.Config
	logger *zap.SugaredLogger

	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	stopCh         chan struct{}
}

// NewAPI creates a new API server
func NewAPI(
	cases *service.CaseService,
	tasks *service.TaskService,
	iocs *service.IOCService,
	activities *audit.Tracker,
	users core.UserStorage,
	grants core.GrantStorage,
	accessController *access.Controller,
	cfg *config.Config,
	logger *zap.SugaredLogger,
) *API {
	a := &API{
		router:       mux.NewRouter(),
		cases:        cases,
		tasks:        tasks,
		iocs:         iocs,
		activities:   activities,
		users:        users,
		grants:       grants,
		access:       accessController,
		config:       cfg,
		logger:       logger,
		rateLimiters: make(map[string]*rateLimiterEntry),
		stopCh:       make(chan struct{}),
	}
	a.setupRoutes()
	go a.cleanupRateLimiters()
	return a
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.Use(a.recoveryMiddleware)
	a.router.Use(a.requestIDMiddleware)
	a.router.Use(a.metricsMiddleware)
	a.router.Use(a.rateLimitMiddleware)

	// Unauthenticated surface
	a.router.HandleFunc("/health", a.health).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	a.router.HandleFunc("/api/v2/auth/login", a.login).Methods("POST")

	// Everything below requires a valid bearer token
	v2 := a.router.PathPrefix("/api/v2").Subrouter()
	v2.Use(a.jwtAuthMiddleware)

	v2.HandleFunc("/cases", a.listCases).Methods("GET")
	v2.HandleFunc("/cases", a.createCase).Methods("POST")
	v2.HandleFunc("/cases/{case_id}", a.getCase).Methods("GET")
	v2.HandleFunc("/cases/{case_id}", a.updateCase).Methods("PUT")
	v2.HandleFunc("/cases/{case_id}", a.deleteCase).Methods("DELETE")
	v2.HandleFunc("/cases/{case_id}/close", a.closeCase).Methods("POST")
	v2.HandleFunc("/cases/{case_id}/reopen", a.reopenCase).Methods("POST")

	v2.HandleFunc("/cases/{case_id}/iocs", a.listIOCs).Methods("GET")
	v2.HandleFunc("/cases/{case_id}/iocs", a.createIOC).Methods("POST")
	v2.HandleFunc("/cases/{case_id}/iocs/{id}", a.getIOC).Methods("GET")
	v2.HandleFunc("/cases/{case_id}/iocs/{id}", a.updateIOC).Methods("PUT")
	v2.HandleFunc("/cases/{case_id}/iocs/{id}", a.deleteIOC).Methods("DELETE")
	v2.HandleFunc("/ioc-types", a.listIOCTypes).Methods("GET")

	v2.HandleFunc("/cases/{case_id}/tasks", a.listTasks).Methods("GET")
	v2.HandleFunc("/cases/{case_id}/tasks", a.createTask).Methods("POST")
	v2.HandleFunc("/tasks/{id}", a.getTask).Methods("GET")
	v2.HandleFunc("/tasks/{id}", a.updateTask).Methods("PUT")
	v2.HandleFunc("/tasks/{id}", a.deleteTask).Methods("DELETE")

	v2.HandleFunc("/cases/{case_id}/activities", a.listActivities).Methods("GET")

	// Access administration, server_administrator only
	manage := v2.PathPrefix("/manage/access-control").Subrouter()
	manage.Use(a.requireServerAdministrator)
	manage.HandleFunc("/cases/{case_id}/grants", a.listGrants).Methods("GET")
	manage.HandleFunc("/cases/{case_id}/grants", a.upsertGrant).Methods("POST")
	manage.HandleFunc("/cases/{case_id}/grants", a.deleteGrant).Methods("DELETE")
	manage.HandleFunc("/groups", a.createGroup).Methods("POST")
	manage.HandleFunc("/groups/{group_id}", a.deleteGroup).Methods("DELETE")
	manage.HandleFunc("/groups/{group_id}/members", a.listGroupMembers).Methods("GET")
	manage.HandleFunc("/groups/{group_id}/members/{user_id}", a.addGroupMember).Methods("PUT")
	manage.HandleFunc("/groups/{group_id}/members/{user_id}", a.removeGroupMember).Methods("DELETE")
}

// requireServerAdministrator gates the management surface on the global flag
func (a *API) requireServerAdministrator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok || !a.access.HasPermission(user, core.PermServerAdministrator) {
			writeErrorMessage(w, http.StatusForbidden, "access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// health reports liveness
func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]string{"state": "ok"})
}

// routeTemplate returns the mux route template for metric labels, keeping
// path IDs from exploding the label cardinality.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// Router exposes the configured router, used by tests and the server loop.
func (a *API) Router() *mux.Router {
	return a.router
}

// Start runs the HTTP server until Shutdown is called.
func (a *API) Start() error {
	addr := fmt.Sprintf("%s:%d", a.config.API.Host, a.config.API.Port)
	a.server = &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	a.logger.Infow("API server listening", "addr", addr)
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server and background workers.
func (a *API) Shutdown(ctx context.Context) error {
	close(a.stopCh)
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
