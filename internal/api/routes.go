package api

import (
	"deployd/internal/auth"
	"deployd/internal/classifier"
	"deployd/internal/health"
	"deployd/internal/inventory"
	"deployd/internal/observability"
	"deployd/internal/orchestrator"
	"deployd/internal/template"
	"net/http"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Orchestrator  *orchestrator.Orchestrator
	Templates     *template.Loader
	Inventory     *inventory.Store
	Classifier    classifier.Classifier
	Tokens        *auth.Manager
	Users         *auth.UserStore
	LoginLimiter  *auth.LoginLimiter
	Callbacks     StatsSource
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg)

	mux := http.NewServeMux()

	// Probes and login - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)
	mux.HandleFunc("POST /auth/login", handler.Login)

	authed := AuthMiddleware(cfg.Tokens)
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, authed(fn))
	}

	route("GET /auth/me", handler.Me)
	route("GET /users", handler.ListUsers)

	route("POST /deployments", handler.SubmitDeployment)
	route("GET /deployments", handler.ListDeployments)
	route("GET /deployments/{id}", handler.GetDeployment)
	route("GET /deployments/{id}/logs", handler.GetDeploymentLogs)
	route("POST /deployments/{id}/analyze", handler.AnalyzeDeployment)
	route("GET /stats", handler.Stats)

	route("GET /templates", handler.ListTemplates)
	route("GET /templates/{name}", handler.GetTemplate)
	route("POST /templates", handler.SaveTemplate)

	route("GET /inventory/hosts", handler.ListHosts)
	route("GET /inventory/databases", handler.ListDatabases)
	route("GET /inventory/db-users", handler.ListDBUsers)
	route("GET /inventory/playbooks", handler.ListPlaybooks)
	route("GET /inventory/helm-upgrades", handler.ListHelmUpgrades)
	route("GET /inventory/resolve/{name}", handler.Resolve)

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
