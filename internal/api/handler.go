// Package api provides the HTTP API handlers and routing for the deployment service.
package api

import (
	"deployd/internal/apperrors"
	"deployd/internal/auth"
	"deployd/internal/classifier"
	"deployd/internal/health"
	"deployd/internal/inventory"
	"deployd/internal/job"
	"deployd/internal/notify"
	"deployd/internal/orchestrator"
	"deployd/internal/template"
	"encoding/json"
	"log/slog"
	"net/http"
)

// maxRequestBodySize limits request bodies to 1MB
const maxRequestBodySize = 1 << 20

// StatsSource reports callback delivery counters.
type StatsSource interface {
	Stats() notify.Stats
}

// Handler contains the HTTP handlers of the deployment API.
type Handler struct {
	orch       *orchestrator.Orchestrator
	registry   *job.Registry
	templates  *template.Loader
	inventory  *inventory.Store
	classifier classifier.Classifier
	tokens     *auth.Manager
	users      *auth.UserStore
	limiter    *auth.LoginLimiter
	callbacks  StatsSource
	health     *health.Checker
}

// NewHandler creates a new API handler from the router dependencies.
func NewHandler(cfg RouterConfig) *Handler {
	h := &Handler{
		orch:       cfg.Orchestrator,
		templates:  cfg.Templates,
		inventory:  cfg.Inventory,
		classifier: cfg.Classifier,
		tokens:     cfg.Tokens,
		users:      cfg.Users,
		limiter:    cfg.LoginLimiter,
		callbacks:  cfg.Callbacks,
		health:     cfg.HealthChecker,
	}
	if cfg.Orchestrator != nil {
		h.registry = cfg.Orchestrator.Registry()
	}
	return h
}

// SubmitDeployment handles POST /deployments
func (h *Handler) SubmitDeployment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req job.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var submittedBy string
	if claims := auth.FromContext(r.Context()); claims != nil {
		submittedBy = claims.Username
	}

	id, err := h.orch.Submit(r.Context(), &req, submittedBy)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, job.SubmitResponse{ID: id})
}

// ListDeployments handles GET /deployments
func (h *Handler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.registry.List())
}

// GetDeployment handles GET /deployments/{id}
func (h *Handler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	view, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// GetDeploymentLogs handles GET /deployments/{id}/logs
func (h *Handler) GetDeploymentLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.registry.Logs(r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, logs)
}

// AnalyzeDeployment handles POST /deployments/{id}/analyze
func (h *Handler) AnalyzeDeployment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	logs, err := h.registry.Logs(id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	diagnosis, err := h.classifier.Classify(r.Context(), logs.Logs, id)
	if err != nil {
		h.handleError(w, r, apperrors.Internal("classifier.classify", err))
		return
	}
	h.writeJSON(w, http.StatusOK, diagnosis)
}

// statsResponse summarizes the service's workload.
type statsResponse struct {
	Deployments map[job.Status]int `json:"deployments"`
	Running     int                `json:"running"`
	Callbacks   *notify.Stats      `json:"callbacks,omitempty"`
}

// Stats handles GET /stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Deployments: h.registry.Counts(),
		Running:     h.orch.Running(),
	}
	if h.callbacks != nil {
		s := h.callbacks.Stats()
		resp.Callbacks = &s
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.health.Liveness(r.Context()))
}

// Readyz handles GET /readyz - readiness probe.
// Degraded still serves; 503 only when a required check fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsServing() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// errorResponse is the body of every error answer.
type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// handleError maps an application error to its HTTP status.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.WarnContext(r.Context(), "Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Hint: apperrors.HintOf(err)})
}
