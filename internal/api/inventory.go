package api

import (
	"net/http"
)

// ListHosts handles GET /inventory/hosts
func (h *Handler) ListHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.inventory.Hosts()
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, hosts)
}

// ListDatabases handles GET /inventory/databases
func (h *Handler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	inv, err := h.inventory.Databases()
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"databases": inv.Databases})
}

// ListDBUsers handles GET /inventory/db-users
func (h *Handler) ListDBUsers(w http.ResponseWriter, r *http.Request) {
	inv, err := h.inventory.Databases()
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"users": inv.Users})
}

// ListPlaybooks handles GET /inventory/playbooks
func (h *Handler) ListPlaybooks(w http.ResponseWriter, r *http.Request) {
	playbooks, err := h.inventory.Playbooks()
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"playbooks": playbooks})
}

// ListHelmUpgrades handles GET /inventory/helm-upgrades
func (h *Handler) ListHelmUpgrades(w http.ResponseWriter, r *http.Request) {
	upgrades, err := h.inventory.HelmUpgrades()
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"upgrades": upgrades})
}

// Resolve handles GET /inventory/resolve/{name}
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	res, err := h.inventory.Resolve(r.PathValue("name"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}
