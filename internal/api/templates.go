package api

import (
	"deployd/internal/template"
	"encoding/json"
	"net/http"
)

// ListTemplates handles GET /templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.templates.List()
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, catalog)
}

// GetTemplate handles GET /templates/{name}
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.Get(r.PathValue("name"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

// SaveTemplate handles POST /templates
func (h *Handler) SaveTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var t template.Template
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid template: "+err.Error())
		return
	}
	if err := h.templates.Save(&t); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, template.Summary{
		Name:        t.Name,
		Description: t.Description,
		Ticket:      t.Ticket,
		TotalSteps:  t.TotalSteps,
	})
}
