package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gwi.com/botstudio/internal/store"
)

const (
	defaultModel       = "gpt-4o"
	defaultTemperature = 0.7
)

var projectStatuses = map[string]bool{
	"development": true,
	"testing":     true,
	"deployed":    true,
}

type projectRequest struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Model        *string  `json:"model"`
	Temperature  *float64 `json:"temperature"`
	SystemPrompt *string  `json:"systemPrompt"`
	Documents    []string `json:"documents"`
	Status       *string  `json:"status"`
}

// apply copies the fields present in req onto p.
func (req projectRequest) apply(p *store.Project) string {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return "Project name is required"
		}
		p.Name = name
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.Model != nil && strings.TrimSpace(*req.Model) != "" {
		p.Model = strings.TrimSpace(*req.Model)
	}
	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > 2 {
			return "Temperature must be between 0 and 2"
		}
		p.Temperature = *req.Temperature
	}
	if req.SystemPrompt != nil {
		p.SystemPrompt = *req.SystemPrompt
	}
	if req.Documents != nil {
		p.Documents = make([]store.DocumentRef, 0, len(req.Documents))
		for _, id := range req.Documents {
			p.Documents = append(p.Documents, store.DocumentRef{ID: id})
		}
	}
	if req.Status != nil {
		if !projectStatuses[*req.Status] {
			return "Status must be one of development, testing, deployed"
		}
		p.Status = *req.Status
	}
	return ""
}

func (h *APIHandler) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListProjects(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "Failed to list projects")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *APIHandler) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == nil {
		writeError(w, http.StatusBadRequest, "Project name is required")
		return
	}

	userID := userIDFrom(r.Context())
	p := &store.Project{
		UserID:      userID,
		Model:       defaultModel,
		Temperature: defaultTemperature,
	}
	if msg := req.apply(p); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.store.CreateProject(r.Context(), p); err != nil {
		h.fail(w, r, err, "Failed to create project")
		return
	}

	created, err := h.store.GetProject(r.Context(), userID, p.ID)
	if err != nil {
		h.fail(w, r, err, "Failed to load project")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *APIHandler) UpdateProjectHandler(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	userID := userIDFrom(r.Context())
	p, err := h.store.GetProject(r.Context(), userID, chi.URLParam(r, "projectID"))
	if err != nil {
		h.fail(w, r, err, "Failed to load project")
		return
	}
	if msg := req.apply(p); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.store.UpdateProject(r.Context(), p); err != nil {
		h.fail(w, r, err, "Failed to update project")
		return
	}

	updated, err := h.store.GetProject(r.Context(), userID, p.ID)
	if err != nil {
		h.fail(w, r, err, "Failed to load project")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *APIHandler) DeleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	err := h.store.DeleteProject(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "projectID"))
	if err != nil {
		h.fail(w, r, err, "Failed to delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
