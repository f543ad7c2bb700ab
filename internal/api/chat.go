package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gwi.com/botstudio/internal/auth"
	"gwi.com/botstudio/internal/core"
	"gwi.com/botstudio/internal/store"
)

// historyLimit bounds the turns forwarded to the model.
const historyLimit = 10

type historyEntry struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type chatRequest struct {
	Question     string         `json:"question"`
	DocumentIDs  []string       `json:"documentIds"`
	SystemPrompt string         `json:"systemPrompt"`
	History      []historyEntry `json:"history"`
	ProjectID    string         `json:"projectId"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

func turns(entries []historyEntry) []core.Turn {
	out := make([]core.Turn, 0, len(entries))
	for _, e := range entries {
		role := "user"
		if e.Type == "assistant" {
			role = "assistant"
		}
		out = append(out, core.Turn{Role: role, Content: e.Content})
	}
	return core.History(out, historyLimit)
}

func (h *APIHandler) ask(w http.ResponseWriter, r *http.Request, req core.ChatRequest) {
	answer, err := h.chat.Ask(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyQuestion):
			writeError(w, http.StatusBadRequest, "Question is required")
		case errors.Is(err, core.ErrNoDocuments):
			writeError(w, http.StatusBadRequest, "At least one document must be selected")
		default:
			h.fail(w, r, err, "Failed to get an answer")
		}
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Answer: answer})
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.ask(w, r, core.ChatRequest{
		UserID:       userIDFrom(r.Context()),
		Question:     req.Question,
		DocumentIDs:  req.DocumentIDs,
		SystemPrompt: req.SystemPrompt,
		History:      turns(req.History),
		ProjectID:    req.ProjectID,
	})
}

type projectChatRequest struct {
	Question string         `json:"question"`
	History  []historyEntry `json:"history"`
}

// ProjectChatHandler serves a deployed project to API key holders. The
// project's own documents and system prompt are used.
func (h *APIHandler) ProjectChatHandler(w http.ResponseWriter, r *http.Request) {
	key := bearerToken(r)
	if key == "" {
		key = strings.TrimSpace(r.Header.Get("X-API-Key"))
	}
	if !strings.HasPrefix(key, auth.APIKeyPrefix) {
		writeError(w, http.StatusUnauthorized, "API key is required")
		return
	}

	record, err := h.store.GetAPIKeyByHash(r.Context(), auth.HashAPIKey(key))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		h.fail(w, r, err, "Failed to check API key")
		return
	}

	projectID := chi.URLParam(r, "projectID")
	if record.ProjectID != "" && record.ProjectID != projectID {
		writeError(w, http.StatusForbidden, "API key is not valid for this project")
		return
	}

	project, err := h.store.GetProject(r.Context(), record.UserID, projectID)
	if err != nil {
		h.fail(w, r, err, "Failed to load project")
		return
	}
	if project.Status != "deployed" {
		writeError(w, http.StatusConflict, "Project is not deployed")
		return
	}

	var req projectChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	docIDs := make([]string, 0, len(project.Documents))
	for _, d := range project.Documents {
		docIDs = append(docIDs, d.ID)
	}
	h.ask(w, r, core.ChatRequest{
		UserID:      record.UserID,
		Question:    req.Question,
		DocumentIDs: docIDs,
		History:     turns(req.History),
		ProjectID:   project.ID,
	})
}

func (h *APIHandler) AnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.analytics.Report(r.Context(), userIDFrom(r.Context()), r.URL.Query().Get("range"))
	if err != nil {
		if errors.Is(err, core.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, "Range must be one of 24h, 7d, 30d, 90d")
			return
		}
		h.fail(w, r, err, "Failed to load analytics")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
