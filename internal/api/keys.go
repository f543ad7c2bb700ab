package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gwi.com/botstudio/internal/auth"
	"gwi.com/botstudio/internal/store"
)

const defaultKeyName = "New API Key"

type createKeyRequest struct {
	Name      string `json:"name"`
	ProjectID string `json:"projectId"`
}

// createdKey is the only response that ever carries the full secret.
type createdKey struct {
	store.APIKey
	Key string `json:"key"`
}

func (h *APIHandler) ListAPIKeysHandler(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "Failed to list API keys")
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *APIHandler) CreateAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	userID := userIDFrom(r.Context())
	if req.ProjectID != "" {
		if _, err := h.store.GetProject(r.Context(), userID, req.ProjectID); err != nil {
			h.fail(w, r, err, "Failed to load project")
			return
		}
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultKeyName
	}

	secret, err := auth.NewAPIKey()
	if err != nil {
		h.fail(w, r, err, "Failed to generate API key")
		return
	}
	key := store.APIKey{
		UserID:    userID,
		Name:      name,
		KeyPrefix: secret.Prefix,
		LastFour:  secret.LastFour,
		KeyHash:   secret.Hash,
		ProjectID: req.ProjectID,
	}
	if err := h.store.CreateAPIKey(r.Context(), &key); err != nil {
		h.fail(w, r, err, "Failed to store API key")
		return
	}
	writeJSON(w, http.StatusCreated, createdKey{APIKey: key, Key: secret.Key})
}

func (h *APIHandler) DeleteAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	err := h.store.DeleteAPIKey(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "keyID"))
	if err != nil {
		h.fail(w, r, err, "Failed to delete API key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
