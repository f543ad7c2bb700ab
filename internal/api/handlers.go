package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"gwi.com/botstudio/internal/auth"
	"gwi.com/botstudio/internal/core"
	"gwi.com/botstudio/internal/store"
)

const (
	DefaultMaxUploadBytes = 10 << 20
	minPasswordLength     = 6
)

type contextKey string

const userIDKey contextKey = "userID"

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

type APIHandler struct {
	store     *store.SQLiteStore
	issuer    *auth.Issuer
	chat      *core.ChatService
	analytics *core.AnalyticsService
	ingestor  *core.Ingestor
	logger    *zap.Logger

	maxUploadBytes int64
}

func NewAPIHandler(st *store.SQLiteStore, issuer *auth.Issuer, chat *core.ChatService, analytics *core.AnalyticsService, ingestor *core.Ingestor, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		store:          st,
		issuer:         issuer,
		chat:           chat,
		analytics:      analytics,
		ingestor:       ingestor,
		logger:         logger.Named("api"),
		maxUploadBytes: DefaultMaxUploadBytes,
	}
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// fail maps store errors onto statuses. Anything unexpected is logged and
// reported as a 500 carrying msg.
func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "Already exists")
	default:
		h.logger.Error(msg,
			zap.String("path", r.URL.Path),
			zap.String("user_id", userIDFrom(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		userID, err := h.issuer.ValidateJWT(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		if _, err := h.store.GetUserByID(r.Context(), userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "User not found")
				return
			}
			h.fail(w, r, err, "Failed to process user identity")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type authResponse struct {
	Token string      `json:"token"`
	User  *store.User `json:"user"`
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Company  string `json:"company"`
	Role     string `json:"role"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Name, email and password are required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(w, r, err, "Failed to process password")
		return
	}

	user := &store.User{
		Name:         req.Name,
		Email:        req.Email,
		Company:      strings.TrimSpace(req.Company),
		Role:         strings.TrimSpace(req.Role),
		PasswordHash: hashedPassword,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "User already exists")
			return
		}
		h.fail(w, r, err, "Failed to create user")
		return
	}

	token, err := h.issuer.GenerateJWT(user.ID)
	if err != nil {
		h.fail(w, r, err, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.fail(w, r, err, "Failed to log in")
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.issuer.GenerateJWT(user.ID)
	if err != nil {
		h.fail(w, r, err, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *APIHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUserByID(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type profileRequest struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Company        *string `json:"company"`
	Role           *string `json:"role"`
	Avatar         *string `json:"avatar"`
	SessionTimeout *string `json:"sessionTimeout"`
}

func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByID(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "Failed to load profile")
		return
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			writeError(w, http.StatusBadRequest, "Name cannot be empty")
			return
		}
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		if strings.TrimSpace(*req.Email) == "" {
			writeError(w, http.StatusBadRequest, "Email cannot be empty")
			return
		}
		user.Email = *req.Email
	}
	setIfPresent(&user.Company, req.Company)
	setIfPresent(&user.Role, req.Role)
	setIfPresent(&user.Avatar, req.Avatar)
	setIfPresent(&user.SessionTimeout, req.SessionTimeout)

	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "Email is already in use")
			return
		}
		h.fail(w, r, err, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func setIfPresent(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
