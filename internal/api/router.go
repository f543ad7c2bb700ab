package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(apiHandler *APIHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// Public routes
	r.Post("/auth/login", apiHandler.LoginHandler)
	r.Post("/auth/signup", apiHandler.SignupHandler)
	r.Get("/health", apiHandler.HealthHandler)

	// Deployed projects, authenticated by API key
	r.Post("/v1/projects/{projectID}/chat", apiHandler.ProjectChatHandler)

	// User-authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(apiHandler.JWTAuthMiddleware)

		r.Get("/users/profile", apiHandler.GetProfileHandler)
		r.Put("/users/profile", apiHandler.UpdateProfileHandler)

		r.Get("/projects", apiHandler.ListProjectsHandler)
		r.Post("/projects", apiHandler.CreateProjectHandler)
		r.Put("/projects/{projectID}", apiHandler.UpdateProjectHandler)
		r.Delete("/projects/{projectID}", apiHandler.DeleteProjectHandler)

		r.Get("/data", apiHandler.ListDataSourcesHandler)
		r.Post("/data/upload", apiHandler.UploadHandler)
		r.Delete("/data/{documentID}", apiHandler.DeleteDataSourceHandler)

		r.Post("/chat", apiHandler.ChatHandler)
		r.Get("/analytics", apiHandler.AnalyticsHandler)

		r.Get("/keys", apiHandler.ListAPIKeysHandler)
		r.Post("/keys", apiHandler.CreateAPIKeyHandler)
		r.Delete("/keys/{keyID}", apiHandler.DeleteAPIKeyHandler)
	})

	return r
}

// RequestLogger logs one line per request through zap.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				}
				if ww.Status() >= http.StatusInternalServerError {
					logger.Warn("request failed", fields...)
					return
				}
				logger.Debug("request served", fields...)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
