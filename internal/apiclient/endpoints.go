package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"gwi.com/botstudio/internal/models"
)

const DefaultAnalyticsRange = "7d"

// Auth

func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.call(ctx, http.MethodPost, "/auth/login", creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Signup(ctx context.Context, form models.SignupForm) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.call(ctx, http.MethodPost, "/auth/signup", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile

func (c *Client) GetProfile(ctx context.Context) (*models.UserProfile, error) {
	var out models.UserProfile
	if err := c.call(ctx, http.MethodGet, "/users/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.UserProfile, error) {
	var out models.UserProfile
	if err := c.call(ctx, http.MethodPut, "/users/profile", update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Projects

func (c *Client) GetProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := c.call(ctx, http.MethodGet, "/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateProject(ctx context.Context, in models.ProjectInput) (*models.Project, error) {
	var out models.Project
	if err := c.call(ctx, http.MethodPost, "/projects", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProject(ctx context.Context, id string, in models.ProjectInput) (*models.Project, error) {
	var out models.Project
	if err := c.call(ctx, http.MethodPut, "/projects/"+url.PathEscape(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/projects/"+url.PathEscape(id), nil, nil)
}

// Knowledge base

func (c *Client) GetDataSources(ctx context.Context) ([]models.DataSource, error) {
	var out []models.DataSource
	if err := c.call(ctx, http.MethodGet, "/data", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadFile posts file under the multipart field "file".
func (c *Client) UploadFile(ctx context.Context, file FormFile) (*models.UploadResponse, error) {
	if file.Field == "" {
		file.Field = "file"
	}
	var out models.UploadResponse
	form := &FormData{Files: []FormFile{file}}
	if err := c.call(ctx, http.MethodPost, "/data/upload", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDataSource(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/data/"+url.PathEscape(id), nil, nil)
}

// Chat

func (c *Client) SendChat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	var out models.ChatResponse
	if err := c.call(ctx, http.MethodPost, "/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analytics

func (c *Client) GetAnalytics(ctx context.Context, rng string) (*models.Analytics, error) {
	if rng == "" {
		rng = DefaultAnalyticsRange
	}
	var out models.Analytics
	if err := c.call(ctx, http.MethodGet, "/analytics?range="+url.QueryEscape(rng), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// API keys

func (c *Client) GetAPIKeys(ctx context.Context) ([]models.APIKey, error) {
	var out []models.APIKey
	if err := c.call(ctx, http.MethodGet, "/keys", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateAPIKey returns the full secret. It cannot be fetched again.
func (c *Client) GenerateAPIKey(ctx context.Context, req models.APIKeyRequest) (*models.GeneratedAPIKey, error) {
	var out models.GeneratedAPIKey
	if err := c.call(ctx, http.MethodPost, "/keys", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAPIKey(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/keys/"+url.PathEscape(id), nil, nil)
}

// Health reports whether the backend answers its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}
