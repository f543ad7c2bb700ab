// Package dashboard implements the console operations on top of the API
// client and the session store. Every operation reports its outcome as a
// session notification and also returns the error to the caller.
package dashboard

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gwi.com/botstudio/internal/apiclient"
	"gwi.com/botstudio/internal/models"
	"gwi.com/botstudio/internal/session"
)

var (
	ErrNameRequired        = errors.New("project name is required")
	ErrUnsupportedFileType = errors.New("file type not supported")
	ErrEmptyQuestion       = errors.New("question is empty")
	ErrNoDocumentsSelected = errors.New("please select at least one Knowledge Base source to chat with")
	ErrInvalidRange        = errors.New("invalid analytics range")
	ErrUnknownTemplate     = errors.New("unknown conversation template")
)

// API is the subset of the backend client the dashboard calls.
type API interface {
	GetProjects(ctx context.Context) ([]models.Project, error)
	CreateProject(ctx context.Context, in models.ProjectInput) (*models.Project, error)
	UpdateProject(ctx context.Context, id string, in models.ProjectInput) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error

	GetDataSources(ctx context.Context) ([]models.DataSource, error)
	UploadFile(ctx context.Context, file apiclient.FormFile) (*models.UploadResponse, error)
	DeleteDataSource(ctx context.Context, id string) error

	SendChat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)

	GetAPIKeys(ctx context.Context) ([]models.APIKey, error)
	GenerateAPIKey(ctx context.Context, req models.APIKeyRequest) (*models.GeneratedAPIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error

	GetProfile(ctx context.Context) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.UserProfile, error)

	GetAnalytics(ctx context.Context, rng string) (*models.Analytics, error)
}

type Service struct {
	api       API
	store     *session.Store
	publicURL string
	logger    *zap.Logger
}

func NewService(api API, store *session.Store, publicURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:       api,
		store:     store,
		publicURL: publicURL,
		logger:    logger.Named("dashboard"),
	}
}

func (s *Service) Store() *session.Store { return s.store }

func (s *Service) success(msg string) {
	s.store.Notify(models.NotifySuccess, msg)
}

func (s *Service) info(msg string) {
	s.store.Notify(models.NotifyInfo, msg)
}

// fail records err as an error toast prefixed by what was attempted and
// hands it back unchanged.
func (s *Service) fail(prefix string, err error) error {
	msg := err.Error()
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	s.store.Notify(models.NotifyError, msg)
	return err
}
