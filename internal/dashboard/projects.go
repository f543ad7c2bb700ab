package dashboard

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"gwi.com/botstudio/internal/models"
)

const DefaultModel = "gpt-4o"

// ListProjects refreshes the project collection from the backend.
func (s *Service) ListProjects(ctx context.Context) ([]models.Project, error) {
	since := s.store.Projects.Snapshot()
	projects, err := s.api.GetProjects(ctx)
	if err != nil {
		return nil, s.fail("Failed to load projects", err)
	}
	s.store.Projects.Merge(projects, since)
	return s.store.Projects.List(), nil
}

func (s *Service) CreateProject(ctx context.Context, in models.ProjectInput) (*models.Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, s.fail("", ErrNameRequired)
	}
	if in.Model == "" {
		in.Model = DefaultModel
	}

	project, err := s.api.CreateProject(ctx, in)
	if err != nil {
		return nil, s.fail("Failed to create project", err)
	}
	s.store.Projects.Upsert(*project)
	s.success("Project created successfully!")
	return project, nil
}

func (s *Service) UpdateProject(ctx context.Context, id string, in models.ProjectInput) (*models.Project, error) {
	project, err := s.api.UpdateProject(ctx, id, in)
	if err != nil {
		return nil, s.fail("Failed to update project", err)
	}
	s.store.Projects.Upsert(*project)
	s.success("Project updated successfully!")
	return project, nil
}

func (s *Service) DeployProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.api.UpdateProject(ctx, id, models.ProjectInput{Status: models.ProjectDeployed})
	if err != nil {
		return nil, s.fail("Failed to deploy project", err)
	}
	s.store.Projects.Upsert(*project)
	s.success("Project deployed successfully!")
	return project, nil
}

// DeleteProject removes the project from the store before the call and puts
// it back if the backend refuses.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	s.store.Projects.BeginDelete(id)
	if err := s.api.DeleteProject(ctx, id); err != nil {
		s.store.Projects.RollbackDelete(id)
		return s.fail("Failed to delete project", err)
	}
	s.store.Projects.CommitDelete(id)
	s.logger.Debug("project deleted", zap.String("project_id", id))
	s.success("Project deleted")
	return nil
}

// ProjectEndpoint is the public chat URL integrators call for a project.
func (s *Service) ProjectEndpoint(id string) string {
	return strings.TrimRight(s.publicURL, "/") + "/v1/projects/" + url.PathEscape(id) + "/chat"
}
