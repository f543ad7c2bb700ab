package dashboard

import (
	"context"
	"fmt"

	"gwi.com/botstudio/internal/models"
)

// API keys

func (s *Service) ListAPIKeys(ctx context.Context) ([]models.APIKey, error) {
	since := s.store.APIKeys.Snapshot()
	keys, err := s.api.GetAPIKeys(ctx)
	if err != nil {
		return nil, s.fail("Failed to load API keys", err)
	}
	s.store.APIKeys.Merge(keys, since)
	return s.store.APIKeys.List(), nil
}

// GenerateAPIKey returns the full secret. It is the only time the secret is
// available; the store keeps the masked record.
func (s *Service) GenerateAPIKey(ctx context.Context, name, projectID string) (string, *models.APIKey, error) {
	if name == "" {
		name = "New API Key"
	}
	generated, err := s.api.GenerateAPIKey(ctx, models.APIKeyRequest{Name: name, ProjectID: projectID})
	if err != nil {
		return "", nil, s.fail("Failed to generate API key", err)
	}
	key := generated.APIKey
	s.store.APIKeys.Upsert(key)
	s.success("New API key generated!")
	return generated.Key, &key, nil
}

func (s *Service) DeleteAPIKey(ctx context.Context, id string) error {
	s.store.APIKeys.BeginDelete(id)
	if err := s.api.DeleteAPIKey(ctx, id); err != nil {
		s.store.APIKeys.RollbackDelete(id)
		return s.fail("Failed to revoke API key", err)
	}
	s.store.APIKeys.CommitDelete(id)
	s.success("API key revoked")
	return nil
}

// Profile

func (s *Service) Profile(ctx context.Context) (*models.UserProfile, error) {
	profile, err := s.api.GetProfile(ctx)
	if err != nil {
		return nil, s.fail("Failed to load profile", err)
	}
	if err := s.store.SetUser(*profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.UserProfile, error) {
	profile, err := s.api.UpdateProfile(ctx, update)
	if err != nil {
		return nil, s.fail("Failed to update profile", err)
	}
	if err := s.store.SetUser(*profile); err != nil {
		return nil, err
	}
	s.success("Profile updated successfully")
	return profile, nil
}

// Analytics

var AnalyticsRanges = []string{"24h", "7d", "30d", "90d"}

func (s *Service) Analytics(ctx context.Context, rng string) (*models.Analytics, error) {
	if !validRange(rng) {
		return nil, s.fail("", fmt.Errorf("%w %q", ErrInvalidRange, rng))
	}
	analytics, err := s.api.GetAnalytics(ctx, rng)
	if err != nil {
		return nil, s.fail("Failed to load analytics", err)
	}
	return analytics, nil
}

func validRange(rng string) bool {
	for _, r := range AnalyticsRanges {
		if r == rng {
			return true
		}
	}
	return false
}
