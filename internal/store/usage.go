package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// API key methods

func (s *SQLiteStore) CreateAPIKey(ctx context.Context, k *APIKey) error {
	k.ID = uuid.NewString()
	k.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_prefix, last_four, key_hash, project_id, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.UserID, k.Name, k.KeyPrefix, k.LastFour, k.KeyHash, k.ProjectID, k.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert api key: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAPIKeys(ctx context.Context, userID string) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, key_prefix, last_four, key_hash, project_id, created_at
         FROM api_keys WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys: %w", err)
	}
	defer rows.Close()

	keys := []APIKey{}
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.LastFour, &k.KeyHash, &k.ProjectID, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan api key row: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetAPIKeyByHash resolves a presented secret, by its hash, to its key.
func (s *SQLiteStore) GetAPIKeyByHash(ctx context.Context, hash string) (*APIKey, error) {
	var k APIKey
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, key_prefix, last_four, key_hash, project_id, created_at
         FROM api_keys WHERE key_hash = ?`, hash).
		Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.LastFour, &k.KeyHash, &k.ProjectID, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return &k, nil
}

func (s *SQLiteStore) DeleteAPIKey(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM api_keys WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	return expectAffected(res)
}

// Usage methods

func (s *SQLiteStore) RecordUsage(ctx context.Context, e UsageEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO usage_events (user_id, project_id, kind, created_at) VALUES (?, ?, ?, ?)",
		e.UserID, e.ProjectID, e.Kind, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// UsageSince lists the usage events of userID at or after since, oldest first.
func (s *SQLiteStore) UsageSince(ctx context.Context, userID string, since time.Time) ([]UsageEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, project_id, kind, created_at FROM usage_events WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	var events []UsageEvent
	for rows.Next() {
		var e UsageEvent
		if err := rows.Scan(&e.UserID, &e.ProjectID, &e.Kind, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		if e.CreatedAt.Before(since) {
			continue
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Counts is the account summary shown on the analytics page.
type Counts struct {
	Projects         int
	DeployedProjects int
	Documents        int
}

func (s *SQLiteStore) CountResources(ctx context.Context, userID string) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT
            (SELECT COUNT(*) FROM projects WHERE user_id = ?),
            (SELECT COUNT(*) FROM projects WHERE user_id = ? AND status = 'deployed'),
            (SELECT COUNT(*) FROM data_sources WHERE user_id = ?)`,
		userID, userID, userID).Scan(&c.Projects, &c.DeployedProjects, &c.Documents)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count resources: %w", err)
	}
	return c, nil
}
