package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const projectColumns = `id, user_id, name, description, model, temperature, system_prompt,
    document_ids, status, version, api_calls, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, []string, error) {
	var (
		p      Project
		docIDs string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Model, &p.Temperature, &p.SystemPrompt,
		&docIDs, &p.Status, &p.Version, &p.APICalls, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(docIDs), &ids); err != nil {
		return nil, nil, fmt.Errorf("failed to decode document ids of project %s: %w", p.ID, err)
	}
	return &p, ids, nil
}

// resolveDocuments fills the document references of p from ids, skipping
// data sources that no longer exist.
func (s *SQLiteStore) resolveDocuments(ctx context.Context, p *Project, ids []string) error {
	p.Documents = []DocumentRef{}
	if len(ids) == 0 {
		return nil
	}
	names, err := s.dataSourceNames(ctx, p.UserID, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if name, ok := names[id]; ok {
			p.Documents = append(p.Documents, DocumentRef{ID: id, Name: name})
		}
	}
	return nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}

	type loaded struct {
		p   *Project
		ids []string
	}
	var all []loaded
	for rows.Next() {
		p, ids, err := scanProject(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		all = append(all, loaded{p, ids})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	rows.Close()

	projects := make([]Project, 0, len(all))
	for _, l := range all {
		if err := s.resolveDocuments(ctx, l.p, l.ids); err != nil {
			return nil, err
		}
		projects = append(projects, *l.p)
	}
	return projects, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, userID, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = ? AND user_id = ?", id, userID)
	p, ids, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if err := s.resolveDocuments(ctx, p, ids); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project) error {
	p.ID = uuid.NewString()
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	if p.Status == "" {
		p.Status = "development"
	}
	if p.Version == "" {
		p.Version = "1.0.0"
	}

	docIDs, err := encodeDocumentIDs(p.Documents)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.Description, p.Model, p.Temperature, p.SystemPrompt,
		docIDs, p.Status, p.Version, p.APICalls, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *Project) error {
	p.UpdatedAt = now()
	docIDs, err := encodeDocumentIDs(p.Documents)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, model = ?, temperature = ?, system_prompt = ?,
            document_ids = ?, status = ?, version = ?, updated_at = ?
         WHERE id = ? AND user_id = ?`,
		p.Name, p.Description, p.Model, p.Temperature, p.SystemPrompt,
		docIDs, p.Status, p.Version, p.UpdatedAt, p.ID, p.UserID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return expectAffected(res)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return expectAffected(res)
}

// IncrementProjectCalls bumps the call counter of a project owned by userID.
func (s *SQLiteStore) IncrementProjectCalls(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET api_calls = api_calls + 1 WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to increment project calls: %w", err)
	}
	return expectAffected(res)
}

func encodeDocumentIDs(docs []DocumentRef) (string, error) {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("failed to encode document ids: %w", err)
	}
	return string(b), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
