package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dataSourceColumns = "id, user_id, name, format, size, status, error, uploaded_at"

func scanDataSource(row rowScanner) (*DataSource, error) {
	var d DataSource
	if err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Format, &d.Size, &d.Status, &d.Error, &d.UploadedAt); err != nil {
		return nil, err
	}
	d.RAGDocumentID = d.ID
	return &d, nil
}

func (s *SQLiteStore) CreateDataSource(ctx context.Context, d *DataSource) error {
	d.ID = uuid.NewString()
	d.RAGDocumentID = d.ID
	d.UploadedAt = now()
	if d.Status == "" {
		d.Status = DocumentProcessing
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO data_sources ("+dataSourceColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		d.ID, d.UserID, d.Name, d.Format, d.Size, d.Status, d.Error, d.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert data source: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDataSources(ctx context.Context, userID string) ([]DataSource, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+dataSourceColumns+" FROM data_sources WHERE user_id = ? ORDER BY uploaded_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query data sources: %w", err)
	}
	defer rows.Close()

	sources := []DataSource{}
	for rows.Next() {
		d, err := scanDataSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data source row: %w", err)
		}
		sources = append(sources, *d)
	}
	return sources, rows.Err()
}

func (s *SQLiteStore) GetDataSource(ctx context.Context, userID, id string) (*DataSource, error) {
	d, err := scanDataSource(s.db.QueryRowContext(ctx,
		"SELECT "+dataSourceColumns+" FROM data_sources WHERE id = ? AND user_id = ?", id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get data source: %w", err)
	}
	return d, nil
}

// SetDataSourceStatus records the outcome of document processing. A data
// source deleted in the meantime yields ErrNotFound.
func (s *SQLiteStore) SetDataSourceStatus(ctx context.Context, id, status, reason string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE data_sources SET status = ?, error = ? WHERE id = ?", status, reason, id)
	if err != nil {
		return fmt.Errorf("failed to update data source status: %w", err)
	}
	return expectAffected(res)
}

// DeleteDataSource removes the data source and, through the foreign key, its chunks.
func (s *SQLiteStore) DeleteDataSource(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM data_sources WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete data source: %w", err)
	}
	return expectAffected(res)
}

func (s *SQLiteStore) dataSourceNames(ctx context.Context, userID string, ids []string) (map[string]string, error) {
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name FROM data_sources WHERE user_id = ? AND id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query data source names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string, len(ids))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan data source name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// ReplaceChunks stores the chunks of a document, dropping any earlier ones.
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, documentID string, chunks []DocumentChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin chunk transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO document_chunks (document_id, ordinal, content, embedding_json) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		c.DocumentID = documentID
		var embedding sql.NullString
		if len(c.Embedding) > 0 {
			b, err := json.Marshal(c.Embedding)
			if err != nil {
				return fmt.Errorf("failed to marshal embedding: %w", err)
			}
			embedding = sql.NullString{String: string(b), Valid: true}
		}
		res, err := stmt.ExecContext(ctx, documentID, c.Ordinal, c.Content, embedding)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
		c.ID, _ = res.LastInsertId()
	}
	return tx.Commit()
}

// ListChunks returns the chunks of the given documents owned by userID.
func (s *SQLiteStore) ListChunks(ctx context.Context, userID string, documentIDs []string) ([]DocumentChunk, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(documentIDs)+1)
	args = append(args, userID)
	for _, id := range documentIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.ordinal, c.content, c.embedding_json
         FROM document_chunks c JOIN data_sources d ON d.id = c.document_id
         WHERE d.user_id = ? AND d.status = 'ready' AND c.document_id IN (`+placeholders(len(documentIDs))+`)
         ORDER BY c.document_id, c.ordinal`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []DocumentChunk
	for rows.Next() {
		var (
			c         DocumentChunk
			embedding sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Content, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if embedding.Valid && embedding.String != "" {
			if err := json.Unmarshal([]byte(embedding.String), &c.Embedding); err != nil {
				s.logger.Warn("failed to unmarshal chunk embedding, ignoring it",
					zap.Int64("chunk_id", c.ID), zap.Error(err))
				c.Embedding = nil
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
