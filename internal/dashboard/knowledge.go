package dashboard

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"gwi.com/botstudio/internal/apiclient"
	"gwi.com/botstudio/internal/models"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEText = "text/plain"
)

var uploadTypes = map[string]string{
	".pdf":  MIMEPDF,
	".docx": MIMEDOCX,
	".txt":  MIMEText,
}

// DetectFileType maps a file name to one of the accepted upload types.
func DetectFileType(name string) (string, error) {
	mimeType, ok := uploadTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Base(name))
	}
	return mimeType, nil
}

// ListDataSources refreshes the knowledge base from the backend.
func (s *Service) ListDataSources(ctx context.Context) ([]models.DataSource, error) {
	since := s.store.DataSources.Snapshot()
	sources, err := s.api.GetDataSources(ctx)
	if err != nil {
		return nil, s.fail("Failed to load data sources", err)
	}
	s.store.DataSources.Merge(sources, since)
	return s.store.DataSources.List(), nil
}

// UploadPath uploads the file at path.
func (s *Service) UploadPath(ctx context.Context, path string) (*models.DataSource, error) {
	name := filepath.Base(path)
	if _, err := DetectFileType(name); err != nil {
		return nil, s.fail("", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, s.fail("Upload failed for "+name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, s.fail("Upload failed for "+name, err)
	}
	return s.Upload(ctx, name, info.Size(), f)
}

// Upload shows a processing placeholder right away, sends the file, and then
// swaps the placeholder for the backend's record. The placeholder is removed
// if the upload fails.
func (s *Service) Upload(ctx context.Context, name string, size int64, content io.Reader) (*models.DataSource, error) {
	mimeType, err := DetectFileType(name)
	if err != nil {
		return nil, s.fail("", err)
	}

	now := time.Now()
	tempID := fmt.Sprintf("uploading_%d_%s", now.UnixNano(), name)
	s.store.DataSources.BeginCreate(models.DataSource{
		ID:         tempID,
		Name:       name,
		Format:     mimeType,
		Size:       size,
		Status:     models.DocumentProcessing,
		UploadedAt: now,
	})

	resp, err := s.api.UploadFile(ctx, apiclient.FormFile{
		Field:       "file",
		Name:        name,
		ContentType: mimeType,
		Content:     content,
	})
	if err != nil {
		s.store.DataSources.RollbackCreate(tempID)
		return nil, s.fail("Upload failed for "+name, err)
	}

	doc := resp.Document
	s.store.DataSources.CommitCreate(tempID, doc)
	s.logger.Debug("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("status", string(doc.Status)))
	s.info(name + " uploaded and is now being processed...")
	return &doc, nil
}

func (s *Service) DeleteDataSource(ctx context.Context, id string) error {
	s.store.DataSources.BeginDelete(id)
	if err := s.api.DeleteDataSource(ctx, id); err != nil {
		s.store.DataSources.RollbackDelete(id)
		return s.fail("Failed to delete data source", err)
	}
	s.store.DataSources.CommitDelete(id)
	s.success("Data source deleted.")
	return nil
}

// ReadySources lists the documents that can be chatted with.
func (s *Service) ReadySources() []models.DataSource {
	var out []models.DataSource
	for _, ds := range s.store.DataSources.List() {
		if ds.Status == models.DocumentReady {
			out = append(out, ds)
		}
	}
	return out
}
