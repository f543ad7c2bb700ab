package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gwi.com/botstudio/internal/store"
	"gwi.com/botstudio/internal/utils"
)

const uploadField = "file"

type uploadResponse struct {
	Message  string            `json:"message"`
	Document *store.DataSource `json:"document"`
}

func (h *APIHandler) ListDataSourcesHandler(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.ListDataSources(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "Failed to list data sources")
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart body: "+err.Error())
		return
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	// The extension wins over the declared content type.
	format, ok := utils.DocumentFormat(header.Filename)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unsupported file type. Please upload PDF, DOCX, TXT or MD files")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, err, "Failed to read upload")
		return
	}

	doc := &store.DataSource{
		UserID: userIDFrom(r.Context()),
		Name:   filepath.Base(header.Filename),
		Format: format,
		Size:   int64(len(content)),
		Status: store.DocumentProcessing,
	}
	if err := h.store.CreateDataSource(r.Context(), doc); err != nil {
		h.fail(w, r, err, "Failed to store upload")
		return
	}
	h.logger.Info("document uploaded",
		zap.String("document_id", doc.ID), zap.String("name", doc.Name), zap.Int64("size", doc.Size))

	h.ingestor.Submit(*doc, content)
	writeJSON(w, http.StatusCreated, uploadResponse{
		Message:  "File uploaded successfully and is being processed",
		Document: doc,
	})
}

func (h *APIHandler) DeleteDataSourceHandler(w http.ResponseWriter, r *http.Request) {
	err := h.store.DeleteDataSource(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "documentID"))
	if err != nil {
		h.fail(w, r, err, "Failed to delete data source")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
