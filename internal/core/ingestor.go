package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"gwi.com/botstudio/internal/store"
	"gwi.com/botstudio/internal/utils"
)

const (
	ChunkSize    = 800
	ChunkOverlap = 100

	// Delay between embedding requests to stay under the Gemini rate limit (1500/min).
	EmbedInterval = 40 * time.Millisecond
)

// DocumentWriter is the part of the store document processing writes to.
type DocumentWriter interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []store.DocumentChunk) error
	SetDataSourceStatus(ctx context.Context, id, status, reason string) error
}

// Ingestor turns uploaded files into searchable chunks in the background.
// A data source stays "processing" until its job ends in "ready" or "error".
type Ingestor struct {
	store    DocumentWriter
	embedder Embedder
	delay    time.Duration
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewIngestor returns an ingestor. embedder may be nil, in which case chunks
// are stored without embeddings. delay holds every job back before it starts.
func NewIngestor(st DocumentWriter, embedder Embedder, delay time.Duration, logger *zap.Logger) *Ingestor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Ingestor{
		store:    st,
		embedder: embedder,
		delay:    delay,
		logger:   logger.Named("ingestor"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit schedules processing of doc, whose file content is content.
func (in *Ingestor) Submit(doc store.DataSource, content []byte) {
	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		in.process(doc, content)
	}()
}

// Wait blocks until every submitted job has finished.
func (in *Ingestor) Wait() {
	in.wg.Wait()
}

// Close abandons pending jobs and waits for running ones to return.
func (in *Ingestor) Close() {
	in.cancel()
	in.wg.Wait()
}

func (in *Ingestor) process(doc store.DataSource, content []byte) {
	log := in.logger.With(zap.String("document_id", doc.ID), zap.String("name", doc.Name))

	if in.delay > 0 {
		select {
		case <-time.After(in.delay):
		case <-in.ctx.Done():
			return
		}
	}

	chunks, err := in.buildChunks(doc, content)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Warn("document processing failed", zap.Error(err))
		in.finish(log, doc.ID, store.DocumentError, err.Error())
		return
	}

	if err := in.store.ReplaceChunks(in.ctx, doc.ID, chunks); err != nil {
		log.Error("failed to store document chunks", zap.Error(err))
		in.finish(log, doc.ID, store.DocumentError, "failed to store document")
		return
	}
	log.Info("document processed", zap.Int("chunks", len(chunks)))
	in.finish(log, doc.ID, store.DocumentReady, "")
}

func (in *Ingestor) buildChunks(doc store.DataSource, content []byte) ([]store.DocumentChunk, error) {
	text, err := utils.ExtractText(doc.Name, doc.Format, content)
	if err != nil {
		return nil, err
	}
	pieces := utils.ChunkText(text, ChunkSize, ChunkOverlap)
	if len(pieces) == 0 {
		return nil, utils.ErrNoText
	}

	chunks := make([]store.DocumentChunk, 0, len(pieces))
	var ticker *time.Ticker
	if in.embedder != nil {
		ticker = time.NewTicker(EmbedInterval)
		defer ticker.Stop()
	}
	for i, piece := range pieces {
		chunk := store.DocumentChunk{Ordinal: i, Content: piece}
		if in.embedder != nil {
			select {
			case <-ticker.C:
			case <-in.ctx.Done():
				return nil, in.ctx.Err()
			}
			embedding, err := in.embedder.GetEmbedding(in.ctx, piece)
			if err != nil {
				// The chunk stays searchable lexically.
				in.logger.Warn("failed to embed chunk, storing it without embedding",
					zap.String("document_id", doc.ID), zap.Int("ordinal", i), zap.Error(err))
			} else {
				chunk.Embedding = embedding
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func (in *Ingestor) finish(log *zap.Logger, id, status, reason string) {
	if err := in.store.SetDataSourceStatus(in.ctx, id, status, reason); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("document deleted while processing")
			return
		}
		log.Error("failed to update document status", zap.String("status", status), zap.Error(err))
	}
}
