package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"

	"gwi.com/botstudio/internal/store"
	"gwi.com/botstudio/internal/utils"
)

const (
	NumRelevantChunks   = 3   // Number of chunks to retrieve for context
	SimilarityThreshold = 0.7 // Minimum cosine similarity for an embedded chunk
)

var ErrNoDocuments = errors.New("at least one document is required")

// ChunkSource lists the searchable chunks of a user's documents.
type ChunkSource interface {
	ListChunks(ctx context.Context, userID string, documentIDs []string) ([]store.DocumentChunk, error)
}

type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

type Question struct {
	UserID       string
	Text         string
	DocumentIDs  []string
	SystemPrompt string
	Temperature  *float32
	History      []Turn
}

// RAGService answers questions from the chunks of the selected documents.
// Without an embedder it ranks chunks lexically; without a completer it
// answers with the best matching passages.
type RAGService struct {
	chunks    ChunkSource
	embedder  Embedder
	completer Completer
	logger    *zap.Logger
}

func NewRAGService(chunks ChunkSource, embedder Embedder, completer Completer, logger *zap.Logger) *RAGService {
	return &RAGService{
		chunks:    chunks,
		embedder:  embedder,
		completer: completer,
		logger:    logger.Named("rag"),
	}
}

type ScoredChunk struct {
	Chunk store.DocumentChunk
	Score float32
}

// Retrieve returns up to NumRelevantChunks chunks of q.DocumentIDs ranked by
// relevance to q.Text.
func (s *RAGService) Retrieve(ctx context.Context, q Question) ([]ScoredChunk, error) {
	chunks, err := s.chunks.ListChunks(ctx, q.UserID, q.DocumentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	var queryEmbedding []float32
	if s.embedder != nil {
		queryEmbedding, err = s.embedder.GetEmbedding(ctx, q.Text)
		if err != nil {
			s.logger.Warn("failed to embed query, ranking lexically", zap.Error(err))
			queryEmbedding = nil
		}
	}

	scored := make([]ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if queryEmbedding != nil && len(chunk.Embedding) > 0 {
			sim, err := utils.CosineSimilarity(queryEmbedding, chunk.Embedding)
			if err != nil {
				s.logger.Debug("skipping chunk", zap.Int64("chunk_id", chunk.ID), zap.Error(err))
				continue
			}
			if sim >= SimilarityThreshold {
				scored = append(scored, ScoredChunk{Chunk: chunk, Score: sim})
			}
			continue
		}
		if score := utils.LexicalOverlap(q.Text, chunk.Content); score > 0 {
			scored = append(scored, ScoredChunk{Chunk: chunk, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > NumRelevantChunks {
		scored = scored[:NumRelevantChunks]
	}
	s.logger.Debug("retrieved chunks", zap.Int("candidates", len(chunks)), zap.Int("relevant", len(scored)))
	return scored, nil
}

const noContextAnswer = "I couldn't find anything about that in the selected documents."

// Answer responds to q using the selected documents.
func (s *RAGService) Answer(ctx context.Context, q Question) (string, error) {
	if len(q.DocumentIDs) == 0 {
		return "", ErrNoDocuments
	}
	relevant, err := s.Retrieve(ctx, q)
	if err != nil {
		return "", err
	}

	var contextBuilder strings.Builder
	for _, sc := range relevant {
		contextBuilder.WriteString(sc.Chunk.Content)
		contextBuilder.WriteString("\n\n") // Separate chunks clearly
	}
	relevantContext := strings.TrimSpace(contextBuilder.String())

	if s.completer == nil {
		if relevantContext == "" {
			return noContextAnswer, nil
		}
		return "Based on the selected documents:\n\n" + relevantContext, nil
	}

	var history []*genai.Content
	for _, turn := range q.History {
		role := "user"
		if turn.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}

	var finalUserContent string
	if relevantContext != "" {
		finalUserContent = fmt.Sprintf("Based on our previous conversation and the following context from the selected documents:\n\n--- CONTEXT START ---\n%s\n--- CONTEXT END ---\n\nNow, please answer my question: %s", relevantContext, q.Text)
	} else {
		finalUserContent = fmt.Sprintf("Based on our previous conversation (if any), and noting that nothing relevant was found in the selected documents, please answer: %s", q.Text)
	}
	history = append(history, &genai.Content{
		Role:  "user",
		Parts: []genai.Part{genai.Text(finalUserContent)},
	})

	answer, err := s.completer.GetChatCompletion(ctx, q.SystemPrompt, q.Temperature, history)
	if err != nil {
		return "", fmt.Errorf("failed to get LLM completion: %w", err)
	}
	return answer, nil
}
