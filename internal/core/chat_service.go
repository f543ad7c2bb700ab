package core

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"gwi.com/botstudio/internal/store"
)

const UsageKindChat = "chat"

var ErrEmptyQuestion = errors.New("question is required")

// ChatStore is what the chat endpoint needs from persistence.
type ChatStore interface {
	ChunkSource
	GetProject(ctx context.Context, userID, id string) (*store.Project, error)
	IncrementProjectCalls(ctx context.Context, userID, id string) error
	RecordUsage(ctx context.Context, e store.UsageEvent) error
}

type ChatRequest struct {
	UserID       string
	Question     string
	DocumentIDs  []string
	SystemPrompt string
	History      []Turn
	ProjectID    string
}

type ChatService struct {
	store  ChatStore
	rag    *RAGService
	logger *zap.Logger
}

func NewChatService(st ChatStore, rag *RAGService, logger *zap.Logger) *ChatService {
	return &ChatService{
		store:  st,
		rag:    rag,
		logger: logger.Named("chat"),
	}
}

// Ask answers a playground or deployed-project question. A successful answer
// is recorded as one API call, attributed to the project when one is given.
func (s *ChatService) Ask(ctx context.Context, req ChatRequest) (string, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if len(req.DocumentIDs) == 0 {
		return "", ErrNoDocuments
	}

	q := Question{
		UserID:       req.UserID,
		Text:         question,
		DocumentIDs:  req.DocumentIDs,
		SystemPrompt: req.SystemPrompt,
		History:      req.History,
	}
	if req.ProjectID != "" {
		project, err := s.store.GetProject(ctx, req.UserID, req.ProjectID)
		if err != nil {
			return "", err
		}
		if q.SystemPrompt == "" {
			q.SystemPrompt = project.SystemPrompt
		}
		temperature := float32(project.Temperature)
		q.Temperature = &temperature
	}

	answer, err := s.rag.Answer(ctx, q)
	if err != nil {
		return "", err
	}

	if err := s.store.RecordUsage(ctx, store.UsageEvent{
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Kind:      UsageKindChat,
	}); err != nil {
		s.logger.Warn("failed to record usage", zap.Error(err))
	}
	if req.ProjectID != "" {
		if err := s.store.IncrementProjectCalls(ctx, req.UserID, req.ProjectID); err != nil {
			s.logger.Warn("failed to count project call", zap.String("project_id", req.ProjectID), zap.Error(err))
		}
	}
	return answer, nil
}

// History converts the wire history into RAG turns, keeping the most recent
// limit entries.
func History(entries []Turn, limit int) []Turn {
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]Turn, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Content) == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}
