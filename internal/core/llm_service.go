package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	defaultChatModelName      = "gemini-1.5-flash-latest"
	defaultEmbeddingModelName = "text-embedding-004"

	defaultSystemInstruction = "You are a helpful assistant for the user's knowledge base. Answer questions based on the provided document context. " +
		"If the answer is not found in the provided context, clearly state that you don't have the information. " +
		"Do not make up information."
)

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Completer answers the last user turn of a conversation.
type Completer interface {
	GetChatCompletion(ctx context.Context, systemInstruction string, temperature *float32, history []*genai.Content) (string, error)
}

type LLMService struct {
	client *genai.Client
	logger *zap.Logger
}

func NewLLMService(ctx context.Context, apiKey string, logger *zap.Logger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &LLMService{
		client: client,
		logger: logger.Named("llm"),
	}, nil
}

func (s *LLMService) Close() {
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		s.logger.Warn("error closing GenAI client", zap.Error(err))
		return
	}
	s.logger.Info("GenAI client closed")
}

func (s *LLMService) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(defaultEmbeddingModelName)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (s *LLMService) GetChatCompletion(ctx context.Context, systemInstruction string, temperature *float32, history []*genai.Content) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("prompt history is empty for chat completion")
	}
	last := history[len(history)-1]
	if last.Role != "user" {
		return "", fmt.Errorf("last message in history is not from 'user', cannot proceed with chat completion")
	}

	if systemInstruction == "" {
		systemInstruction = defaultSystemInstruction
	}
	model := s.client.GenerativeModel(defaultChatModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	if temperature != nil {
		model.SetTemperature(*temperature)
	}

	chatSession := model.StartChat()
	chatSession.History = history[:len(history)-1]

	resp, err := chatSession.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		s.logger.Warn("gemini response was empty or had no valid candidates")
		return "I'm sorry, I couldn't generate a response at this time. Please try again.", nil
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.logger.Debug("gemini response part was not text", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}

	if responseText.Len() == 0 {
		return "I received an empty or non-text response, please try rephrasing your question.", nil
	}
	return responseText.String(), nil
}
