package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gwi.com/botstudio/internal/models"
)

const (
	historyLimit    = 6
	chatErrorAnswer = "Sorry, I ran into an error. Please try again."
)

var ErrChatInFlight = errors.New("a message is already being answered")

// Playground is a chat session against the knowledge base. Messages live in
// the session store and are never persisted.
type Playground struct {
	svc *Service

	mu           sync.Mutex
	selected     []string
	systemPrompt string
	projectID    string
	sending      bool
}

func (s *Service) NewPlayground() *Playground {
	return &Playground{svc: s}
}

// Select replaces the set of documents the next question is answered from.
// Ids are RAG document ids as listed on ready data sources.
func (p *Playground) Select(ids ...string) {
	p.mu.Lock()
	p.selected = append([]string(nil), ids...)
	p.mu.Unlock()
}

// Selected returns the selection restricted to documents that are still ready.
func (p *Playground) Selected() []string {
	ready := make(map[string]struct{})
	for _, ds := range p.svc.ReadySources() {
		ready[ragID(ds)] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.selected[:0:0]
	for _, id := range p.selected {
		if _, ok := ready[id]; ok {
			kept = append(kept, id)
		}
	}
	p.selected = kept
	return append([]string(nil), kept...)
}

func (p *Playground) SetSystemPrompt(prompt string) {
	p.mu.Lock()
	p.systemPrompt = prompt
	p.mu.Unlock()
}

func (p *Playground) SystemPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.systemPrompt
}

// SetProject attributes chat calls to a project for usage accounting.
func (p *Playground) SetProject(id string) {
	p.mu.Lock()
	p.projectID = id
	p.mu.Unlock()
}

func (p *Playground) Messages() []models.ChatMessage {
	return p.svc.store.Messages.List()
}

// Send asks question against the selected documents. On failure an
// assistant error message is appended to the conversation and the error is
// returned.
func (p *Playground) Send(ctx context.Context, question string) (*models.ChatMessage, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	docs := p.Selected()
	if len(docs) == 0 {
		return nil, p.svc.fail("", ErrNoDocumentsSelected)
	}

	p.mu.Lock()
	if p.sending {
		p.mu.Unlock()
		return nil, ErrChatInFlight
	}
	p.sending = true
	systemPrompt, projectID := p.systemPrompt, p.projectID
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.sending = false
		p.mu.Unlock()
	}()

	messages := p.svc.store.Messages
	prior := messages.List()
	messages.Append(newMessage(models.MessageUser, question))

	req := models.ChatRequest{
		Question:     question,
		DocumentIDs:  docs,
		SystemPrompt: systemPrompt,
		History:      history(prior),
		ProjectID:    projectID,
	}
	resp, err := p.svc.api.SendChat(ctx, req)
	if err != nil {
		messages.Append(newMessage(models.MessageAssistant, chatErrorAnswer))
		return nil, p.svc.fail("Error from AI", err)
	}

	answer := newMessage(models.MessageAssistant, resp.Answer)
	messages.Append(answer)
	return &answer, nil
}

// Clear drops the conversation.
func (p *Playground) Clear() {
	p.svc.store.Messages.Reset()
	p.svc.success("Conversation cleared")
}

// ApplyTemplate installs the template's system prompt and starts over.
func (p *Playground) ApplyTemplate(key string) (Template, error) {
	t, ok := FindTemplate(key)
	if !ok {
		return Template{}, p.svc.fail("", ErrUnknownTemplate)
	}
	p.SetSystemPrompt(t.SystemPrompt)
	p.Clear()
	p.svc.success(`Applied "` + t.Name + `" template`)
	return t, nil
}

func history(prior []models.ChatMessage) []models.HistoryEntry {
	if len(prior) > historyLimit {
		prior = prior[len(prior)-historyLimit:]
	}
	out := make([]models.HistoryEntry, 0, len(prior))
	for _, m := range prior {
		out = append(out, models.HistoryEntry{Type: m.Type, Content: m.Content})
	}
	return out
}

func newMessage(typ models.MessageType, content string) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.NewString(),
		Type:      typ,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func ragID(ds models.DataSource) string {
	if ds.RAGDocumentID != "" {
		return ds.RAGDocumentID
	}
	return ds.ID
}
