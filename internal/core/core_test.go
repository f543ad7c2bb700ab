package core

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gwi.com/botstudio/internal/store"
)

const refundPolicy = "Our refund policy: customers may return any product within 30 days for a full refund."

func newTestStore(t *testing.T) (*store.SQLiteStore, *store.User) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "core.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	u := &store.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "hash"}
	require.NoError(t, st.CreateUser(context.Background(), u))
	return st, u
}

// ingest stores content as a new document and processes it synchronously.
func ingest(t *testing.T, st *store.SQLiteStore, userID, name, content string, embedder Embedder) *store.DataSource {
	t.Helper()
	ctx := context.Background()
	doc := &store.DataSource{UserID: userID, Name: name, Format: "text/plain", Size: int64(len(content))}
	require.NoError(t, st.CreateDataSource(ctx, doc))

	in := NewIngestor(st, embedder, 0, zap.NewNop())
	in.Submit(*doc, []byte(content))
	in.Wait()

	got, err := st.GetDataSource(ctx, userID, doc.ID)
	require.NoError(t, err)
	return got
}

// wordEmbedder maps text onto two axes: refunds and shipping.
type wordEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *wordEmbedder) GetEmbedding(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	lower := strings.ToLower(text)
	vec := []float32{0, 0}
	if strings.Contains(lower, "refund") {
		vec[0] = 1
	}
	if strings.Contains(lower, "shipping") {
		vec[1] = 1
	}
	return vec, nil
}

type recordingCompleter struct {
	system      string
	temperature *float32
	history     []*genai.Content
	answer      string
	err         error
}

func (c *recordingCompleter) GetChatCompletion(_ context.Context, system string, temperature *float32, history []*genai.Content) (string, error) {
	c.system = system
	c.temperature = temperature
	c.history = history
	return c.answer, c.err
}

func TestIngestorMarksDocumentReady(t *testing.T) {
	st, u := newTestStore(t)
	doc := ingest(t, st, u.ID, "faq.txt", refundPolicy, nil)

	assert.Equal(t, store.DocumentReady, doc.Status)
	chunks, err := st.ListChunks(context.Background(), u.ID, []string{doc.ID})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, refundPolicy, chunks[0].Content)
	assert.Nil(t, chunks[0].Embedding)
}

func TestIngestorStoresEmbeddings(t *testing.T) {
	st, u := newTestStore(t)
	embedder := &wordEmbedder{}
	doc := ingest(t, st, u.ID, "faq.txt", refundPolicy, embedder)

	require.Equal(t, store.DocumentReady, doc.Status)
	chunks, err := st.ListChunks(context.Background(), u.ID, []string{doc.ID})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []float32{1, 0}, chunks[0].Embedding)
	assert.Equal(t, 1, embedder.calls)
}

func TestIngestorMarksEmptyDocumentFailed(t *testing.T) {
	st, u := newTestStore(t)
	doc := ingest(t, st, u.ID, "blank.txt", "   \n  ", nil)

	assert.Equal(t, store.DocumentError, doc.Status)
	assert.NotEmpty(t, doc.Error)
}

func TestIngestorCloseAbandonsDelayedJobs(t *testing.T) {
	st, u := newTestStore(t)
	ctx := context.Background()
	doc := &store.DataSource{UserID: u.ID, Name: "faq.txt", Format: "text/plain"}
	require.NoError(t, st.CreateDataSource(ctx, doc))

	in := NewIngestor(st, nil, time.Hour, zap.NewNop())
	in.Submit(*doc, []byte(refundPolicy))
	in.Close()

	got, err := st.GetDataSource(ctx, u.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DocumentProcessing, got.Status)
}

func TestRAGExtractiveAnswerIsRestrictedToSelectedDocuments(t *testing.T) {
	st, u := newTestStore(t)
	faq := ingest(t, st, u.ID, "faq.txt", refundPolicy, nil)
	other := ingest(t, st, u.ID, "refunds-internal.txt", "Internal refund escalation contacts.", nil)

	rag := NewRAGService(st, nil, nil, zap.NewNop())
	answer, err := rag.Answer(context.Background(), Question{
		UserID:      u.ID,
		Text:        "What is the refund policy?",
		DocumentIDs: []string{faq.ID},
	})
	require.NoError(t, err)
	assert.Contains(t, answer, "30 days")
	assert.NotContains(t, answer, "escalation")

	answer, err = rag.Answer(context.Background(), Question{
		UserID:      u.ID,
		Text:        "Where is the office?",
		DocumentIDs: []string{faq.ID, other.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, noContextAnswer, answer)

	_, err = rag.Answer(context.Background(), Question{UserID: u.ID, Text: "refund?"})
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestRAGUsesEmbeddingsAndCompleter(t *testing.T) {
	st, u := newTestStore(t)
	embedder := &wordEmbedder{}
	refunds := ingest(t, st, u.ID, "faq.txt", refundPolicy, embedder)
	shipping := ingest(t, st, u.ID, "shipping.txt", "Shipping takes five business days.", embedder)

	completer := &recordingCompleter{answer: "You have 30 days."}
	rag := NewRAGService(st, embedder, completer, zap.NewNop())

	answer, err := rag.Answer(context.Background(), Question{
		UserID:       u.ID,
		Text:         "Can I get a refund?",
		DocumentIDs:  []string{refunds.ID, shipping.ID},
		SystemPrompt: "Be brief.",
		History: []Turn{
			{Role: "user", Content: "Hi"},
			{Role: "assistant", Content: "Hello!"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "You have 30 days.", answer)
	assert.Equal(t, "Be brief.", completer.system)

	require.Len(t, completer.history, 3)
	assert.Equal(t, "user", completer.history[0].Role)
	assert.Equal(t, "model", completer.history[1].Role)
	last := completer.history[2]
	assert.Equal(t, "user", last.Role)
	prompt := string(last.Parts[0].(genai.Text))
	assert.Contains(t, prompt, refundPolicy)
	assert.NotContains(t, prompt, "Shipping takes")
	assert.Contains(t, prompt, "Can I get a refund?")
}

func TestRAGFallsBackToLexicalWhenQueryEmbeddingFails(t *testing.T) {
	st, u := newTestStore(t)
	doc := ingest(t, st, u.ID, "faq.txt", refundPolicy, nil)

	rag := NewRAGService(st, &wordEmbedder{err: errors.New("quota")}, nil, zap.NewNop())
	scored, err := rag.Retrieve(context.Background(), Question{UserID: u.ID, Text: "refund policy", DocumentIDs: []string{doc.ID}})
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, doc.ID, scored[0].Chunk.DocumentID)
}

func TestChatServiceRecordsUsage(t *testing.T) {
	ctx := context.Background()
	st, u := newTestStore(t)
	doc := ingest(t, st, u.ID, "faq.txt", refundPolicy, nil)

	project := &store.Project{UserID: u.ID, Name: "Support", Temperature: 0.2, SystemPrompt: "You are support."}
	require.NoError(t, st.CreateProject(ctx, project))

	completer := &recordingCompleter{answer: "30 days."}
	chat := NewChatService(st, NewRAGService(st, nil, completer, zap.NewNop()), zap.NewNop())

	answer, err := chat.Ask(ctx, ChatRequest{
		UserID:      u.ID,
		Question:    "  refund window?  ",
		DocumentIDs: []string{doc.ID},
		ProjectID:   project.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "30 days.", answer)
	assert.Equal(t, "You are support.", completer.system)
	require.NotNil(t, completer.temperature)
	assert.InDelta(t, 0.2, *completer.temperature, 1e-6)

	got, err := st.GetProject(ctx, u.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.APICalls)

	_, err = chat.Ask(ctx, ChatRequest{UserID: u.ID, Question: "refund?", DocumentIDs: []string{doc.ID}})
	require.NoError(t, err)

	events, err := st.UsageSince(ctx, u.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, project.ID, events[0].ProjectID)
	assert.Empty(t, events[1].ProjectID)
}

func TestChatServiceValidation(t *testing.T) {
	ctx := context.Background()
	st, u := newTestStore(t)
	chat := NewChatService(st, NewRAGService(st, nil, nil, zap.NewNop()), zap.NewNop())

	_, err := chat.Ask(ctx, ChatRequest{UserID: u.ID, Question: "  ", DocumentIDs: []string{"d"}})
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = chat.Ask(ctx, ChatRequest{UserID: u.ID, Question: "hi"})
	assert.ErrorIs(t, err, ErrNoDocuments)

	_, err = chat.Ask(ctx, ChatRequest{UserID: u.ID, Question: "hi", DocumentIDs: []string{"d"}, ProjectID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	events, err := st.UsageSince(ctx, u.ID, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestHistoryKeepsRecentTurns(t *testing.T) {
	turns := []Turn{
		{Role: "user", Content: "1"},
		{Role: "assistant", Content: " "},
		{Role: "user", Content: "3"},
		{Role: "assistant", Content: "4"},
	}
	assert.Equal(t, []Turn{{Role: "user", Content: "3"}, {Role: "assistant", Content: "4"}}, History(turns, 3))
	assert.Len(t, History(turns, 0), 3)
}

type fakeAnalyticsStore struct {
	counts   store.Counts
	events   []store.UsageEvent
	projects []store.Project
	since    time.Time
}

func (f *fakeAnalyticsStore) CountResources(context.Context, string) (store.Counts, error) {
	return f.counts, nil
}

func (f *fakeAnalyticsStore) UsageSince(_ context.Context, _ string, since time.Time) ([]store.UsageEvent, error) {
	f.since = since
	var out []store.UsageEvent
	for _, e := range f.events {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAnalyticsStore) ListProjects(context.Context, string) ([]store.Project, error) {
	return f.projects, nil
}

func TestAnalyticsReport(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	st := &fakeAnalyticsStore{
		counts: store.Counts{Projects: 2, DeployedProjects: 1, Documents: 3},
		events: []store.UsageEvent{
			{ProjectID: "p1", CreatedAt: now.Add(-30 * time.Minute)},
			{ProjectID: "p1", CreatedAt: now.Add(-25 * time.Hour)},
			{CreatedAt: now.Add(-25 * time.Hour)},
			{ProjectID: "p2", CreatedAt: now.Add(-40 * 24 * time.Hour)},
		},
		projects: []store.Project{{ID: "p2", Name: "Docs"}, {ID: "p1", Name: "Support"}},
	}
	svc := NewAnalyticsService(st)
	svc.now = func() time.Time { return now }

	report, err := svc.Report(context.Background(), "u1", "7d")
	require.NoError(t, err)
	assert.Equal(t, "7d", report.Range)
	assert.Equal(t, 2, report.Summary.TotalProjects)
	assert.Equal(t, 1, report.Summary.DeployedProjects)
	assert.Equal(t, 3, report.Summary.TotalDocuments)
	assert.Equal(t, int64(3), report.Summary.TotalAPICalls)

	require.Len(t, report.TimeSeries, 7)
	assert.Equal(t, "2024-03-04", report.TimeSeries[0].Date)
	assert.Equal(t, "2024-03-10", report.TimeSeries[6].Date)
	assert.Equal(t, int64(1), report.TimeSeries[6].Calls)
	assert.Equal(t, int64(2), report.TimeSeries[5].Calls)

	require.Len(t, report.Projects, 2)
	assert.Equal(t, "p1", report.Projects[0].ProjectID)
	assert.Equal(t, int64(2), report.Projects[0].Calls)
	assert.Equal(t, int64(0), report.Projects[1].Calls)

	hourly, err := svc.Report(context.Background(), "u1", "24h")
	require.NoError(t, err)
	require.Len(t, hourly.TimeSeries, 24)
	assert.Equal(t, "2024-03-10T15:00", hourly.TimeSeries[23].Date)
	assert.Equal(t, int64(1), hourly.Summary.TotalAPICalls)

	_, err = svc.Report(context.Background(), "u1", "1y")
	assert.ErrorIs(t, err, ErrInvalidRange)
}
