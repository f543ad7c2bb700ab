package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gwi.com/botstudio/internal/api"
	"gwi.com/botstudio/internal/auth"
	"gwi.com/botstudio/internal/config"
	"gwi.com/botstudio/internal/core"
	"gwi.com/botstudio/internal/models"
	"gwi.com/botstudio/internal/store"
	"gwi.com/botstudio/internal/tokenstore"
)

type console struct {
	t      *testing.T
	cfg    *config.Config
	tokens *tokenstore.Memory
}

func newConsole(t *testing.T) *console {
	t.Helper()
	logger := zap.NewNop()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "cli.db"), logger)
	require.NoError(t, err)

	ingestor := core.NewIngestor(st, nil, 0, logger)
	rag := core.NewRAGService(st, nil, nil, logger)
	handler := api.NewAPIHandler(st, auth.NewIssuer("cli-secret"),
		core.NewChatService(st, rag, logger), core.NewAnalyticsService(st), ingestor, logger)
	srv := httptest.NewServer(api.NewRouter(handler, logger))
	t.Cleanup(func() {
		srv.Close()
		ingestor.Close()
		st.Close()
	})

	return &console{
		t: t,
		cfg: &config.Config{
			APIBaseURL:   srv.URL,
			PublicAPIURL: "https://api.example.com",
			TokenStore:   "memory",
			PollInterval: 10 * time.Millisecond,
		},
		tokens: tokenstore.NewMemory(),
	}
}

func (c *console) run(args ...string) (string, error) {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := execute(ctx, options{
		config: func() (*config.Config, error) { return c.cfg, nil },
		tokens: c.tokens,
		logger: zap.NewNop(),
		out:    &out,
	}, args)
	return out.String(), err
}

func (c *console) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

// field returns the value printed after "label: ".
func field(out, label string) string {
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), label+": "); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func TestConsoleWorkflow(t *testing.T) {
	c := newConsole(t)

	out := c.mustRun("signup", "--name", "Ada Lovelace", "--email", "ada@example.com", "--password", "secret123")
	assert.Contains(t, out, "Welcome, Ada Lovelace")

	out = c.mustRun("whoami")
	assert.Contains(t, out, "ada@example.com")
	assert.Equal(t, "reachable", field(out, "Backend"))

	doc := filepath.Join(t.TempDir(), "refunds.txt")
	require.NoError(t, os.WriteFile(doc,
		[]byte("Refunds are issued within 30 days of purchase. Shipping takes five business days."), 0o600))
	out = c.mustRun("data", "upload", doc, "--wait")
	assert.Contains(t, out, "refunds.txt")
	assert.Contains(t, out, "ready")

	out = c.mustRun("chat", "-q", "How do refunds work?")
	assert.Contains(t, out, "Refunds are issued within 30 days")

	out = c.mustRun("projects", "create", "--name", "Support bot")
	projectID := field(out, "ID")
	require.NotEmpty(t, projectID)

	out = c.mustRun("projects", "deploy", projectID)
	assert.Contains(t, out, "https://api.example.com/v1/projects/"+projectID+"/chat")

	out = c.mustRun("keys", "create", "--name", "ci-runner")
	keyID := field(out, "ID")
	secret := field(out, "Key")
	require.True(t, strings.HasPrefix(secret, "sk_live_"), out)
	assert.Contains(t, out, "will not be shown again")

	out = c.mustRun("keys", "list")
	assert.Contains(t, out, "ci-runner")
	assert.Contains(t, out, secret[len(secret)-4:])
	assert.NotContains(t, out, secret)

	out = c.mustRun("analytics", "--range", "24h")
	assert.Equal(t, "1", field(out, "API calls"))

	_, err := c.run("analytics", "--range", "1y")
	assert.Error(t, err)

	out = c.mustRun("profile", "update", "--company", "Analytical Engines")
	assert.Equal(t, "Analytical Engines", field(out, "Company"))

	out = c.mustRun("profile", "show")
	assert.Equal(t, "ada@example.com", field(out, "Email"))

	c.mustRun("keys", "delete", keyID)
	out = c.mustRun("keys", "list")
	assert.NotContains(t, out, "ci-runner")

	c.mustRun("logout")
	out, err = c.run("whoami")
	require.Error(t, err)
	assert.Contains(t, out, "not logged in")
}

func TestConsoleLoginFailure(t *testing.T) {
	c := newConsole(t)

	out, err := c.run("login", "--email", "nobody@example.com", "--password", "wrongpass")
	require.Error(t, err)
	assert.Contains(t, out, "Invalid credentials")

	tok, err := c.tokens.Get()
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestBillingDownload(t *testing.T) {
	c := newConsole(t)
	path := filepath.Join(t.TempDir(), "inv.json")

	out := c.mustRun("billing", "export", "inv_001", "--out", path)
	assert.Equal(t, path, field(out, "Saved"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id": "inv_001"`)

	_, err = c.run("billing", "download", "inv_999")
	assert.Error(t, err)
}

func TestPrintToasts(t *testing.T) {
	var buf bytes.Buffer
	hadError := printToasts(&buf, []models.Notification{
		{Level: models.NotifySuccess, Message: "Project created"},
		{Level: models.NotifyInfo, Message: "Processing"},
	})
	assert.False(t, hadError)
	assert.Contains(t, buf.String(), "Project created")

	hadError = printToasts(&buf, []models.Notification{{Level: models.NotifyError, Message: "Upload failed"}})
	assert.True(t, hadError)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2<<20))
}
