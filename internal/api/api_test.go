package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"gwi.com/botstudio/internal/auth"
	"gwi.com/botstudio/internal/core"
	"gwi.com/botstudio/internal/store"
)

type testServer struct {
	*httptest.Server
	store    *store.SQLiteStore
	ingestor *core.Ingestor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"), logger)
	require.NoError(t, err)

	ingestor := core.NewIngestor(st, nil, 0, logger)
	rag := core.NewRAGService(st, nil, nil, logger)
	handler := NewAPIHandler(st, auth.NewIssuer("test-secret"),
		core.NewChatService(st, rag, logger), core.NewAnalyticsService(st), ingestor, logger)

	srv := httptest.NewServer(NewRouter(handler, logger))
	t.Cleanup(func() {
		srv.Close()
		ingestor.Close()
		st.Close()
	})
	return &testServer{Server: srv, store: st, ingestor: ingestor}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, gjson.Result) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return send(t, req)
}

func (s *testServer) upload(t *testing.T, token, name, content string) (int, gjson.Result) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.URL+"/data/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return send(t, req)
}

func send(t *testing.T, req *http.Request) (int, gjson.Result) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, gjson.ParseBytes(b)
}

func (s *testServer) signup(t *testing.T, email string) (string, string) {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Ada", "email": email, "password": "secret1", "company": "Acme",
	})
	require.Equal(t, http.StatusCreated, status, body.Raw)
	return body.Get("token").String(), body.Get("user._id").String()
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.signup(t, "ada@example.com")
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, userID)

	status, body := s.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Ada", "email": "ADA@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User already exists", body.Get("message").String())

	status, body = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, userID, body.Get("user._id").String())
	assert.False(t, body.Get("user.passwordHash").Exists())

	status, body = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body.Get("message").String())

	status, _ = s.do(t, http.MethodGet, "/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = s.do(t, http.MethodGet, "/users/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Get("message").String(), "at least 6")
}

func TestProfile(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "ada@example.com")

	status, body := s.do(t, http.MethodGet, "/users/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Acme", body.Get("company").String())

	status, body = s.do(t, http.MethodPut, "/users/profile", token, map[string]string{"company": "Globex", "role": "CTO"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Globex", body.Get("company").String())
	assert.Equal(t, "CTO", body.Get("role").String())
	assert.Equal(t, "Ada", body.Get("name").String())

	s.signup(t, "bob@example.com")
	status, _ = s.do(t, http.MethodPut, "/users/profile", token, map[string]string{"email": "bob@example.com"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestProjectsCRUD(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "ada@example.com")

	status, body := s.do(t, http.MethodPost, "/projects", token, map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Project name is required", body.Get("message").String())

	status, body = s.do(t, http.MethodPost, "/projects", token, map[string]any{"name": "Support Bot", "description": "FAQ"})
	require.Equal(t, http.StatusCreated, status, body.Raw)
	id := body.Get("_id").String()
	assert.Equal(t, "development", body.Get("status").String())
	assert.Equal(t, "gpt-4o", body.Get("model").String())
	assert.InDelta(t, 0.7, body.Get("temperature").Float(), 1e-9)

	status, body = s.do(t, http.MethodPut, "/projects/"+id, token, map[string]any{"status": "deployed"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "deployed", body.Get("status").String())
	assert.Equal(t, "Support Bot", body.Get("name").String())
	assert.Equal(t, "FAQ", body.Get("description").String())

	status, body = s.do(t, http.MethodPut, "/projects/"+id, token, map[string]any{"description": ""})
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body.Get("description").String())
	assert.Equal(t, "deployed", body.Get("status").String())

	status, _ = s.do(t, http.MethodPut, "/projects/"+id, token, map[string]any{"status": "live"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodGet, "/projects", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body.Array(), 1)

	other, _ := s.signup(t, "eve@example.com")
	status, _ = s.do(t, http.MethodDelete, "/projects/"+id, other, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodDelete, "/projects/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(t, http.MethodDelete, "/projects/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUploadProcessAndChat(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "ada@example.com")

	status, body := s.upload(t, token, "malware.exe", "MZ")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Get("message").String(), "Unsupported file type")

	status, body = s.upload(t, token, "faq.txt", "Refunds are accepted within 30 days of purchase.")
	require.Equal(t, http.StatusCreated, status, body.Raw)
	docID := body.Get("document._id").String()
	assert.Equal(t, "processing", body.Get("document.status").String())
	assert.Equal(t, docID, body.Get("document.ragDocumentId").String())
	assert.NotEmpty(t, body.Get("message").String())

	s.ingestor.Wait()
	status, body = s.do(t, http.MethodGet, "/data", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Array(), 1)
	assert.Equal(t, "ready", body.Get("0.status").String())

	status, body = s.do(t, http.MethodPost, "/chat", token, map[string]any{
		"question":    "How long do refunds take?",
		"documentIds": []string{docID},
		"history":     []map[string]string{{"type": "user", "content": "hi"}},
	})
	require.Equal(t, http.StatusOK, status, body.Raw)
	assert.Contains(t, body.Get("answer").String(), "30 days")

	status, body = s.do(t, http.MethodPost, "/chat", token, map[string]any{"question": "refunds?"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "At least one document must be selected", body.Get("message").String())

	status, body = s.do(t, http.MethodGet, "/analytics?range=24h", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), body.Get("summary.totalApiCalls").Int())
	assert.Equal(t, int64(1), body.Get("summary.totalDocuments").Int())
	assert.Len(t, body.Get("timeSeries").Array(), 24)

	status, _ = s.do(t, http.MethodGet, "/analytics?range=1y", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodDelete, "/data/"+docID, token, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestUploadWithoutText(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "ada@example.com")

	status, body := s.upload(t, token, "blank.txt", "   ")
	require.Equal(t, http.StatusCreated, status)
	s.ingestor.Wait()

	doc, err := s.store.GetDataSource(context.Background(), profileID(t, s, token), body.Get("document._id").String())
	require.NoError(t, err)
	assert.Equal(t, store.DocumentError, doc.Status)
}

func profileID(t *testing.T, s *testServer, token string) string {
	t.Helper()
	_, body := s.do(t, http.MethodGet, "/users/profile", token, nil)
	return body.Get("_id").String()
}

func TestAPIKeysAndProjectEndpoint(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "ada@example.com")

	_, body := s.upload(t, token, "faq.txt", "Refunds are accepted within 30 days of purchase.")
	docID := body.Get("document._id").String()
	s.ingestor.Wait()

	status, body := s.do(t, http.MethodPost, "/projects", token, map[string]any{
		"name": "Support", "documents": []string{docID},
	})
	require.Equal(t, http.StatusCreated, status)
	projectID := body.Get("_id").String()
	assert.Equal(t, "faq.txt", body.Get("documents.0.name").String())

	status, body = s.do(t, http.MethodPost, "/keys", token, map[string]string{"projectId": projectID})
	require.Equal(t, http.StatusCreated, status, body.Raw)
	secret := body.Get("key").String()
	assert.True(t, strings.HasPrefix(secret, auth.APIKeyPrefix))
	assert.Equal(t, "New API Key", body.Get("name").String())
	assert.Equal(t, secret[len(secret)-4:], body.Get("lastFour").String())
	keyID := body.Get("_id").String()

	status, body = s.do(t, http.MethodGet, "/keys", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Array(), 1)
	assert.False(t, body.Get("0.key").Exists())

	chat := func(key string) (int, gjson.Result) {
		return s.do(t, http.MethodPost, "/v1/projects/"+projectID+"/chat", key, map[string]string{"question": "How do refunds work?"})
	}

	status, body = chat(secret)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Project is not deployed", body.Get("message").String())

	status, _ = s.do(t, http.MethodPut, "/projects/"+projectID, token, map[string]string{"status": "deployed"})
	require.Equal(t, http.StatusOK, status)

	status, body = chat(secret)
	require.Equal(t, http.StatusOK, status, body.Raw)
	assert.Contains(t, body.Get("answer").String(), "30 days")

	status, body = s.do(t, http.MethodGet, "/projects", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), body.Get("0.apiCalls").Int())

	status, _ = chat(auth.APIKeyPrefix + "nope")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, http.MethodDelete, "/keys/"+keyID, token, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = chat(secret)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Get("status").String())
}

func TestForeignTokenRejected(t *testing.T) {
	s := newTestServer(t)
	_, userID := s.signup(t, "ada@example.com")

	issuer := auth.NewIssuer("other-secret")
	forged, err := issuer.GenerateJWT(userID)
	require.NoError(t, err)

	status, _ := s.do(t, http.MethodGet, "/projects", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
