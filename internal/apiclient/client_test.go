package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"gwi.com/botstudio/internal/models"
	"gwi.com/botstudio/internal/tokenstore"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *tokenstore.Memory, *observer.ObservedLogs) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	core, logs := observer.New(zap.DebugLevel)
	tokens := tokenstore.NewMemory()
	return New(server.URL, tokens, zap.New(core)), tokens, logs
}

func TestRequestNoContent(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/projects/42", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	res, err := c.Request(context.Background(), "/projects/42", RequestOptions{Method: http.MethodDelete})
	require.NoError(t, err)
	assert.True(t, res.NoContent())
	assert.Nil(t, res.Body)

	var v map[string]any
	assert.ErrorIs(t, res.Decode(&v), ErrNoContent)
}

func TestRequestErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{
			name:        "backend_message",
			status:      http.StatusUnauthorized,
			body:        `{"message":"Invalid credentials"}`,
			wantMessage: "Invalid credentials",
		},
		{
			name:        "no_message_field",
			status:      http.StatusInternalServerError,
			body:        `{"error":"boom"}`,
			wantMessage: "Request failed with status 500",
		},
		{
			name:        "unparseable_body",
			status:      http.StatusBadGateway,
			body:        `<html>bad gateway</html>`,
			wantMessage: "Request failed with status 502",
		},
		{
			name:        "empty_message",
			status:      http.StatusNotFound,
			body:        `{"message":""}`,
			wantMessage: "Request failed with status 404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, logs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			res, err := c.Request(context.Background(), "/projects", RequestOptions{})
			require.Error(t, err)
			assert.Nil(t, res)

			var reqErr *RequestError
			require.True(t, errors.As(err, &reqErr))
			assert.Equal(t, tt.wantMessage, reqErr.Error())
			assert.Equal(t, tt.status, reqErr.StatusCode)
			assert.Equal(t, "/projects", reqErr.Endpoint)

			entries := logs.FilterField(zap.String("endpoint", "/projects")).All()
			assert.Len(t, entries, 1, "failure is logged with the endpoint before returning")
		})
	}
}

func TestRequestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := New(server.URL, tokenstore.NewMemory(), zap.NewNop())
	_, err := c.Request(context.Background(), "/projects", RequestOptions{})

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Zero(t, reqErr.StatusCode)
	assert.NotEmpty(t, reqErr.Message)
}

func TestRequestMalformedSuccessBodyCoercedToEmptyObject(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "definitely not json")
	})

	res, err := c.Request(context.Background(), "/users/profile", RequestOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(res.Body))
}

func TestRequestHeaders(t *testing.T) {
	var gotAuth, gotContentType, gotCustom string
	var gotBody map[string]any
	c, tokens, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotCustom = r.Header.Get("X-Trace")
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `{"ok":true}`)
	})

	_, err := c.Request(context.Background(), "/projects", RequestOptions{Method: http.MethodPost, Body: map[string]string{"name": "bot"}})
	require.NoError(t, err)
	assert.Empty(t, gotAuth, "no token stored, no Authorization header")
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "bot", gotBody["name"])

	require.NoError(t, tokens.Set("tok1"))
	header := http.Header{}
	header.Set("X-Trace", "abc")
	_, err = c.Request(context.Background(), "projects", RequestOptions{Header: header})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok1", gotAuth)
	assert.Equal(t, "abc", gotCustom)
}

func TestUploadFileMultipart(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary="))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "text/plain", header.Header.Get("Content-Type"))
		assert.Equal(t, "hello", string(data))

		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"message":"queued","document":{"_id":"d1","name":"notes.txt","status":"processing"}}`)
	})

	resp, err := c.UploadFile(context.Background(), FormFile{Name: "notes.txt", ContentType: "text/plain", Content: strings.NewReader("hello")})
	require.NoError(t, err)
	assert.Equal(t, "d1", resp.Document.ID)
	assert.Equal(t, models.DocumentProcessing, resp.Document.Status)
}

func TestTypedEndpointsNormalizeIDs(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/projects":
			io.WriteString(w, `[{"_id":"p1","name":"Support","documents":[{"_id":"d1"}]},{"_id":"p2","name":"Docs"}]`)
		case "/data":
			io.WriteString(w, `[{"id":1,"status":"processing"}]`)
		case "/analytics":
			assert.Equal(t, "7d", r.URL.Query().Get("range"))
			io.WriteString(w, `{"range":"7d","summary":{"totalProjects":2}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	projects, err := c.GetProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "p1", projects[0].ID)
	assert.Equal(t, "d1", projects[0].Documents[0].ID)
	assert.Equal(t, "p2", projects[1].ID)

	sources, err := c.GetDataSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", sources[0].ID)

	analytics, err := c.GetAnalytics(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, analytics.Summary.TotalProjects)
}

func TestLogin(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "a@b.com", creds.Email)
		io.WriteString(w, `{"token":"tok1","user":{"_id":"u1","name":"A"}}`)
	})

	resp, err := c.Login(context.Background(), models.Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, "tok1", resp.Token)
	assert.Equal(t, "u1", resp.User.ID)
}

func TestHealth(t *testing.T) {
	status := http.StatusOK
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	require.NoError(t, c.Health(context.Background()))

	status = http.StatusServiceUnavailable
	var reqErr *RequestError
	require.ErrorAs(t, c.Health(context.Background()), &reqErr)
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.StatusCode)
}

func TestUpdateProjectSendsClearedFields(t *testing.T) {
	var body map[string]any
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"_id":"p1","name":"Support","description":""}`)
	})

	empty := ""
	p, err := c.UpdateProject(context.Background(), "p1", models.ProjectInput{Description: &empty})
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)

	desc, ok := body["description"]
	require.True(t, ok, "a cleared description must be sent")
	assert.Equal(t, "", desc)
	assert.NotContains(t, body, "systemPrompt")
	assert.NotContains(t, body, "name")
}
