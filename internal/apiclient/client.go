// Package apiclient is the single chokepoint for network I/O to the backend.
//
// Every call goes through Client.Request, which injects the bearer token,
// encodes the body, and turns any failure (transport, non-2xx status) into a
// *RequestError after logging it with the endpoint name. There are no
// retries and no client-side timeout; a call lives as long as its context.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"gwi.com/botstudio/internal/tokenstore"
)

// ErrNoContent is returned by Result.Decode for a 204 response.
var ErrNoContent = errors.New("no content")

// RequestError is the one error type callers see. Message is suitable for
// showing to a user as-is.
type RequestError struct {
	Endpoint   string
	StatusCode int // 0 for transport failures
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// RequestOptions is the options bag of a single call. A *FormData body is
// sent as multipart/form-data; any other non-nil body is JSON encoded.
type RequestOptions struct {
	Method string
	Body   any
	Header http.Header
}

// Result is a successful response. A 204 yields a Result whose NoContent
// reports true and whose Body is nil.
type Result struct {
	StatusCode int
	Body       json.RawMessage
}

func (r *Result) NoContent() bool {
	return r.StatusCode == http.StatusNoContent
}

// Decode unmarshals the body into v, or returns ErrNoContent.
func (r *Result) Decode(v any) error {
	if r.NoContent() {
		return ErrNoContent
	}
	return json.Unmarshal(r.Body, v)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     tokenstore.Store
	logger     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(baseURL string, tokens tokenstore.Store, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		tokens:     tokens,
		logger:     logger.Named("apiclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request performs exactly one HTTP call against baseURL+endpoint.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) (*Result, error) {
	res, err := c.do(ctx, endpoint, opts)
	if err != nil {
		c.logger.Error("API error", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, err
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, endpoint string, opts RequestOptions) (*Result, error) {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	for k, v := range opts.Header {
		header[http.CanonicalHeaderKey(k)] = v
	}

	if c.tokens != nil {
		token, err := c.tokens.Get()
		if err != nil {
			c.logger.Warn("failed to read stored token, sending request unauthenticated", zap.Error(err))
		} else if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	var body io.Reader
	switch b := opts.Body.(type) {
	case nil:
	case *FormData:
		buf, contentType, err := b.encode()
		if err != nil {
			return nil, &RequestError{Endpoint: endpoint, Message: fmt.Sprintf("failed to encode form: %v", err), Err: err}
		}
		header.Del("Content-Type")
		header.Set("Content-Type", contentType)
		body = buf
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, &RequestError{Endpoint: endpoint, Message: fmt.Sprintf("failed to encode request body: %v", err), Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, &RequestError{Endpoint: endpoint, Message: err.Error(), Err: err}
	}
	req.Header = header

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Endpoint: endpoint, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return &Result{StatusCode: resp.StatusCode}, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil || !json.Valid(data) {
		data = []byte("{}")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("Request failed with status %d", resp.StatusCode)
		if m := gjson.GetBytes(data, "message"); m.Exists() && m.String() != "" {
			msg = m.String()
		}
		return nil, &RequestError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: msg}
	}

	return &Result{StatusCode: resp.StatusCode, Body: data}, nil
}

// call is the typed-endpoint helper: request, normalize ids, decode.
// out may be nil when the caller does not need the body.
func (c *Client) call(ctx context.Context, method, endpoint string, body, out any) error {
	res, err := c.Request(ctx, endpoint, RequestOptions{Method: method, Body: body})
	if err != nil {
		return err
	}
	if out == nil || res.NoContent() {
		return nil
	}

	normalized, err := NormalizeIDs(res.Body)
	if err != nil {
		return fmt.Errorf("failed to normalize response from %s: %w", endpoint, err)
	}
	if err := json.Unmarshal(normalized, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}
