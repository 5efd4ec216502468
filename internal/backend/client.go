// Package backend is the HTTP client for the commerce REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thequtt/qutt-client/pkg/config"
	pkgerrors "github.com/thequtt/qutt-client/pkg/errors"
	"github.com/thequtt/qutt-client/pkg/logger"
	"github.com/thequtt/qutt-client/pkg/metrics"
)

const (
	defaultTimeout         = 30 * time.Second
	errorBodyReadLimit     = 4 * 1024
	responseBodyReadLimit  = 8 * 1024 * 1024
	headerRequestID        = "X-Request-ID"
	tokenNotValidErrorCode = "token_not_valid"
)

// TokenSource supplies the bearer credential and renews it after a 401.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) bool
}

// Client talks to the backend. Public endpoints work without a TokenSource;
// authenticated ones fail with CodeUnauthorized until a token is available.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logg       *logger.Logger
	metrics    *metrics.BackendMetrics
	tokens     TokenSource
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// WithMetrics attaches request metrics.
func WithMetrics(m *metrics.BackendMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTokenSource sets the credential provider for authenticated calls.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// New builds a client from the API section of the config.
func New(cfg config.APIConfig, opts ...Option) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		userAgent:  cfg.UserAgent,
		logg:       logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.baseURL == "" {
		return nil, fmt.Errorf("backend base url is required")
	}
	return client, nil
}

// UseTokens sets the credential provider after construction. The session
// manager needs the client as its refresher, so the two are wired in steps.
func (c *Client) UseTokens(tokens TokenSource) {
	c.tokens = tokens
}

type authMode int

const (
	authNone authMode = iota
	// authOptional sends the bearer token when signed in; the endpoint is
	// readable anonymously.
	authOptional
	authRequired
)

type call struct {
	op     string
	method string
	path   string
	body   any
	out    any
	auth   authMode
}

// do runs c once. An authenticated call that gets a 401 asks the token
// source to refresh and is retried exactly once when a fresh token exists.
func (c *Client) do(ctx context.Context, cl call) error {
	var payload []byte
	if cl.body != nil {
		var err error
		if payload, err = json.Marshal(cl.body); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+cl.op+" request")
		}
	}
	token := ""
	if cl.auth != authNone && c.tokens != nil {
		token = c.tokens.AccessToken()
	}
	if token == "" {
		if cl.auth == authRequired {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "not signed in")
		}
		_, err := c.send(ctx, cl, payload, "")
		return err
	}
	status, err := c.send(ctx, cl, payload, token)
	if status != http.StatusUnauthorized {
		return err
	}

	refreshed := c.tokens.Refresh(ctx)
	next := c.tokens.AccessToken()
	if !refreshed && (next == "" || next == token) {
		return err
	}
	c.metrics.IncRetry(cl.op)
	c.logg.Info(c.logg.WithField(ctx, "operation", cl.op), "retrying request with refreshed token")
	_, err = c.send(ctx, cl, payload, next)
	return err
}

func (c *Client) send(ctx context.Context, cl call, payload []byte, token string) (int, error) {
	requestID := uuid.NewString()
	ctx = c.logg.WithFields(ctx, map[string]any{
		"request_id": requestID,
		"operation":  cl.op,
	})

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.buildURL(cl.path), body)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+cl.op+" request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set(headerRequestID, requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(cl.op, 0, time.Since(started))
		c.logg.Error(ctx, "backend request failed", err)
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+cl.op+" request")
	}
	defer func() { _ = resp.Body.Close() }()
	c.metrics.ObserveRequest(cl.op, resp.StatusCode, time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		apiErr := decodeAPIError(resp.StatusCode, raw)
		c.logg.Warn(c.logg.WithField(ctx, "status", resp.StatusCode), cl.op+" rejected by backend")
		return resp.StatusCode, apiErr
	}
	if cl.out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyReadLimit)).Decode(cl.out); err != nil {
		return resp.StatusCode, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+cl.op+" response")
	}
	return resp.StatusCode, nil
}

// APIError is the detail attached to errors built from non-2xx responses.
type APIError struct {
	Status int            `json:"status"`
	Detail string         `json:"detail,omitempty"`
	Code   string         `json:"code,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
	Body   string         `json:"body,omitempty"`
}

// TokenInvalid reports whether the backend rejected the bearer token itself.
func (e APIError) TokenInvalid() bool {
	return e.Status == http.StatusUnauthorized && e.Code == tokenNotValidErrorCode
}

func decodeAPIError(status int, raw []byte) *pkgerrors.Error {
	apiErr := APIError{Status: status}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil {
		if detail, ok := fields["detail"].(string); ok {
			apiErr.Detail = detail
			delete(fields, "detail")
		}
		if code, ok := fields["code"].(string); ok {
			apiErr.Code = code
			delete(fields, "code")
		}
		delete(fields, "messages")
		if len(fields) > 0 {
			apiErr.Fields = fields
		}
	} else {
		apiErr.Body = strings.TrimSpace(string(raw))
	}

	message := apiErr.Detail
	if message == "" {
		message = fmt.Sprintf("backend returned status %d", status)
	}
	return pkgerrors.New(pkgerrors.FromHTTPStatus(status), message).WithDetails(apiErr)
}

// ErrorDetails extracts the APIError carried by err, if any.
func ErrorDetails(err error) (APIError, bool) {
	typed := pkgerrors.As(err)
	if typed == nil {
		return APIError{}, false
	}
	apiErr, ok := typed.Details().(APIError)
	return apiErr, ok
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
