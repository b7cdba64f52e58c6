// Package api is the client for the Gatey remote API.
//
// Calls are GET requests to {base_url}/{method} with query parameters. The
// gateway adds the configured credentials, parses the JSON response strictly,
// and returns typed errors: *APIError for application-level rejections and
// *ResponseError for network or format failures.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the hosted API endpoint.
	DefaultBaseURL = "https://api-gatey.florgon.space/v1"

	// DefaultExpectedVersion is the protocol version the SDK was written against.
	DefaultExpectedVersion = "0.0.0"

	// DefaultTimeout bounds each API request.
	DefaultTimeout = 5 * time.Second

	// MethodCheckAuth verifies project credentials.
	MethodCheckAuth = "project.checkSecret"

	maxBodyExcerpt = 512
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithBaseURL sets the API endpoint, e.g. for self-hosted servers.
func WithBaseURL(u string) Option {
	return func(g *Gateway) {
		g.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithExpectedVersion sets the protocol version expected from the server.
func WithExpectedVersion(v string) Option {
	return func(g *Gateway) {
		g.expectedVersion = v
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its timeout is kept as configured.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger.Named("api")
		}
	}
}

// CallOption selects which credentials a call carries.
type CallOption func(*callConfig)

type callConfig struct {
	accessToken bool
	projectAuth bool
}

// WithAccessToken sends the user access token.
func WithAccessToken() CallOption {
	return func(c *callConfig) { c.accessToken = true }
}

// WithProjectAuth sends the project id and secret.
// It is ignored when WithAccessToken is also given.
func WithProjectAuth() CallOption {
	return func(c *callConfig) { c.projectAuth = true }
}

// Gateway executes API methods.
// The configuration setters are safe for concurrent use, but changing the
// endpoint while events are in flight affects only later requests.
type Gateway struct {
	auth *Auth

	mu              sync.RWMutex
	baseURL         string
	expectedVersion string
	httpClient      *http.Client
	logger          *zap.Logger
}

// NewGateway creates a Gateway. A nil auth is treated as empty credentials.
func NewGateway(auth *Auth, opts ...Option) *Gateway {
	if auth == nil {
		auth = &Auth{}
	}
	g := &Gateway{
		auth:            auth,
		baseURL:         DefaultBaseURL,
		expectedVersion: DefaultExpectedVersion,
		httpClient:      &http.Client{Timeout: DefaultTimeout},
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Auth returns the credentials used by the gateway.
func (g *Gateway) Auth() *Auth {
	return g.auth
}

// BaseURL returns the current API endpoint.
func (g *Gateway) BaseURL() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.baseURL
}

// SetBaseURL changes the API endpoint. A trailing slash is removed.
func (g *Gateway) SetBaseURL(u string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.baseURL = strings.TrimSuffix(u, "/")
}

// SetExpectedVersion changes the protocol version expected from the server.
func (g *Gateway) SetExpectedVersion(v string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expectedVersion = v
}

// SetTimeout changes the per-request timeout.
func (g *Gateway) SetTimeout(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	// In-flight calls keep the client they started with.
	c := *g.httpClient
	c.Timeout = d
	g.httpClient = &c
}

// CallMethod executes the named API method with the given parameters.
// It returns *APIError when the response carries an error object and
// *ResponseError when the request or the body parsing failed.
func (g *Gateway) CallMethod(ctx context.Context, name string, params url.Values, opts ...CallOption) (*Response, error) {
	cfg := callConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	g.mu.RLock()
	endpoint := g.baseURL + "/" + name
	expectedVersion := g.expectedVersion
	client := g.httpClient
	g.mu.RUnlock()

	query := url.Values{}
	for k, v := range params {
		query[k] = append([]string(nil), v...)
	}
	if cfg.accessToken && g.auth.AccessToken != "" {
		query.Set("access_token", g.auth.AccessToken)
	}
	if cfg.projectAuth && !cfg.accessToken {
		for k, v := range g.auth.projectParams() {
			query.Set(k, v)
		}
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ResponseError{Method: name, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ResponseError{Method: name, Err: err}
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, &ResponseError{Method: name, StatusCode: resp.StatusCode, Err: err}
	}

	response, err := parseResponse(resp.StatusCode, body)
	if err != nil {
		return nil, &ResponseError{
			Method:     name,
			StatusCode: resp.StatusCode,
			Body:       excerpt(body),
			Err:        err,
		}
	}

	if v := response.Version(); v != "-" && v != expectedVersion {
		g.logger.Debug("API version differs from expected",
			zap.String("method", name),
			zap.String("version", v),
			zap.String("expected", expectedVersion),
		)
	}

	if apiErr := response.apiError(name); apiErr != nil {
		return nil, apiErr
	}
	return response, nil
}

// CheckAuth reports whether the configured credentials are accepted.
// It never returns an error.
func (g *Gateway) CheckAuth(ctx context.Context) bool {
	return g.HardCheckAuth(ctx) == nil
}

// HardCheckAuth verifies the configured credentials and returns *AuthError
// describing why they were rejected.
func (g *Gateway) HardCheckAuth(ctx context.Context) error {
	opts := []CallOption{WithProjectAuth()}
	if !g.auth.HasProjectAuth() && g.auth.AccessToken != "" {
		opts = []CallOption{WithAccessToken()}
	}

	_, err := g.CallMethod(ctx, MethodCheckAuth, nil, opts...)
	if err == nil {
		return nil
	}

	authErr := &AuthError{Kind: AuthFailed, ProjectID: g.auth.ProjectID, Err: err}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrorCodeInvalidSecret:
			authErr.Kind = AuthInvalidSecret
		case ErrorCodeProjectNotFound:
			authErr.Kind = AuthUnknownProject
		}
	}
	g.logger.Debug("auth check failed", zap.String("kind", string(authErr.Kind)), zap.Error(err))
	return authErr
}

func excerpt(body []byte) string {
	if len(body) > maxBodyExcerpt {
		return string(body[:maxBodyExcerpt])
	}
	return string(body)
}

// String implements fmt.Stringer for debugging output.
func (g *Gateway) String() string {
	return fmt.Sprintf("api.Gateway(%s)", g.BaseURL())
}
