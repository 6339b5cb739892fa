// Copyright 2026 The LedgerView Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/ledgerview/ledgerview-core/internal/observability/logger"
	"github.com/ledgerview/ledgerview-core/internal/observability/metrics"
	"github.com/ledgerview/ledgerview-core/session"
)

// Domain errors
var (
	// ErrNoSession means the controller holds no usable session; no
	// request was issued.
	ErrNoSession = errors.New("no active session")

	// ErrNotReplayable means a 401 arrived on a request whose body
	// cannot be rebuilt, so the single retry was impossible.
	ErrNotReplayable = errors.New("request body cannot be replayed")
)

// SessionSource is the slice of the session controller the gateway
// consults on every call.
type SessionSource interface {
	Status() session.Status
	AccessToken() string
	Refresh(ctx context.Context) error
}

// ScopeSource supplies the tenant override at send time. The overlay
// satisfies it.
type ScopeSource interface {
	SelectedTenantID() (string, bool)
}

// Gateway wraps every outbound call to the LedgerView API: it attaches
// the current access token, forwards the tenant scope, and on the first
// 401 triggers at most one coordinated refresh before retrying exactly
// once. Server faults and transport failures pass through untouched.
type Gateway struct {
	baseURL  string
	http     *http.Client
	sessions SessionSource
	scope    ScopeSource
	limiter  *rate.Limiter
	meter    *metrics.Meter
}

// Config holds gateway configuration.
type Config struct {
	// BaseURL is the API root data requests are resolved against.
	BaseURL string

	// Timeout bounds each attempt. Zero means 30s.
	Timeout time.Duration

	// RequestsPerSecond throttles outbound traffic. Zero disables the
	// limiter.
	RequestsPerSecond float64
	Burst             int

	// Transport overrides the round tripper; tests use it. Nil gets an
	// OTel-instrumented default.
	Transport http.RoundTripper
}

// Option configures optional collaborators.
type Option func(*Gateway)

// WithScope wires the tenant scope overlay into outbound requests.
func WithScope(scope ScopeSource) Option {
	return func(g *Gateway) { g.scope = scope }
}

// WithMeter attaches metric instruments.
func WithMeter(m *metrics.Meter) Option {
	return func(g *Gateway) { g.meter = m }
}

// New creates a gateway bound to a session source.
func New(cfg Config, sessions SessionSource, opts ...Option) (*Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session source is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	g := &Gateway{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout, Transport: transport},
		sessions: sessions,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Do sends req through the gateway. The caller's request is decorated
// with the bearer token, a request ID, and the tenant scope header, all
// read at send time. On a 401 the gateway waits on the controller's
// single in-flight refresh (starting one if none is running) and, if it
// succeeds, retries the request exactly once with the new token. The
// retry bound holds regardless of how many 401s the call accumulates.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if !g.sessions.Status().Usable() {
		return nil, ErrNoSession
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	requestID := uuid.NewString()
	resp, err := g.send(ctx, req, requestID, 1)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	if g.meter != nil {
		g.meter.UnauthorizedTotal.Add(ctx, 1)
	}

	if err := g.sessions.Refresh(ctx); err != nil {
		// Refresh failed: the controller has already torn the session
		// down if the refresh token was rejected. The original 401 goes
		// back to the caller.
		slog.DebugContext(ctx, "gateway_refresh_failed",
			logger.RequestID(requestID),
			logger.Error(err),
		)
		return resp, nil
	}

	retry, err := rewind(req)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	resp.Body.Close()

	if g.meter != nil {
		g.meter.RetriesTotal.Add(ctx, 1)
	}
	return g.send(ctx, retry, requestID, 2)
}

func (g *Gateway) send(ctx context.Context, req *http.Request, requestID string, attempt int) (*http.Response, error) {
	req.Header.Set("X-Request-ID", requestID)
	if token := g.sessions.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// The tenant override is read at the moment the request is issued,
	// never captured earlier: the selection can change between renders
	// and a stale capture would silently query the wrong company.
	if g.scope != nil {
		if tenantID, ok := g.scope.SelectedTenantID(); ok {
			req.Header.Set("X-Company-ID", tenantID)
		} else {
			req.Header.Del("X-Company-ID")
		}
	}

	start := time.Now()
	resp, err := g.http.Do(req)
	elapsed := time.Since(start)

	if g.meter != nil {
		g.meter.RequestDuration.Record(ctx, float64(elapsed.Milliseconds()))
	}
	if err != nil {
		slog.WarnContext(ctx, "gateway_request_unreachable",
			logger.RequestID(requestID),
			logger.Method(req.Method),
			logger.Endpoint(req.URL.Path),
			logger.Attempt(attempt),
			logger.Error(err),
		)
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}

	slog.DebugContext(ctx, "gateway_request",
		logger.RequestID(requestID),
		logger.Method(req.Method),
		logger.Endpoint(req.URL.Path),
		logger.StatusCode(resp.StatusCode),
		logger.Attempt(attempt),
		logger.Duration(elapsed.Milliseconds()),
	)
	return resp, nil
}

// rewind clones req with a replayed body for the single retry.
func rewind(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, ErrNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotReplayable, err)
	}
	retry.Body = body
	return retry, nil
}
