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

package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ledgerview/ledgerview-core/internal/observability/logger"
)

// Client talks to the LedgerView authentication and directory endpoints.
// It performs no token management of its own; the session controller
// decides when to call which endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// Config holds API client configuration.
type Config struct {
	// BaseURL is the remote API root, e.g. "https://api.ledgerview.io".
	BaseURL string

	// Timeout bounds each individual call. Zero means 15s.
	Timeout time.Duration

	// Transport overrides the underlying round tripper. Used by tests;
	// production callers normally leave it nil and get an
	// OTel-instrumented default transport.
	Transport http.RoundTripper
}

// NewClient creates a new API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}, nil
}

// Login exchanges credentials for a token pair and profile.
func (c *Client) Login(ctx context.Context, email, password string) (*Credentials, error) {
	var creds Credentials
	err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, "", &creds)
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

// Register creates a new account and returns its first token pair.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Credentials, error) {
	var creds Credentials
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, "", &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Refresh exchanges a refresh token for a new access token.
// The refresh token itself is not rotated by this contract.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var resp refreshResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, "", &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Me validates an access token and returns the profile it belongs to.
func (c *Client) Me(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, accessToken, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout invalidates the session on the remote side. Best effort; the
// caller ignores failures.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, accessToken, nil)
}

// UserPermissions fetches the permission names granted to a user.
func (c *Client) UserPermissions(ctx context.Context, accessToken, userID string) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, "/permissions/users/"+userID, nil, accessToken, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Companies lists all tenants. Only valid for elevated principals.
func (c *Client) Companies(ctx context.Context, accessToken string) ([]Company, error) {
	var companies []Company
	if err := c.do(ctx, http.MethodGet, "/admin/companies", nil, accessToken, &companies); err != nil {
		return nil, err
	}
	return companies, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, accessToken string, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "api_call_unreachable",
			logger.Endpoint(path),
			logger.Error(err),
		)
		return fmt.Errorf("call to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "api_call",
		logger.Endpoint(path),
		logger.StatusCode(resp.StatusCode),
		logger.Duration(time.Since(start).Milliseconds()),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ErrorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// ErrorFromResponse maps a non-2xx response body onto the Error
// taxonomy. Bodies that are not the expected JSON shape still yield a
// classified Error so that status-based handling keeps working.
func ErrorFromResponse(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(raw) > 0 {
		_ = json.Unmarshal(raw, apiErr)
	}
	if apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
