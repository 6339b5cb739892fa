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

// Package ledgerview is the client-side session and authorization core
// of the LedgerView dashboard. It owns the token lifecycle, refreshes
// sessions transparently under concurrent traffic, and evaluates the
// permission and tenant-scope rules that gate every feature.
package ledgerview

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerview/ledgerview-core/authapi"
	"github.com/ledgerview/ledgerview-core/credential"
	"github.com/ledgerview/ledgerview-core/gateway"
	"github.com/ledgerview/ledgerview-core/internal/audit"
	"github.com/ledgerview/ledgerview-core/internal/observability/logger"
	"github.com/ledgerview/ledgerview-core/internal/observability/metrics"
	"github.com/ledgerview/ledgerview-core/internal/observability/tracing"
	"github.com/ledgerview/ledgerview-core/permission"
	"github.com/ledgerview/ledgerview-core/session"
	"github.com/ledgerview/ledgerview-core/tenantscope"
)

// Core is the session manager: it is constructed once at process start
// and handed by reference to every component that needs it. There are
// no ambient globals; single-instance semantics come from the host
// constructing exactly one Core.
type Core struct {
	Sessions    *session.Controller
	Gateway     *gateway.Gateway
	Permissions *permission.Evaluator
	Scope       *tenantscope.Overlay

	tracer *tracing.Tracer
}

// reloadTimeout bounds the permission and tenant refetches that run on
// a principal change.
const reloadTimeout = 10 * time.Second

// New wires the core together. The permission evaluator and tenant
// overlay derive their state from the session controller's principal
// and update reactively whenever it changes.
func New(ctx context.Context, cfg *Config) (*Core, error) {
	logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTELEnabled: cfg.Observability.OTELEnabled,
	})

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	meter, err := metrics.New(metrics.Config{Enabled: cfg.Observability.OTELEnabled}, cfg.Observability.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	api, err := authapi.NewClient(authapi.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	})
	if err != nil {
		return nil, err
	}

	store, err := buildStore(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	auditLogger := audit.NewSlogLogger()

	sessions := session.NewController(api, store,
		session.WithAuditLogger(auditLogger),
		session.WithMeter(meter),
		session.WithLoginLimit(cfg.Login.AttemptsPerMinute, cfg.Login.Burst),
	)

	perms := permission.NewEvaluator(api, sessions, auditLogger)
	scope := tenantscope.NewOverlay(api, sessions, auditLogger)

	gw, err := gateway.New(gateway.Config{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.Gateway.Timeout,
		RequestsPerSecond: cfg.Gateway.RequestsPerSecond,
		Burst:             cfg.Gateway.Burst,
	}, sessions,
		gateway.WithScope(scope),
		gateway.WithMeter(meter),
	)
	if err != nil {
		return nil, err
	}

	sessions.OnChange(func(p *session.Principal) {
		if p == nil {
			perms.Clear()
			scope.Clear()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		perms.SetPrincipal(ctx, p.ID)
		scope.SetPrincipal(ctx, *p)
	})

	return &Core{
		Sessions:    sessions,
		Gateway:     gw,
		Permissions: perms,
		Scope:       scope,
		tracer:      tracer,
	}, nil
}

// Bootstrap restores a previously stored session, if any.
func (c *Core) Bootstrap(ctx context.Context) error {
	return c.Sessions.Bootstrap(ctx)
}

// Close flushes observability state. The session itself is left as-is:
// closing the core is a process concern, not a logout.
func (c *Core) Close(ctx context.Context) error {
	if c.tracer != nil {
		return c.tracer.Shutdown(ctx)
	}
	return nil
}

func buildStore(cfg CredentialsConfig) (credential.Store, error) {
	if cfg.Path == "" {
		return credential.NewMemoryStore(), nil
	}
	var cipher *credential.Cipher
	if cfg.Passphrase != "" {
		var err error
		cipher, err = credential.NewCipher(cfg.Passphrase)
		if err != nil {
			return nil, err
		}
	}
	return credential.NewFileStore(cfg.Path, cipher), nil
}
