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

package permission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ledgerview/ledgerview-core/internal/audit"
	"github.com/ledgerview/ledgerview-core/internal/observability/logger"
)

// Fetcher retrieves the permission names granted to a user.
// *authapi.Client satisfies it.
type Fetcher interface {
	UserPermissions(ctx context.Context, accessToken, userID string) ([]string, error)
}

// TokenSource supplies the current access token. The session controller
// satisfies it.
type TokenSource interface {
	AccessToken() string
}

// Evaluator answers permission queries for the current principal.
// Queries fail closed: while the set is loading, after a fetch failure,
// and with no principal at all, every non-empty requirement is denied.
type Evaluator struct {
	api    Fetcher
	tokens TokenSource
	audit  audit.Logger

	mu      sync.RWMutex
	userID  string
	set     map[string]struct{}
	loading bool
}

// NewEvaluator creates an evaluator with no principal: deny-all.
func NewEvaluator(api Fetcher, tokens TokenSource, auditLogger audit.Logger) *Evaluator {
	if auditLogger == nil {
		auditLogger = audit.NewSlogLogger()
	}
	return &Evaluator{
		api:    api,
		tokens: tokens,
		audit:  auditLogger,
	}
}

// Has reports whether the current set contains name. An empty name is
// the absence of a requirement and is satisfied trivially.
func (e *Evaluator) Has(name string) bool {
	if name == "" {
		return true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.loading || e.set == nil {
		return false
	}
	_, ok := e.set[name]
	return ok
}

// HasAny reports whether the set intersects names. An empty list
// imposes no restriction.
func (e *Evaluator) HasAny(names ...string) bool {
	if len(names) == 0 {
		return true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.loading || e.set == nil {
		return false
	}
	for _, name := range names {
		if _, ok := e.set[name]; ok {
			return true
		}
	}
	return false
}

// HasAll reports whether names is a subset of the set. An empty list
// imposes no restriction.
func (e *Evaluator) HasAll(names ...string) bool {
	if len(names) == 0 {
		return true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.loading || e.set == nil {
		return false
	}
	for _, name := range names {
		if _, ok := e.set[name]; !ok {
			return false
		}
	}
	return true
}

// Satisfies evaluates a Requirement against the current set.
func (e *Evaluator) Satisfies(req Requirement) bool {
	switch req.kind {
	case reqNone:
		return true
	case reqSingle:
		return e.Has(req.names[0])
	case reqAnyOf:
		return e.HasAny(req.names...)
	case reqAllOf:
		return e.HasAll(req.names...)
	default:
		// Unknown combinators deny. Unreachable with the exported
		// constructors.
		return false
	}
}

// SetPrincipal recomputes the set for a new principal identity. A
// repeated call for the identity already loaded is a no-op; Reload
// forces a refetch.
func (e *Evaluator) SetPrincipal(ctx context.Context, userID string) {
	e.mu.Lock()
	if userID == e.userID && e.set != nil {
		e.mu.Unlock()
		return
	}
	e.userID = userID
	e.set = nil
	e.mu.Unlock()

	if err := e.Reload(ctx); err != nil {
		slog.WarnContext(ctx, "permission_data_unavailable",
			logger.UserID(userID),
			logger.Error(err),
		)
	}
}

// Reload refetches the permission set for the current principal. Safe
// to retrigger manually, e.g. after an administrative role change. On
// failure the evaluator falls back to deny-all and keeps the error to
// the caller only; gated features stay usable in a degraded state.
func (e *Evaluator) Reload(ctx context.Context) error {
	e.mu.Lock()
	userID := e.userID
	if userID == "" {
		e.mu.Unlock()
		return nil
	}
	e.loading = true
	e.mu.Unlock()

	names, err := e.api.UserPermissions(ctx, e.tokens.AccessToken(), userID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading = false
	if e.userID != userID {
		// Principal changed while the fetch was in flight; the result
		// belongs to a stale identity and is discarded.
		return nil
	}
	if err != nil {
		// Degraded terminal state: an empty set, not an error.
		e.set = map[string]struct{}{}
		return fmt.Errorf("failed to load permissions: %w", err)
	}

	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	e.set = set

	e.audit.Log(ctx, audit.Event{
		Type:     audit.TypePermissionsLoad,
		UserID:   userID,
		Metadata: map[string]any{"count": len(names)},
	})
	return nil
}

// Clear drops the set and principal binding: deny-all until the next
// SetPrincipal.
func (e *Evaluator) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userID = ""
	e.set = nil
	e.loading = false
}
