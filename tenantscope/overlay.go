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

package tenantscope

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ledgerview/ledgerview-core/authapi"
	"github.com/ledgerview/ledgerview-core/internal/audit"
	"github.com/ledgerview/ledgerview-core/internal/observability/logger"
	"github.com/ledgerview/ledgerview-core/session"
)

// AllTenantsLabel is the scope label for an elevated principal with no
// company selected.
const AllTenantsLabel = "All companies"

// Tenant is a company the dashboard can scope data requests to.
type Tenant struct {
	ID   string
	Name string
}

// Lister retrieves the tenant directory. Only called for elevated
// principals. *authapi.Client satisfies it.
type Lister interface {
	Companies(ctx context.Context, accessToken string) ([]authapi.Company, error)
}

// TokenSource supplies the current access token.
type TokenSource interface {
	AccessToken() string
}

// Overlay tracks the optional "acting as company X" selection for
// elevated principals. Data-fetching components must read the selection
// at the moment they issue a request, never cache it.
type Overlay struct {
	api    Lister
	tokens TokenSource
	audit  audit.Logger

	mu       sync.RWMutex
	elevated bool
	ownID    string
	ownName  string
	tenants  []Tenant
	selected string
}

// NewOverlay creates an overlay with no principal: not elevated, no
// tenants, no selection.
func NewOverlay(api Lister, tokens TokenSource, auditLogger audit.Logger) *Overlay {
	if auditLogger == nil {
		auditLogger = audit.NewSlogLogger()
	}
	return &Overlay{
		api:    api,
		tokens: tokens,
		audit:  auditLogger,
	}
}

// IsElevated reports whether the current principal may act across
// tenants. Server-derived per principal, never client-chosen.
func (o *Overlay) IsElevated() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.elevated
}

// Tenants returns the available companies. Empty unless elevated.
func (o *Overlay) Tenants() []Tenant {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Tenant, len(o.tenants))
	copy(out, o.tenants)
	return out
}

// Select sets the acting-as company. A no-op, not an error, while not
// elevated: stale UI issuing a selection after a privilege downgrade
// must not take effect. Selecting a company outside the available list
// is likewise ignored.
func (o *Overlay) Select(ctx context.Context, tenantID string) {
	o.mu.Lock()
	if !o.elevated {
		o.mu.Unlock()
		slog.DebugContext(ctx, "tenant_select_ignored", logger.CompanyID(tenantID))
		return
	}
	found := false
	for _, t := range o.tenants {
		if t.ID == tenantID {
			found = true
			break
		}
	}
	if !found {
		o.mu.Unlock()
		slog.WarnContext(ctx, "tenant_select_unknown", logger.CompanyID(tenantID))
		return
	}
	o.selected = tenantID
	o.mu.Unlock()

	o.audit.Log(ctx, audit.Event{Type: audit.TypeScopeSelected, CompanyID: tenantID})
}

// ClearSelection reverts to the unscoped view: the principal's own
// company, or all companies when elevated.
func (o *Overlay) ClearSelection(ctx context.Context) {
	o.mu.Lock()
	had := o.selected != ""
	o.selected = ""
	o.mu.Unlock()
	if had {
		o.audit.Log(ctx, audit.Event{Type: audit.TypeScopeCleared})
	}
}

// SelectedTenantID returns the current override, if any. An unset
// second return means no override: operate in the principal's own
// tenant, or across all tenants when elevated.
func (o *Overlay) SelectedTenantID() (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.elevated || o.selected == "" {
		return "", false
	}
	return o.selected, true
}

// ScopeLabel is the human-readable description of the current scope.
func (o *Overlay) ScopeLabel() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.elevated {
		if o.selected != "" {
			for _, t := range o.tenants {
				if t.ID == o.selected {
					return t.Name
				}
			}
		}
		return AllTenantsLabel
	}
	return o.ownName
}

// SetPrincipal recomputes the overlay for a new principal: elevation is
// re-derived, the tenant directory refetched when elevated, and any
// selection that survived a privilege change cleared.
func (o *Overlay) SetPrincipal(ctx context.Context, p session.Principal) {
	elevated := p.IsElevated()

	var tenants []Tenant
	if elevated {
		companies, err := o.api.Companies(ctx, o.tokens.AccessToken())
		if err != nil {
			// Degraded: elevation stands, but with no directory there
			// is nothing to select. Same deny-by-default posture as
			// the permission evaluator.
			slog.WarnContext(ctx, "tenant_directory_unavailable", logger.Error(err))
		}
		tenants = make([]Tenant, 0, len(companies))
		for _, c := range companies {
			tenants = append(tenants, Tenant{ID: c.ID, Name: c.Name})
		}
	}

	o.mu.Lock()
	o.elevated = elevated
	o.ownID = p.CompanyID
	o.ownName = p.CompanyName
	o.tenants = tenants
	o.selected = ""
	o.mu.Unlock()
}

// Clear resets the overlay on logout.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.elevated = false
	o.ownID = ""
	o.ownName = ""
	o.tenants = nil
	o.selected = ""
}

// String implements fmt.Stringer for log lines.
func (o *Overlay) String() string {
	if id, ok := o.SelectedTenantID(); ok {
		return fmt.Sprintf("tenantscope(%s)", id)
	}
	return fmt.Sprintf("tenantscope(%s)", o.ScopeLabel())
}
