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
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerview/ledgerview-core/authapi"
	"github.com/ledgerview/ledgerview-core/session"
)

type fakeLister struct {
	companies []authapi.Company
	err       error
	calls     atomic.Int32
}

func (f *fakeLister) Companies(ctx context.Context, accessToken string) ([]authapi.Company, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.companies, nil
}

type staticToken string

func (s staticToken) AccessToken() string { return string(s) }

var directory = []authapi.Company{
	{ID: "c1", Name: "Acme"},
	{ID: "tenant-42", Name: "Globex"},
	{ID: "c3", Name: "Initech"},
}

func adminPrincipal() session.Principal {
	return session.Principal{
		ID:          "u1",
		Role:        session.RoleAdmin,
		CompanyID:   "c1",
		CompanyName: "Acme",
	}
}

func viewerPrincipal() session.Principal {
	return session.Principal{
		ID:          "u2",
		Role:        session.RoleViewer,
		CompanyID:   "c1",
		CompanyName: "Acme",
	}
}

func newOverlay(lister *fakeLister) *Overlay {
	return NewOverlay(lister, staticToken("t1"), nil)
}

func TestOverlay_ElevatedPrincipal(t *testing.T) {
	lister := &fakeLister{companies: directory}
	o := newOverlay(lister)

	o.SetPrincipal(context.Background(), adminPrincipal())

	assert.True(t, o.IsElevated())
	assert.Len(t, o.Tenants(), 3)
	assert.Equal(t, int32(1), lister.calls.Load())

	_, ok := o.SelectedTenantID()
	assert.False(t, ok)
	assert.Equal(t, AllTenantsLabel, o.ScopeLabel())
}

func TestOverlay_NonElevatedPrincipal(t *testing.T) {
	lister := &fakeLister{companies: directory}
	o := newOverlay(lister)

	o.SetPrincipal(context.Background(), viewerPrincipal())

	assert.False(t, o.IsElevated())
	assert.Empty(t, o.Tenants())
	assert.Equal(t, int32(0), lister.calls.Load(), "directory fetched only when elevated")
	assert.Equal(t, "Acme", o.ScopeLabel())
}

func TestOverlay_SelectAndClear(t *testing.T) {
	o := newOverlay(&fakeLister{companies: directory})
	o.SetPrincipal(context.Background(), adminPrincipal())

	o.Select(context.Background(), "tenant-42")

	id, ok := o.SelectedTenantID()
	assert.True(t, ok)
	assert.Equal(t, "tenant-42", id)
	assert.Equal(t, "Globex", o.ScopeLabel())

	o.ClearSelection(context.Background())
	_, ok = o.SelectedTenantID()
	assert.False(t, ok)
	assert.Equal(t, AllTenantsLabel, o.ScopeLabel())
}

// TestPurpose: Validates the downgrade guard on tenant selection.
// Scope: Unit Test
// Security: Stale UI must not scope requests after a privilege downgrade
// Expected: Select while not elevated leaves the selection unset and the
// scope label reporting the principal's own company.
// Test Case ID: TSC-01
func TestOverlay_SelectIgnoredWhenNotElevated(t *testing.T) {
	o := newOverlay(&fakeLister{companies: directory})
	o.SetPrincipal(context.Background(), viewerPrincipal())

	o.Select(context.Background(), "tenant-42")

	_, ok := o.SelectedTenantID()
	assert.False(t, ok)
	assert.Equal(t, "Acme", o.ScopeLabel())
}

func TestOverlay_SelectUnknownTenantIgnored(t *testing.T) {
	o := newOverlay(&fakeLister{companies: directory})
	o.SetPrincipal(context.Background(), adminPrincipal())

	o.Select(context.Background(), "no-such-company")

	_, ok := o.SelectedTenantID()
	assert.False(t, ok)
}

func TestOverlay_PrincipalChangeClearsSelection(t *testing.T) {
	o := newOverlay(&fakeLister{companies: directory})
	o.SetPrincipal(context.Background(), adminPrincipal())
	o.Select(context.Background(), "tenant-42")

	// Downgrade: the selection must not survive.
	o.SetPrincipal(context.Background(), viewerPrincipal())

	assert.False(t, o.IsElevated())
	_, ok := o.SelectedTenantID()
	assert.False(t, ok)
	assert.Empty(t, o.Tenants())
}

func TestOverlay_DirectoryFailureDegrades(t *testing.T) {
	lister := &fakeLister{err: errors.New("companies endpoint down")}
	o := newOverlay(lister)

	o.SetPrincipal(context.Background(), adminPrincipal())

	assert.True(t, o.IsElevated(), "elevation stands; only the directory is missing")
	assert.Empty(t, o.Tenants())

	// Nothing to select against, so selection stays unset.
	o.Select(context.Background(), "tenant-42")
	_, ok := o.SelectedTenantID()
	assert.False(t, ok)
}

func TestOverlay_ClearResetsEverything(t *testing.T) {
	o := newOverlay(&fakeLister{companies: directory})
	o.SetPrincipal(context.Background(), adminPrincipal())
	o.Select(context.Background(), "tenant-42")

	o.Clear()

	assert.False(t, o.IsElevated())
	assert.Empty(t, o.Tenants())
	_, ok := o.SelectedTenantID()
	assert.False(t, ok)
	assert.Equal(t, "", o.ScopeLabel())
}
