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

package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusUnauthenticated, "unauthenticated"},
		{StatusAuthenticating, "authenticating"},
		{StatusAuthenticated, "authenticated"},
		{StatusRefreshing, "refreshing"},
		{StatusExpired, "expired"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

// A session exists iff the status is Authenticated or Refreshing.
func TestStatus_Usable(t *testing.T) {
	assert.True(t, StatusAuthenticated.Usable())
	assert.True(t, StatusRefreshing.Usable())
	assert.False(t, StatusUnauthenticated.Usable())
	assert.False(t, StatusAuthenticating.Usable())
	assert.False(t, StatusExpired.Usable())
}

func TestPrincipal_IsElevated(t *testing.T) {
	assert.True(t, Principal{Role: RoleAdmin}.IsElevated())
	assert.False(t, Principal{Role: RoleAccountant}.IsElevated())
	assert.False(t, Principal{Role: RoleViewer}.IsElevated())
	assert.False(t, Principal{}.IsElevated())
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)

	assert.True(t, TokenExpiry(signed).Equal(exp))
}

func TestTokenExpiry_Opaque(t *testing.T) {
	// Opaque tokens carry no claims; the zero time signals "unknown".
	assert.True(t, TokenExpiry("not-a-jwt").IsZero())
	assert.True(t, TokenExpiry("").IsZero())
}

func TestTokenExpiry_NoExpClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	assert.True(t, TokenExpiry(signed).IsZero())
}
