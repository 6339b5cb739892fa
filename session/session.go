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
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ledgerview/ledgerview-core/authapi"
)

// Domain errors
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionExpired       = errors.New("session expired")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrAlreadyAuthenticated = errors.New("a session is already active")
	ErrLoginThrottled       = errors.New("too many login attempts")
)

// Status is the session state. The controller is its single writer;
// every other component only reads it.
type Status int

const (
	StatusUnauthenticated Status = iota
	StatusAuthenticating
	StatusAuthenticated
	StatusRefreshing
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticating:
		return "authenticating"
	case StatusAuthenticated:
		return "authenticated"
	case StatusRefreshing:
		return "refreshing"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Usable reports whether a session exists in this status. Holds the
// invariant: a session exists iff the status is Authenticated or
// Refreshing.
func (s Status) Usable() bool {
	return s == StatusAuthenticated || s == StatusRefreshing
}

// Role names issued by the remote API. Elevation is a server-granted
// capability carried in the profile, never a client-chosen flag.
const (
	RoleAdmin      = "admin"
	RoleAccountant = "accountant"
	RoleViewer     = "viewer"
)

// Principal is an immutable snapshot of the authenticated identity.
// A new value replaces the old one atomically under the controller's
// lock; it is never mutated field by field.
type Principal struct {
	ID          string
	DisplayName string
	Email       string
	Role        string
	CompanyID   string
	CompanyName string
}

// IsElevated reports whether the principal may act across tenants.
func (p Principal) IsElevated() bool {
	return p.Role == RoleAdmin
}

func principalFromUser(u authapi.User) Principal {
	return Principal{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Role:        u.Role,
		CompanyID:   u.CompanyID,
		CompanyName: u.CompanyName,
	}
}

func (p Principal) toUser() authapi.User {
	return authapi.User{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		Role:        p.Role,
		CompanyID:   p.CompanyID,
		CompanyName: p.CompanyName,
	}
}

// Session pairs the token material with the principal it belongs to.
type Session struct {
	AccessToken  string
	RefreshToken string
	Principal    Principal
}

// TokenExpiry extracts the exp claim from the access token without
// verifying the signature. Signature validation is the server's job;
// the client only uses the claim for logging and bootstrap hints.
// Returns the zero time when the token carries no usable claim.
func TokenExpiry(accessToken string) time.Time {
	parser := jwt.NewParser()
	var claims jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
