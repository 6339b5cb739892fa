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

package credential

import (
	"sync"

	"github.com/ledgerview/ledgerview-core/authapi"
)

// Storage keys. All three are written together and cleared together,
// never independently, so a partial session cannot survive a restart.
const (
	KeyAccessToken  = "ledgerview.access_token"
	KeyRefreshToken = "ledgerview.refresh_token"
	KeyUserProfile  = "ledgerview.user"
)

// Record is the persisted session material: the token pair plus the
// cached user profile. Freshness of the tokens is not this package's
// concern; the session controller validates on load.
type Record struct {
	AccessToken  string       `json:"ledgerview.access_token"`
	RefreshToken string       `json:"ledgerview.refresh_token"`
	Profile      authapi.User `json:"ledgerview.user"`
}

// Store defines the interface for credential persistence
type Store interface {
	// Save atomically persists the full record
	Save(record *Record) error

	// Load retrieves the stored record, or nil when none is held
	Load() (*Record, error)

	// Clear removes all stored credential material
	Clear() error
}

// MemoryStore keeps credentials for the current process lifetime only.
// It is the degraded fallback when durable storage is unavailable.
type MemoryStore struct {
	mu     sync.Mutex
	record *Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.record = &copied
	return nil
}

func (s *MemoryStore) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return nil, nil
	}
	copied := *s.record
	return &copied, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = nil
	return nil
}
