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
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ledgerview/ledgerview-core/internal/observability/logger"
)

// FileStore persists credentials to a single local file. Writes are
// atomic (temp file + rename) so a reader never observes a token paired
// with the wrong profile. When durable storage fails the store degrades
// to in-memory operation for the rest of the process lifetime instead of
// failing the caller.
type FileStore struct {
	mu       sync.Mutex
	path     string
	cipher   *Cipher
	mem      *MemoryStore
	degraded bool
}

// NewFileStore creates a file-backed store at path. cipher may be nil
// for plaintext storage.
func NewFileStore(path string, cipher *Cipher) *FileStore {
	return &FileStore{
		path:   path,
		cipher: cipher,
		mem:    NewMemoryStore(),
	}
}

func (s *FileStore) Save(record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Write-through cache, so a later storage failure cannot lose the
	// current session for this process.
	if err := s.mem.Save(record); err != nil {
		return err
	}
	if s.degraded {
		return nil
	}

	if err := s.writeFile(record); err != nil {
		s.degrade("save", err)
	}
	return nil
}

func (s *FileStore) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return s.mem.Load()
	}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		s.degrade("load", err)
		return s.mem.Load()
	}

	if s.cipher != nil {
		raw, err = s.cipher.Open(raw)
		if err != nil {
			// Undecryptable credentials are unusable credentials.
			// Treat as absent rather than poisoning bootstrap.
			slog.Warn("credential_file_undecryptable", logger.Error(err))
			return nil, nil
		}
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		slog.Warn("credential_file_corrupt", logger.Error(err))
		return nil, nil
	}
	if record.AccessToken == "" || record.RefreshToken == "" {
		return nil, nil
	}
	return &record, nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.Clear(); err != nil {
		return err
	}
	if s.degraded {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.degrade("clear", err)
	}
	return nil
}

func (s *FileStore) writeFile(record *Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if s.cipher != nil {
		raw, err = s.cipher.Seal(raw)
		if err != nil {
			return fmt.Errorf("failed to encrypt credentials: %w", err)
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o600); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, s.path)
}

// degrade switches to memory-only mode. Storage failure is never fatal.
func (s *FileStore) degrade(op string, err error) {
	s.degraded = true
	slog.Warn("credential_storage_degraded",
		logger.Operation(op),
		logger.Error(err),
	)
}
