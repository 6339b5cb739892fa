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
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltLength  = 16
	nonceLength = 24
	keyLength   = 32

	// Argon2id parameters for key derivation
	argonMemory      = 64 * 1024
	argonIterations  = 3
	argonParallelism = 4
)

// Cipher encrypts credential material at rest. The key is derived per
// sealed payload with Argon2id over the configured passphrase and a
// random salt stored alongside the box.
type Cipher struct {
	passphrase []byte
}

// NewCipher creates a cipher from a passphrase. Empty passphrases are
// rejected; callers wanting plaintext storage pass a nil *Cipher to the
// file store instead.
func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption passphrase is required")
	}
	return &Cipher{passphrase: []byte(passphrase)}, nil
}

// Seal encrypts plaintext. Layout: salt || nonce || box.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	var salt [saltLength]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	key := c.deriveKey(salt[:])
	out := make([]byte, 0, saltLength+nonceLength+len(plaintext)+secretbox.Overhead)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, key), nil
}

// Open decrypts a payload produced by Seal.
func (c *Cipher) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < saltLength+nonceLength+secretbox.Overhead {
		return nil, fmt.Errorf("sealed payload too short: %d bytes", len(sealed))
	}
	var nonce [nonceLength]byte
	copy(nonce[:], sealed[saltLength:saltLength+nonceLength])

	key := c.deriveKey(sealed[:saltLength])
	plaintext, ok := secretbox.Open(nil, sealed[saltLength+nonceLength:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("credential decryption failed")
	}
	return plaintext, nil
}

func (c *Cipher) deriveKey(salt []byte) *[keyLength]byte {
	var key [keyLength]byte
	derived := argon2.IDKey(c.passphrase, salt, argonIterations, argonMemory, argonParallelism, keyLength)
	copy(key[:], derived)
	return &key
}
