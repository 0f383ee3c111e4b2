// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// EXPORT / IMPORT
// =============================================================================

// Sealed exports carry this prefix before their base64 payload.
const sealedPrefix = "enc1:"

const (
	keySize          = 32
	saltSize         = 16
	pbkdf2Iterations = 600000
)

// ErrPassphraseRequired is returned by Import for a sealed export when no
// passphrase was given.
var ErrPassphraseRequired = errors.New("export is encrypted; passphrase required")

// ErrDecrypt is returned when a sealed export cannot be opened.
var ErrDecrypt = errors.New("failed to decrypt export (wrong passphrase?)")

// Export encodes cfg as base64 JSON for copying between machines.
//
// With a non-empty passphrase the JSON is sealed with AES-256-GCM under a
// PBKDF2-SHA256 key and the result is prefixed with "enc1:". The payload
// layout is salt || nonce || ciphertext.
func Export(cfg *Config, passphrase string) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if passphrase == "" {
		return base64.StdEncoding.EncodeToString(data), nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	payload := append(append(salt, nonce...), gcm.Seal(nil, nonce, data, []byte(sealedPrefix))...)
	return sealedPrefix + base64.StdEncoding.EncodeToString(payload), nil
}

// Import decodes an Export string. Missing fields are filled with defaults
// and the result is validated.
func Import(encoded, passphrase string) (*Config, error) {
	encoded = strings.Join(strings.Fields(encoded), "")

	var data []byte
	if rest, sealed := strings.CutPrefix(encoded, sealedPrefix); sealed {
		if passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		raw, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		data, err = open(raw, passphrase)
		if err != nil {
			return nil, err
		}
	} else {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		data = raw
	}

	cfg := Default()
	cfg.resetLists()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config JSON: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// IsSealed reports whether an export string needs a passphrase.
func IsSealed(encoded string) bool {
	return strings.HasPrefix(strings.TrimSpace(encoded), sealedPrefix)
}

func open(raw []byte, passphrase string) ([]byte, error) {
	if len(raw) < saltSize {
		return nil, ErrDecrypt
	}
	salt := raw[:saltSize]
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	rest := raw[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return nil, ErrDecrypt
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, []byte(sealedPrefix))
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return gcm, nil
}
