// Package auth verifies caller identity. Production deployments verify
// Firebase ID tokens; local development uses PASETO v4 tokens minted by the
// operator CLI.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// PASETO v4 requires a 256-bit (32-byte) symmetric key.
	keyLength = 32
	// Expected hex-encoded length (32 bytes = 64 hex characters).
	keyHexLength = 64

	keyDerivationInfo = "bookshare local session tokens v1"
)

// DeriveKey stretches an operator-provided secret into a PASETO key.
// The same secret always yields the same key.
func DeriveKey(secret string) ([]byte, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("auth secret must be at least 16 characters, got %d", len(secret))
	}

	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyDerivationInfo))
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive auth key: %w", err)
	}
	return key, nil
}

// LoadOrGenerateKey loads the hex-encoded PASETO key at keyPath, generating
// and saving a new one if the file doesn't exist.
func LoadOrGenerateKey(keyPath string) ([]byte, error) {
	//#nosec G304 -- key path comes from operator configuration
	if keyBytes, err := os.ReadFile(keyPath); err == nil {
		keyHex := strings.TrimSpace(string(keyBytes))

		if len(keyHex) != keyHexLength {
			return nil, fmt.Errorf("invalid auth key length: expected %d hex chars, got %d", keyHexLength, len(keyHex))
		}

		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid auth key format: not valid hex: %w", err)
		}

		return key, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read auth key: %w", err)
	}

	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate auth key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to save auth key: %w", err)
	}

	return key, nil
}

// LocalKey returns the key for the local provider: derived from secret when
// one is configured, otherwise loaded from (or generated at) keyPath.
func LocalKey(secret, keyPath string) ([]byte, error) {
	if secret != "" {
		return DeriveKey(secret)
	}
	return LoadOrGenerateKey(keyPath)
}
