package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// APIKeyScheme starts every personal API key. A key reads
// rk_live_<lookup>_<secret>, e.g. rk_live_7a9f3c_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b.
const APIKeyScheme = "rk_live_"

const (
	lookupBytes = 3  // KeyPrefixLen hex chars
	secretBytes = 16 // KeySecretLen hex chars

	KeyPrefixLen = lookupBytes * 2
	KeySecretLen = secretBytes * 2
)

// ErrInvalidKeyFormat is returned for strings that cannot be a Recast API key.
var ErrInvalidKeyFormat = errors.New("invalid API key format")

// APIKey is a plaintext personal API key split into its parts. Prefix is
// stored in clear for lookup; the full key is only ever stored hashed.
type APIKey struct {
	Prefix string
	Secret string
}

// String renders the key as handed to the user.
func (k APIKey) String() string {
	return APIKeyScheme + k.Prefix + "_" + k.Secret
}

// GeneratedKey is a fresh key plus the hash to persist.
type GeneratedKey struct {
	Plaintext string // returned to the user once
	Hash      string // argon2id PHC string
	Prefix    string
}

// GenerateAPIKey mints a random key and hashes it for storage.
func GenerateAPIKey() (*GeneratedKey, error) {
	prefix, err := randomHex(lookupBytes)
	if err != nil {
		return nil, fmt.Errorf("generate key prefix: %w", err)
	}
	secret, err := randomHex(secretBytes)
	if err != nil {
		return nil, fmt.Errorf("generate key secret: %w", err)
	}

	key := APIKey{Prefix: prefix, Secret: secret}.String()
	hash, err := HashPassword(key)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}
	return &GeneratedKey{Plaintext: key, Hash: hash, Prefix: prefix}, nil
}

// ParseAPIKey splits a plaintext key. Anything other than the scheme followed
// by lowercase hex parts of the expected lengths is ErrInvalidKeyFormat.
func ParseAPIKey(s string) (APIKey, error) {
	rest, ok := strings.CutPrefix(s, APIKeyScheme)
	if !ok {
		return APIKey{}, ErrInvalidKeyFormat
	}
	prefix, secret, ok := strings.Cut(rest, "_")
	if !ok || !isLowerHex(prefix, KeyPrefixLen) || !isLowerHex(secret, KeySecretLen) {
		return APIKey{}, ErrInvalidKeyFormat
	}
	return APIKey{Prefix: prefix, Secret: secret}, nil
}

// ValidateKeyFormat reports whether s parses as an API key.
func ValidateKeyFormat(s string) bool {
	_, err := ParseAPIKey(s)
	return err == nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func isLowerHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
