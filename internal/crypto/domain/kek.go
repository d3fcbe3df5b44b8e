package domain

import (
	"encoding/hex"
	"strings"
)

// KEK is the service-wide Key Encryption Key: a composite "<hex-key>.<hex-iv>"
// string (spec.md §4.1, §6 — SERVER_KEK, 89 chars: a 64-hex-char key, ".",
// and a 24-hex-char IV). It is loaded once from config at startup and is
// never persisted or rotated automatically; the rotate-kek command
// (cmd/app/commands/rotate_kek.go) re-wraps DekStore records under a
// replacement KEK.
type KEK string

// ParseKEK validates the "<64 hex>.<24 hex>" shape of a composite key string.
func ParseKEK(raw string) (KEK, error) {
	key, iv, ok := strings.Cut(raw, ".")
	if !ok {
		return "", ErrInvalidKeyString
	}
	keyBytes, err := hex.DecodeString(key)
	if err != nil || len(keyBytes) != KeyBytes {
		return "", ErrInvalidKeyString
	}
	ivBytes, err := hex.DecodeString(iv)
	if err != nil || len(ivBytes) != IVBytes {
		return "", ErrInvalidKeyString
	}
	return KEK(raw), nil
}

// String returns the raw composite key string.
func (k KEK) String() string { return string(k) }
