package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/flexauth/internal/crypto/domain"

	// Register all KMS provider drivers so SERVER_KEK can reference any of them
	// by URI scheme.
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// KeyProvisioner resolves the SERVER_KEK config value into a usable
// cryptoDomain.KEK at startup (spec.md §6, SPEC_FULL.md §4.1).
//
// SERVER_KEK is either:
//   - a literal "<64 hex>.<24 hex>" composite key string, or
//   - a "kms-wrapped:<kms-uri>:<base64 ciphertext>" reference, in which case
//     the ciphertext is decrypted via gocloud.dev/secrets to recover the
//     literal composite key string.
//
// This lets operators keep the KEK out of plaintext config by storing it
// encrypted under a cloud KMS key and only ever configuring the KMS URI plus
// the wrapped blob.
type KeyProvisioner interface {
	Resolve(ctx context.Context, rawServerKEK string) (cryptoDomain.KEK, error)
}

const kmsWrappedPrefix = "kms-wrapped:"

type keyProvisioner struct{}

// NewKeyProvisioner creates a KeyProvisioner.
func NewKeyProvisioner() KeyProvisioner {
	return &keyProvisioner{}
}

// Resolve implements KeyProvisioner.
func (p *keyProvisioner) Resolve(ctx context.Context, rawServerKEK string) (cryptoDomain.KEK, error) {
	if !strings.HasPrefix(rawServerKEK, kmsWrappedPrefix) {
		return cryptoDomain.ParseKEK(rawServerKEK)
	}

	rest := strings.TrimPrefix(rawServerKEK, kmsWrappedPrefix)
	// The KMS URI itself contains ":" (scheme://...), and base64 never does,
	// so the ciphertext starts after the last ":".
	sep := strings.LastIndex(rest, ":")
	if sep < 0 {
		return "", cryptoDomain.ErrInvalidKeyString
	}
	kmsURI, wrappedB64 := rest[:sep], rest[sep+1:]

	wrapped, err := base64.StdEncoding.DecodeString(wrappedB64)
	if err != nil {
		return "", cryptoDomain.ErrInvalidKeyString
	}

	keeper, err := secrets.OpenKeeper(ctx, kmsURI)
	if err != nil {
		return "", fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer keeper.Close()

	plaintext, err := keeper.Decrypt(ctx, wrapped)
	if err != nil {
		return "", fmt.Errorf("failed to unwrap server KEK via KMS: %w", err)
	}

	return cryptoDomain.ParseKEK(string(plaintext))
}
