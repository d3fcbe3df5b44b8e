// Package password implements PasswordService (spec.md §4.3): password
// policy validation and the hash-then-MAC credential construction that
// FlexAuth persists for every user.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"

	apperrors "github.com/allisson/flexauth/internal/errors"
)

// Argon2id parameters. These are baked into the PHC string on every hash, so
// changing them does not invalidate credentials hashed under the old
// parameters — verify always re-derives using whatever parameters the
// stored PHC string names.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 2
	argonKeyLen  = 32
	saltLen      = 16
)

const minPasswordLength = 8

// Service implements PasswordService.
type Service struct{}

// NewService creates a Service.
func NewService() *Service {
	return &Service{}
}

// Validate enforces spec.md §4.3's baseline password policy: length >= 8,
// at least one letter, at least one digit.
func (s *Service) Validate(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.New(apperrors.KindInvalidPassword, "password must be at least 8 characters long")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLetter || !hasDigit {
		return apperrors.New(apperrors.KindInvalidPassword, "password must contain at least one letter and one digit")
	}

	return nil
}

// Hash produces the stored credential string "<sha256_hex>.<salt_base64>"
// for password (spec.md §4.3):
//
//  1. a random salt is generated,
//  2. argon2id(password, salt) is computed using fixed parameters and
//     encoded as a PHC string,
//  3. sha256(phc_string) is taken as a lowercase hex digest,
//  4. the digest and the salt (base64, unpadded) are joined with ".".
func (s *Service) Hash(plainPassword string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", apperrors.Wrap(apperrors.KindCryptoFailure, "failed to generate salt", err)
	}

	phc := hashPHC(plainPassword, salt)
	digest := sha256.Sum256([]byte(phc))

	saltB64 := base64.RawStdEncoding.EncodeToString(salt)
	return hex.EncodeToString(digest[:]) + "." + saltB64, nil
}

// Verify reports whether plainPassword matches storedCredential, a string
// previously returned by Hash. Comparison is constant-time.
func (s *Service) Verify(plainPassword, storedCredential string) bool {
	idx := strings.LastIndex(storedCredential, ".")
	if idx < 0 {
		return false
	}
	storedDigestHex := storedCredential[:idx]
	saltB64 := storedCredential[idx+1:]

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}

	phc := hashPHC(plainPassword, salt)
	digest := sha256.Sum256([]byte(phc))
	computedDigestHex := hex.EncodeToString(digest[:])

	return subtle.ConstantTimeCompare([]byte(storedDigestHex), []byte(computedDigestHex)) == 1
}

// hashPHC returns the standard PHC-encoded argon2id hash string for
// password under salt, e.g.
// "$argon2id$v=19$m=65536,t=3,p=2$<salt-b64>$<hash-b64>".
func hashPHC(plainPassword string, salt []byte) string {
	hash := argon2.IDKey([]byte(plainPassword), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%s$m=%d,t=%d,p=%d$%s$%s",
		strconv.Itoa(argon2.Version),
		argonMemory,
		argonTime,
		argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}
