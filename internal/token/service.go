// Package token implements TokenService (spec.md §4.4): RS256-signed ID and
// refresh tokens backed by a server-wide RSA key pair loaded from disk at
// startup.
package token

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/allisson/flexauth/internal/errors"
)

const (
	idTokenTTL = time.Hour

	// RefreshTokenTTL is exported so SessionManager's cleanup worker can
	// compute a session's latest-possible expiry without parsing the token.
	RefreshTokenTTL = 45 * 24 * time.Hour
)

// Service implements TokenService.
type Service struct {
	privateKey *rsa.PrivateKey
	issuer     string
}

// NewService loads the RSA private key at privateKeyPath (PKCS#1 or PKCS#8,
// PEM-encoded) and returns a Service that signs tokens with `iss` set to
// issuer.
func NewService(privateKeyPath, issuer string) (*Service, error) {
	raw, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}

	privateKey, err := parseRSAPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Service{privateKey: privateKey, issuer: issuer}, nil
}

func parseRSAPrivateKey(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not an RSA key")
	}
	return rsaKey, nil
}

// SignID signs a new ID token for data, valid for one hour.
func (s *Service) SignID(data IDTokenData) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(idTokenTTL)),
		},
		UID:       data.UID,
		TokenType: TypeID,
		Data: map[string]string{
			"display_name":      data.DisplayName,
			"role":              data.Role,
			"is_active":         strconv.FormatBool(data.IsActive),
			"is_email_verified": strconv.FormatBool(data.IsEmailVerified),
		},
	}

	return s.sign(claims)
}

// SignRefresh signs a new refresh token for uid, valid for 45 days.
func (s *Service) SignRefresh(uid string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTokenTTL)),
		},
		UID:   uid,
		Scope: scopeRefresh,
	}

	return s.sign(claims)
}

func (s *Service) sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := t.SignedString(s.privateKey)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindCryptoFailure, "failed to sign token", err)
	}
	return signed, nil
}

// VerifyID parses and verifies tokenString. fresh is true iff the token has
// not expired. An expired-but-otherwise-valid token is re-decoded with
// expiry checking disabled and returned with fresh = false, per spec.md
// §4.4 — this is what lets SessionManager tell an Active session (fresh
// id token) from a Stale one (expired id token, still-valid refresh token)
// apart.
func (s *Service) VerifyID(tokenString string) (*Claims, bool, error) {
	claims, err := s.parse(tokenString)
	if err == nil {
		return claims, true, nil
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		claims, parseErr := s.parseIgnoringExpiry(tokenString)
		if parseErr != nil {
			return nil, false, apperrors.Wrap(apperrors.KindTokenInvalid, "failed to parse expired id token", parseErr)
		}
		return claims, false, nil
	}

	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return nil, false, apperrors.Wrap(apperrors.KindSignatureInvalid, "id token signature invalid", err)
	}

	return nil, false, apperrors.Wrap(apperrors.KindTokenInvalid, "id token invalid", err)
}

// VerifyRefresh parses and strictly verifies tokenString: expired or
// malformed refresh tokens fail.
func (s *Service) VerifyRefresh(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Wrap(apperrors.KindExpiredSignature, "refresh token expired", err)
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, apperrors.Wrap(apperrors.KindSignatureInvalid, "refresh token signature invalid", err)
		}
		return nil, apperrors.Wrap(apperrors.KindTokenInvalid, "refresh token invalid", err)
	}
	return claims, nil
}

func (s *Service) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) parseIgnoringExpiry(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) keyFunc(_ *jwt.Token) (any, error) {
	return &s.privateKey.PublicKey, nil
}
