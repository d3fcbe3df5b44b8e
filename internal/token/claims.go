package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// TypeID and scopeRefresh name the FlexAuth token_type / scope claim values
// from spec.md §4.4.
const (
	TypeID        = "id"
	scopeRefresh  = "get_new_id_token"
	claimUID      = "uid"
	claimTokenTyp = "token_type"
	claimData     = "data"
	claimScope    = "scope"
)

// Claims is the decoded payload shared by ID and refresh tokens. Only the
// fields relevant to the token's own type are populated: an ID token carries
// TokenType and Data; a refresh token carries Scope.
type Claims struct {
	jwt.RegisteredClaims
	UID       string            `json:"uid"`
	TokenType string            `json:"token_type,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	Scope     string            `json:"scope,omitempty"`
}

// IDTokenData is the set of user fields an ID token's claims.data map
// carries (spec.md §4.4): display_name, role, is_active, is_email_verified,
// all stringified.
type IDTokenData struct {
	UID             string
	DisplayName     string
	Role            string
	IsActive        bool
	IsEmailVerified bool
}
