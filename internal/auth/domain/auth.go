// Package domain defines AuthCoordinator's request/response shapes
// (spec.md §4.7).
package domain

import "time"

// SignUpInput is the payload for account creation.
type SignUpInput struct {
	Name      string
	Email     string
	Role      string
	Password  string
	UserAgent string
}

// SignInInput is the payload for password sign-in.
type SignInInput struct {
	Email     string
	Password  string
	UserAgent string
}

// Session bundles the tokens issued for a sign-up/sign-in, with SessionID
// re-encrypted under the owner's DEK so it is opaque to the client
// (spec.md §4.7 step 3).
type Session struct {
	SessionID    string
	IDToken      string
	RefreshToken string
}

// Response is the common shape returned by both sign-up and sign-in:
// public user fields plus the new session.
type Response struct {
	UID           string
	Name          string
	Email         string
	Role          string
	EmailVerified bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Session       Session
}
