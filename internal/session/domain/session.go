// Package domain defines the FlexAuth session entity and its state machine
// (spec.md §3 "Session", §4.6).
package domain

import "time"

// Session is one issued id/refresh token pair for a user agent. Uid,
// SessionID, Email, UserAgent, IDToken, and RefreshToken are decrypted by
// the time a Session reaches application code — the store handles the DEK
// envelope.
type Session struct {
	Uid          string
	SessionID    string
	Email        string
	UserAgent    string
	IDToken      string
	RefreshToken string
	IsRevoked    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// State is one of the four session states spec.md §4.6 defines.
type State string

const (
	StateActive  State = "Active"
	StateStale   State = "Stale"
	StateRevoked State = "Revoked"
	StateDeleted State = "Deleted"
)

// CurrentState derives a session's state from its revocation flag and
// whether idTokenFresh (SessionManager's last verify_id result). A deleted
// session never reaches this method — its absence from the store IS the
// Deleted state.
func (s *Session) CurrentState(idTokenFresh bool) State {
	if s.IsRevoked {
		return StateRevoked
	}
	if idTokenFresh {
		return StateActive
	}
	return StateStale
}
