// Package domain defines the FlexAuth user entity (spec.md §3 "User").
package domain

import "time"

// User is a FlexAuth account. Uid is an opaque identifier, assigned at
// creation and never mutated or encrypted. Name, Email, Role, and Password
// are decrypted by the caller (UserStore handles the DEK envelope) — by the
// time a User reaches application code every field is plaintext.
type User struct {
	Uid                 string
	Name                string
	Email               string
	Role                string
	Password            string
	EmailVerified       bool
	IsActive            bool
	FailedLoginAttempts int
	BlockedUntil        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsBlocked reports whether now falls within the user's current lockout
// window (spec.md §4.5).
func (u *User) IsBlocked(now time.Time) bool {
	return u.BlockedUntil != nil && u.BlockedUntil.After(now)
}

// FailedLoginThresholds maps a failed_login_attempts count to the lockout
// duration applied once that count is reached (spec.md §4.5: "5 -> block
// 180s, 10 -> block 600s, 15 -> block 3600s"; no threshold is defined above
// 15, so the counter keeps rising with no further lockout extension).
var FailedLoginThresholds = map[int]time.Duration{
	5:  180 * time.Second,
	10: 600 * time.Second,
	15: 3600 * time.Second,
}
