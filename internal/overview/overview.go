// Package overview implements the read-only aggregated-counts rollup
// backing /api/overview/get-all (spec.md §6, SPEC_FULL.md §4.10).
package overview

import "context"

// UserCounter is the subset of user/store.Store the Service rolls up.
type UserCounter interface {
	Count(ctx context.Context) (int64, error)
	CountPendingResets(ctx context.Context) (int64, error)
	CountPendingVerifications(ctx context.Context) (int64, error)
}

// SessionCounter is the subset of session/store.Store the Service rolls up.
type SessionCounter interface {
	CountActive(ctx context.Context) (int64, error)
}

// Counts is the aggregated snapshot /api/overview/get-all returns.
type Counts struct {
	Users                int64 `json:"users"`
	ActiveSessions       int64 `json:"active_sessions"`
	PendingResets        int64 `json:"pending_resets"`
	PendingVerifications int64 `json:"pending_verifications"`
}

// Service computes Counts by delegating to each store's own count method.
type Service struct {
	users    UserCounter
	sessions SessionCounter
}

// NewService creates a Service.
func NewService(users UserCounter, sessions SessionCounter) *Service {
	return &Service{users: users, sessions: sessions}
}

// GetAll returns the current aggregated counts.
func (s *Service) GetAll(ctx context.Context) (*Counts, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	activeSessions, err := s.sessions.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	pendingResets, err := s.users.CountPendingResets(ctx)
	if err != nil {
		return nil, err
	}
	pendingVerifications, err := s.users.CountPendingVerifications(ctx)
	if err != nil {
		return nil, err
	}

	return &Counts{
		Users:                users,
		ActiveSessions:       activeSessions,
		PendingResets:        pendingResets,
		PendingVerifications: pendingVerifications,
	}, nil
}
