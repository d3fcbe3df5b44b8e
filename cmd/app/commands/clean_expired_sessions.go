package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// SessionCleaner is the subset of session/store.Store the
// clean-expired-sessions command depends on.
type SessionCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// RunCleanExpiredSessions performs a single sweep of expired, revoked
// sessions (SPEC_FULL.md §4.6 `clean-expired-sessions`) — the same pass the
// `serve` command's background worker runs on a timer.
func RunCleanExpiredSessions(ctx context.Context, sessions SessionCleaner, logger *slog.Logger, writer io.Writer) error {
	deleted, err := sessions.CleanExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean expired sessions: %w", err)
	}

	logger.Info("cleaned expired sessions", slog.Int64("deleted", deleted))
	_, _ = fmt.Fprintf(writer, "Deleted %d expired session(s)\n", deleted)
	return nil
}
