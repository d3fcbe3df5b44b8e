package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// UserRequestCleaner is the subset of user/store.Store the clean-expired
// command depends on.
type UserRequestCleaner interface {
	CleanExpired(ctx context.Context) (resets int64, verifications int64, err error)
}

// RunCleanExpired deletes expired password-reset and email-verification
// requests (SPEC_FULL.md §2 CLI `clean-expired`).
func RunCleanExpired(ctx context.Context, users UserRequestCleaner, logger *slog.Logger, writer io.Writer) error {
	resets, verifications, err := users.CleanExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean expired requests: %w", err)
	}

	logger.Info("cleaned expired requests",
		slog.Int64("password_resets", resets),
		slog.Int64("email_verifications", verifications),
	)
	_, _ = fmt.Fprintf(writer, "Deleted %d expired password reset request(s) and %d expired email verification request(s)\n",
		resets, verifications)
	return nil
}
