package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	authCoordinator "github.com/allisson/flexauth/internal/auth/coordinator"
	authDomain "github.com/allisson/flexauth/internal/auth/domain"
)

// RunCreateAdmin creates the first administrator account by calling
// AuthCoordinator.SignUp directly with role "admin", bypassing the
// `/api/auth/signup` endpoint's x-api-key gateway for bootstrap (spec.md §6
// names `create-admin` as a CLI-only operation for exactly this reason).
func RunCreateAdmin(
	ctx context.Context,
	coordinator authCoordinator.AuthCoordinator,
	logger *slog.Logger,
	writer io.Writer,
	name string,
	email string,
	password string,
) error {
	logger.Info("creating admin account", slog.String("email", email))

	resp, err := coordinator.SignUp(ctx, authDomain.SignUpInput{
		Name:      name,
		Email:     email,
		Role:      "admin",
		Password:  password,
		UserAgent: "flexauth-cli/create-admin",
	})
	if err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	logger.Info("admin account created", slog.String("uid", resp.UID), slog.String("email", resp.Email))
	_, _ = fmt.Fprintf(writer, "Admin account created: uid=%s email=%s\n", resp.UID, resp.Email)
	return nil
}
