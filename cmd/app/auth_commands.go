package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/flexauth/cmd/app/commands"
	"github.com/allisson/flexauth/internal/app"
	"github.com/allisson/flexauth/internal/config"
)

func getAuthCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-admin",
			Usage: "Create the first administrator account, bypassing the signup endpoint's x-api-key gateway",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "name",
					Aliases:  []string{"n"},
					Required: true,
					Usage:    "Administrator's display name",
				},
				&cli.StringFlag{
					Name:     "email",
					Aliases:  []string{"e"},
					Required: true,
					Usage:    "Administrator's email address",
				},
				&cli.StringFlag{
					Name:     "password",
					Aliases:  []string{"p"},
					Required: true,
					Usage:    "Administrator's password",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				coordinator, err := container.AuthCoordinator(ctx)
				if err != nil {
					return fmt.Errorf("failed to initialize auth coordinator: %w", err)
				}

				return commands.RunCreateAdmin(
					ctx,
					coordinator,
					container.Logger(),
					os.Stdout,
					cmd.String("name"),
					cmd.String("email"),
					cmd.String("password"),
				)
			},
		},
		{
			Name:  "clean-expired",
			Usage: "Delete expired password reset and email verification requests",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				users, err := container.UserStore(ctx)
				if err != nil {
					return fmt.Errorf("failed to initialize user store: %w", err)
				}

				return commands.RunCleanExpired(ctx, users, container.Logger(), os.Stdout)
			},
		},
		{
			Name:  "clean-expired-sessions",
			Usage: "Delete expired and revoked sessions past their retention window",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				sessions, err := container.SessionStore(ctx)
				if err != nil {
					return fmt.Errorf("failed to initialize session store: %w", err)
				}

				return commands.RunCleanExpiredSessions(ctx, sessions, container.Logger(), os.Stdout)
			},
		},
	}
}
