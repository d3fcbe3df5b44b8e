package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/flexauth/cmd/app/commands"
	"github.com/allisson/flexauth/internal/app"
	"github.com/allisson/flexauth/internal/config"
	cryptoService "github.com/allisson/flexauth/internal/crypto/service"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "rotate-kek",
			Usage: "Re-encrypt every DEK record from one server KEK to another",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "old-kek",
					Required: true,
					Usage:    "Current server KEK (literal \"<64hex>.<24hex>\" or \"kms-wrapped:<uri>:<ciphertext>\")",
				},
				&cli.StringFlag{
					Name:     "new-kek",
					Required: true,
					Usage:    "New server KEK to rewrap DEK records under",
				},
				&cli.IntFlag{
					Name:  "batch-size",
					Value: 100,
					Usage: "Number of DEK records to log progress for per batch",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				db, err := container.DB(ctx)
				if err != nil {
					return fmt.Errorf("failed to connect to database: %w", err)
				}

				provisioner := cryptoService.NewKeyProvisioner()

				oldKEK, err := provisioner.Resolve(ctx, cmd.String("old-kek"))
				if err != nil {
					return fmt.Errorf("failed to resolve old-kek: %w", err)
				}

				newKEK, err := provisioner.Resolve(ctx, cmd.String("new-kek"))
				if err != nil {
					return fmt.Errorf("failed to resolve new-kek: %w", err)
				}

				return commands.RunRotateKek(
					ctx,
					db,
					container.CryptoService(),
					oldKEK,
					newKEK,
					int(cmd.Int("batch-size")),
					container.Logger(),
					os.Stdout,
				)
			},
		},
	}
}
