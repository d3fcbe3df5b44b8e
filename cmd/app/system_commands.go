package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/flexauth/cmd/app/commands"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "serve",
			Usage: "Start the HTTP server, metrics server, and background session cleanup",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
	}
}
