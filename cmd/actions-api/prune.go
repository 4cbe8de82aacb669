package main

import (
	"context"

	"github.com/gonbaum/composite/pkg/cmd"
	"github.com/gonbaum/composite/pkg/log"
	"github.com/gonbaum/composite/pkg/retention"
	"github.com/gonbaum/composite/pkg/services"
	"github.com/urfave/cli/v3"
)

func PruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete action logs older than a retention window once",
		Flags: append([]cli.Flag{
			&cli.DurationFlag{
				Name:     "older-than",
				Usage:    "Retention window, e.g. 720h",
				Required: true,
				Sources:  cli.EnvVars("LOG_RETENTION"),
			},
		}, databaseFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("prune")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"), command.String("redis-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			job, err := retention.NewJob(logger, services.NewActionLog(persistence), command.Duration("older-than"), retention.DefaultSchedule)
			if err != nil {
				return err
			}

			_, err = job.RunOnce(ctx)

			return err
		},
	}
}
