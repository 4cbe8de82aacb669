package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gonbaum/composite/pkg/cmd"
	"github.com/gonbaum/composite/pkg/log"
	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/seed"
	"github.com/gonbaum/composite/pkg/services"
	"github.com/urfave/cli/v3"
)

func SeedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Load action definitions into the store, upserting by name",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "YAML file with an actions list (the built-in demo set when empty)",
			},
			&cli.BoolFlag{
				Name:  "clean",
				Usage: "Delete every stored action and credential first",
			},
		}, databaseFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("seed")

			actions, err := loadSeed(command.String("file"))
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"), command.String("redis-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			actionService := services.NewAction(persistence, validator.New(validator.WithRequiredStructEnabled()))

			summary, err := seed.NewSeeder(logger, persistence, actionService).Seed(ctx, actions, command.Bool("clean"))
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Seed complete",
				"created", summary.Created,
				"updated", summary.Updated,
				"deleted", summary.Deleted,
			)

			return nil
		},
	}
}

func loadSeed(path string) ([]*models.Action, error) {
	if path == "" {
		return seed.Defaults()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	return seed.Parse(data)
}
