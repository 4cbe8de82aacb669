package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gonbaum/composite/pkg/audit"
	"github.com/gonbaum/composite/pkg/channels/kafka"
	"github.com/gonbaum/composite/pkg/cmd"
	"github.com/gonbaum/composite/pkg/dispatcher"
	"github.com/gonbaum/composite/pkg/events"
	"github.com/gonbaum/composite/pkg/executors/api"
	"github.com/gonbaum/composite/pkg/executors/bash"
	"github.com/gonbaum/composite/pkg/log"
	"github.com/gonbaum/composite/pkg/otelhelper"
	"github.com/gonbaum/composite/pkg/retention"
	"github.com/gonbaum/composite/pkg/services"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

func RunAPICommand() *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "api-token",
			Usage:   "Bearer token required on /api routes (disabled when empty)",
			Sources: cli.EnvVars("ACTIONS_API_TOKEN"),
		},
		&cli.BoolFlag{
			Name:    "local-execution",
			Usage:   "Run bash and composite actions in this process instead of returning plans",
			Sources: cli.EnvVars("LOCAL_EXECUTION"),
		},
		&cli.BoolFlag{
			Name:    "require-command-whitelist",
			Usage:   "Reject bash actions that declare no allowed commands (local execution only)",
			Sources: cli.EnvVars("REQUIRE_COMMAND_WHITELIST"),
		},
		&cli.IntFlag{
			Name:    "max-composite-depth",
			Usage:   "Maximum composite nesting depth (local execution only)",
			Sources: cli.EnvVars("MAX_COMPOSITE_DEPTH"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type used to receive audit records from hosts (kafka, gochannel; disabled when empty)",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.DurationFlag{
			Name:    "log-retention",
			Usage:   "Delete action logs older than this (disabled when zero)",
			Sources: cli.EnvVars("LOG_RETENTION"),
		},
		&cli.StringFlag{
			Name:    "retention-schedule",
			Usage:   "Cron schedule of the action log pruning",
			Value:   retention.DefaultSchedule,
			Sources: cli.EnvVars("RETENTION_SCHEDULE"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start api",
		Flags:   append(flags, databaseFlags()...),
		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Setup(command.String("log-level"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Actions API")

			if command.Bool("otel") {
				_, shutdown, err := otelhelper.NewTracer(ctx, "actions-api")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				defer func() {
					if err := shutdown(context.Background()); err != nil {
						logger.Error("Failed to shutdown tracer provider", "error", err)
					}
				}()
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"), command.String("redis-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(context.Background()); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			recorder := audit.NewRecorder(logger, audit.DefaultWriteTimeout, audit.NewStoreWriter(persistence.ActionLogRepository()))
			defer func() {
				waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if err := recorder.Wait(waitCtx); err != nil {
					logger.Warn("Audit writes still pending at shutdown", "error", err)
				}
			}()

			dispatch := dispatcher.New(
				logger,
				persistence.ActionRepository(),
				persistence.CredentialRepository(),
				api.NewExecutor(logger, api.Config{}),
				recorder,
			)

			var planner dispatcher.Planner = dispatch
			if command.Bool("local-execution") {
				logger.InfoContext(ctx, "Local execution enabled")

				planner = dispatcher.NewRunner(
					logger,
					dispatch,
					bash.NewRunner(logger, bash.Config{RequireWhitelist: command.Bool("require-command-whitelist")}),
					recorder,
					dispatcher.RunnerConfig{MaxCompositeDepth: command.Int("max-composite-depth")},
				)
			}

			if provider := command.String("event-bus"); provider != "" {
				eventBus, err := cmd.NewEventBus(provider, kafka.ParseBrokers(command.String("kafka-brokers")), "actions-api", logger)
				if err != nil {
					return err
				}

				defer func() {
					if err := eventBus.Close(); err != nil {
						logger.Error("Failed to close event bus", "error", err)
					}
				}()

				if err := eventBus.Handle(events.ActionExecutedEvent, audit.Consume(persistence.ActionLogRepository())); err != nil {
					return err
				}

				if err := eventBus.Subscribe(ctx); err != nil {
					return fmt.Errorf("failed to subscribe to event bus: %w", err)
				}
			}

			if window := command.Duration("log-retention"); window > 0 {
				job, err := retention.NewJob(logger, services.NewActionLog(persistence), window, command.String("retention-schedule"))
				if err != nil {
					return err
				}

				if err := job.Start(); err != nil {
					return err
				}

				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()

					if err := job.Stop(stopCtx); err != nil {
						logger.Error("Failed to stop retention job", "error", err)
					}
				}()
			}

			app := NewAPI(logger, persistence, planner, dispatch, command.String("api-token")).App()

			go func() {
				<-ctx.Done()

				if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
					logger.Error("Failed to shutdown API server", "error", err)
				}
			}()

			if err := app.Listen(fmt.Sprintf(":%d", command.Int("port"))); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}
}
