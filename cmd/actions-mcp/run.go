package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gonbaum/composite/pkg/audit"
	"github.com/gonbaum/composite/pkg/channels/kafka"
	"github.com/gonbaum/composite/pkg/client"
	"github.com/gonbaum/composite/pkg/cmd"
	"github.com/gonbaum/composite/pkg/dispatcher"
	"github.com/gonbaum/composite/pkg/executors/api"
	"github.com/gonbaum/composite/pkg/executors/bash"
	"github.com/gonbaum/composite/pkg/log"
	"github.com/gonbaum/composite/pkg/mcpserver"
	"github.com/gonbaum/composite/pkg/otelhelper"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
)

const (
	sinkAPI = "api"
	sinkBus = "bus"

	drainTimeout = 10 * time.Second
)

var errUnknownSink = errors.New("unknown audit sink")

// backend is where plans, action listings and audit records come from.
type backend struct {
	planner dispatcher.Planner
	lister  mcpserver.ActionLister
	writer  audit.Writer
	closers []func() error
}

func (b *backend) close(logger *slog.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	}
}

func run(ctx context.Context, command *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Setup(command.String("log-level"))

	logger := log.WithModule("mcp")

	if command.Bool("otel") {
		_, shutdown, err := otelhelper.NewTracer(ctx, "actions-mcp")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer provider", "error", err)
			}
		}()
	}

	switch command.String("audit-sink") {
	case sinkAPI, sinkBus:
	default:
		return fmt.Errorf("%w: %q", errUnknownSink, command.String("audit-sink"))
	}

	var (
		b   *backend
		err error
	)

	if command.Bool("local") {
		b, err = localBackend(ctx, command, logger)
	} else {
		b, err = remoteBackend(command)
	}

	if err != nil {
		return err
	}
	defer b.close(logger)

	if command.String("audit-sink") == sinkBus {
		writer, closeBus, err := busWriter(
			command.String("event-bus"),
			kafka.ParseBrokers(command.String("kafka-brokers")),
			command.String("host-id"),
			logger,
		)
		if err != nil {
			return err
		}

		b.writer = writer
		b.closers = append(b.closers, closeBus)
	}

	recorder := audit.NewRecorder(logger, audit.DefaultWriteTimeout, b.writer)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()

		if err := recorder.Wait(drainCtx); err != nil {
			logger.Warn("Audit writes still pending at shutdown", "error", err)
		}
	}()

	runner := dispatcher.NewRunner(
		logger,
		b.planner,
		bash.NewRunner(logger, bash.Config{RequireWhitelist: command.Bool("require-command-whitelist")}),
		recorder,
		dispatcher.RunnerConfig{MaxCompositeDepth: command.Int("max-composite-depth")},
	)

	logger.InfoContext(ctx, "Starting MCP server", "local", command.Bool("local"), "audit_sink", command.String("audit-sink"))

	return mcpserver.New(logger, b.lister, runner, version).Run(ctx, &mcp.StdioTransport{})
}

func remoteBackend(command *cli.Command) (*backend, error) {
	c, err := client.New(command.String("api-url"), client.WithToken(command.String("api-token")))
	if err != nil {
		return nil, err
	}

	return &backend{planner: c, lister: c, writer: c}, nil
}

// localBackend plans against the store in process. The dispatcher records
// api results itself and the same store receives host records.
func localBackend(ctx context.Context, command *cli.Command, logger *slog.Logger) (*backend, error) {
	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"), command.String("redis-url"))
	if err != nil {
		return nil, err
	}

	store := audit.NewStoreWriter(persistence.ActionLogRepository())
	recorder := audit.NewRecorder(logger, audit.DefaultWriteTimeout, store)

	dispatch := dispatcher.New(
		logger,
		persistence.ActionRepository(),
		persistence.CredentialRepository(),
		api.NewExecutor(logger, api.Config{}),
		recorder,
	)

	return &backend{
		planner: dispatch,
		lister:  mcpserver.NewStoreLister(persistence.ActionRepository()),
		writer:  store,
		closers: []func() error{
			func() error { return persistence.Close(context.Background()) },
			func() error {
				drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
				defer cancel()

				return recorder.Wait(drainCtx)
			},
		},
	}, nil
}

func busWriter(provider string, brokers []string, hostID string, logger *slog.Logger) (audit.Writer, func() error, error) {
	eventBus, err := cmd.NewEventBus(provider, brokers, "actions-mcp", logger)
	if err != nil {
		return nil, nil, err
	}

	if hostID == "" {
		hostID = "host-" + uuid.New().String()[:8]
	}

	return audit.NewBusWriter(eventBus, hostID), eventBus.Close, nil
}
