// Package main provides the actions-mcp command: an MCP server on stdio that
// exposes the action store to agents and runs bash and composite actions on
// this host.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

const (
	version       = "0.1.0"
	defaultAPIURL = "http://localhost:9091"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		// stdout belongs to the protocol.
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "actions-mcp",
		Usage:                 "Serve list_actions and execute_action over MCP on stdio",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Base URL of the actions API",
				Value:   defaultAPIURL,
				Sources: cli.EnvVars("ACTIONS_API_URL"),
			},
			&cli.StringFlag{
				Name:    "api-token",
				Usage:   "Bearer token for the actions API",
				Sources: cli.EnvVars("ACTIONS_API_TOKEN"),
			},
			&cli.BoolFlag{
				Name:    "local",
				Usage:   "Read the action store directly instead of going through the API",
				Sources: cli.EnvVars("ACTIONS_LOCAL"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL, used with --local",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for caching action lookups, used with --local",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "audit-sink",
				Usage:   "Where host-side audit records go (api, bus)",
				Value:   sinkAPI,
				Sources: cli.EnvVars("AUDIT_SINK"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type for --audit-sink bus (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "host-id",
				Usage:   "Identifier of this host in published events (auto-generated if not provided)",
				Sources: cli.EnvVars("HOST_ID"),
			},
			&cli.BoolFlag{
				Name:    "require-command-whitelist",
				Usage:   "Reject bash actions that declare no allowed commands",
				Sources: cli.EnvVars("REQUIRE_COMMAND_WHITELIST"),
			},
			&cli.IntFlag{
				Name:    "max-composite-depth",
				Usage:   "Maximum composite nesting depth",
				Sources: cli.EnvVars("MAX_COMPOSITE_DEPTH"),
			},
			&cli.BoolFlag{
				Name:    "otel",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}
}
