// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/gonbaum/composite/pkg/persistence/file"
	"github.com/gonbaum/composite/pkg/persistence/postgresql"
	"github.com/gonbaum/composite/pkg/persistence/rediscache"
)

// DefaultDatabaseURL keeps everything in ./data as JSON files.
const DefaultDatabaseURL = "file://./data"

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

// NewPersistence opens the store named by databaseURL. When redisURL is set,
// action lookups go through a redis read-through cache.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL, redisURL string) (persistence.Persistence, error) {
	if databaseURL == "" {
		databaseURL = DefaultDatabaseURL
	}

	var (
		store persistence.Persistence
		err   error
	)

	switch provider := parsePersistenceProvider(databaseURL); provider {
	case "postgres", "postgresql":
		store, err = postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres persistence: %w", err)
		}
	case "file":
		store = file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	default:
		return nil, fmt.Errorf("unsupported persistence provider %q, supported: %s",
			provider, strings.Join(supportedPersistenceProviders, ", "))
	}

	if redisURL == "" {
		return store, nil
	}

	client, err := rediscache.NewClient(redisURL)
	if err != nil {
		_ = store.Close(ctx)

		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	return rediscache.Wrap(store, client, rediscache.DefaultTTL, logger), nil
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
