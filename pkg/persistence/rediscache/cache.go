// Package rediscache wraps a persistence backend with a redis read-through
// cache of action definitions looked up by name.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a cached definition may be served.
const DefaultTTL = time.Minute

const keyPrefix = "actions:action:"

// Persistence is a persistence.Persistence whose action lookups go through redis.
type Persistence struct {
	persistence.Persistence

	client  redis.UniversalClient
	actions *ActionRepository
}

// Wrap decorates inner. Every other repository is served by inner unchanged.
func Wrap(inner persistence.Persistence, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Persistence {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Persistence{
		Persistence: inner,
		client:      client,
		actions: &ActionRepository{
			inner:  inner.ActionRepository(),
			client: client,
			ttl:    ttl,
			logger: logger.With("module", "rediscache"),
		},
	}
}

// NewClient parses a redis:// URL.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return redis.NewClient(opts), nil
}

func (p *Persistence) ActionRepository() persistence.ActionRepository {
	return p.actions
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	return p.Persistence.HealthCheck(ctx)
}

func (p *Persistence) Close(ctx context.Context) error {
	return errors.Join(p.Persistence.Close(ctx), p.client.Close())
}

// ActionRepository caches GetByName. Cache errors are never fatal: the
// request falls through to the underlying store.
type ActionRepository struct {
	inner  persistence.ActionRepository
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func cacheKey(name string) string {
	return keyPrefix + name
}

func (r *ActionRepository) List(ctx context.Context, opts persistence.ListActionsOptions) (*persistence.ActionListResult, error) {
	return r.inner.List(ctx, opts)
}

func (r *ActionRepository) GetByID(ctx context.Context, id string) (*models.Action, error) {
	return r.inner.GetByID(ctx, id)
}

func (r *ActionRepository) GetByName(ctx context.Context, name string, enabledOnly bool) (*models.Action, error) {
	action, ok := r.cached(ctx, name)
	if !ok {
		var err error

		action, err = r.inner.GetByName(ctx, name, false)
		if err != nil {
			return nil, err
		}

		r.store(ctx, action)
	}

	if enabledOnly && !action.Enabled {
		return nil, persistence.NewActionError("GetByName", name, persistence.ErrActionNotFound)
	}

	return action, nil
}

func (r *ActionRepository) Save(ctx context.Context, action *models.Action) error {
	keys := []string{cacheKey(action.Name)}

	if action.ID != "" {
		previous, err := r.inner.GetByID(ctx, action.ID)
		if err == nil && previous.Name != action.Name {
			keys = append(keys, cacheKey(previous.Name))
		}
	}

	err := r.inner.Save(ctx, action)
	if err != nil {
		return err
	}

	r.invalidate(ctx, keys...)

	return nil
}

func (r *ActionRepository) Delete(ctx context.Context, id string) error {
	previous, lookupErr := r.inner.GetByID(ctx, id)

	err := r.inner.Delete(ctx, id)
	if err != nil {
		return err
	}

	if lookupErr == nil {
		r.invalidate(ctx, cacheKey(previous.Name))
	}

	return nil
}

func (r *ActionRepository) cached(ctx context.Context, name string) (*models.Action, bool) {
	payload, err := r.client.Get(ctx, cacheKey(name)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Debug("Cache read failed", "action", name, "error", err)
		}

		return nil, false
	}

	action, err := models.DecodeAction(payload)
	if err != nil {
		r.logger.Warn("Discarding invalid cached action", "action", name, "error", err)
		r.invalidate(ctx, cacheKey(name))

		return nil, false
	}

	return action, true
}

func (r *ActionRepository) store(ctx context.Context, action *models.Action) {
	payload, err := json.Marshal(action)
	if err != nil {
		return
	}

	err = r.client.Set(ctx, cacheKey(action.Name), payload, r.ttl).Err()
	if err != nil {
		r.logger.Debug("Cache write failed", "action", action.Name, "error", err)
	}
}

func (r *ActionRepository) invalidate(ctx context.Context, keys ...string) {
	err := r.client.Del(ctx, keys...).Err()
	if err != nil {
		r.logger.Warn("Cache invalidation failed", "keys", keys, "error", err)
	}
}
