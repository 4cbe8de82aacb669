package composite

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultMaxDepth bounds how deeply composites may nest.
const DefaultMaxDepth = 8

var (
	// ErrCycle indicates a composite reached itself through its own steps.
	ErrCycle = errors.New("composite cycle detected")

	// ErrMaxDepth indicates composites are nested deeper than allowed.
	ErrMaxDepth = errors.New("composite nesting too deep")
)

type chainKey struct{}

// Chain returns the composite actions currently executing, outermost first.
func Chain(ctx context.Context) []string {
	chain, _ := ctx.Value(chainKey{}).([]string)

	return chain
}

// Enter records that action is starting as a composite. It fails when the
// action is already on the chain or the chain is maxDepth long.
func Enter(ctx context.Context, action string, maxDepth int) (context.Context, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	chain := Chain(ctx)

	if slices.Contains(chain, action) {
		return ctx, fmt.Errorf("%w: %s", ErrCycle, strings.Join(append(slices.Clone(chain), action), " -> "))
	}

	if len(chain) >= maxDepth {
		return ctx, fmt.Errorf("%w: %d levels", ErrMaxDepth, maxDepth)
	}

	next := append(slices.Clone(chain), action)

	return context.WithValue(ctx, chainKey{}, next), nil
}
