package dispatcher_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gonbaum/composite/pkg/audit"
	"github.com/gonbaum/composite/pkg/dispatcher"
	"github.com/gonbaum/composite/pkg/executors/bash"
	"github.com/gonbaum/composite/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(f *fixture, cfg dispatcher.RunnerConfig) *dispatcher.Runner {
	logger := slog.New(slog.DiscardHandler)

	return dispatcher.NewRunner(logger, f.dispatch, bash.NewRunner(logger, bash.Config{}), f.recorder, cfg)
}

func stopOnError(v bool) *bool { return &v }

func TestRunner_Execute_Bash(t *testing.T) {
	f := newFixture(t)
	f.save(t, models.NewAction("greet", &models.BashConfig{
		CommandTemplate: "echo hello {{name}}",
		AllowedCommands: []string{"echo"},
	}))

	result, err := newRunner(f, dispatcher.RunnerConfig{}).Execute(context.Background(), dispatcher.ExecuteRequest{
		Action: "greet",
		Params: map[string]any{"name": "; rm -rf /"},
		Source: models.SourceMCP,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, models.ActionTypeBash, result.ActionType)
	assert.Equal(t, "hello ; rm -rf /", result.Data.(*models.BashOutput).Stdout)

	entries := f.flush(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "greet", entries[0].ActionName)
	assert.Equal(t, models.ActionTypeBash, entries[0].ActionType)
	assert.Equal(t, models.SourceMCP, entries[0].Source)
}

func TestRunner_Execute_BashRejectedByWhitelist(t *testing.T) {
	f := newFixture(t)
	f.save(t, models.NewAction("wipe", &models.BashConfig{
		CommandTemplate: "rm -rf /",
		AllowedCommands: []string{"du"},
	}))

	result, err := newRunner(f, dispatcher.RunnerConfig{}).Execute(context.Background(), dispatcher.ExecuteRequest{Action: "wipe"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, `command "rm" not in allowed_commands`)
	assert.Len(t, f.flush(t), 1)
}

func TestRunner_Execute_CompositeInterpolatesSteps(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("sunny"))
	}))
	defer upstream.Close()

	f := newFixture(t)
	f.save(t, models.NewAction("forecast", &models.APIConfig{URLTemplate: upstream.URL}))
	f.save(t, models.NewAction("say", &models.BashConfig{CommandTemplate: "echo {{text}}"}))
	f.save(t, models.NewAction("morning", &models.CompositeConfig{Steps: []models.CompositeStep{
		{Action: "forecast"},
		{Action: "say", Params: map[string]string{"text": "{{step_0_result}}"}},
	}}))

	result, err := newRunner(f, dispatcher.RunnerConfig{}).Execute(context.Background(), dispatcher.ExecuteRequest{Action: "morning"})
	require.NoError(t, err)

	require.True(t, result.Success, result.Error)
	assert.Equal(t, models.ActionTypeComposite, result.ActionType)

	steps := result.Data.(*models.CompositeOutput).Steps
	require.Len(t, steps, 2)
	assert.Equal(t, "sunny", steps[0].Data)
	assert.Equal(t, "sunny", steps[1].Data.(*models.BashOutput).Stdout)

	// One record per step plus one for the composite itself.
	assert.Len(t, f.flush(t), 3)
}

func TestRunner_Execute_CompositeStopsOnError(t *testing.T) {
	var hits atomic.Int32

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer upstream.Close()

	f := newFixture(t)
	f.save(t, models.NewAction("blocked", &models.BashConfig{CommandTemplate: "rm x", AllowedCommands: []string{"ls"}}))
	f.save(t, models.NewAction("ping", &models.APIConfig{URLTemplate: upstream.URL}))
	f.save(t, models.NewAction("chain", &models.CompositeConfig{Steps: []models.CompositeStep{
		{Action: "blocked"},
		{Action: "ping"},
	}}))

	result, err := newRunner(f, dispatcher.RunnerConfig{}).Execute(context.Background(), dispatcher.ExecuteRequest{Action: "chain"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "Step 0 (blocked) failed", result.Error)
	assert.Len(t, result.Data.(*models.CompositeOutput).Steps, 1)
	assert.Zero(t, hits.Load())
}

func TestRunner_Execute_CompositeContinuesPastUnknownStep(t *testing.T) {
	f := newFixture(t)
	f.save(t, models.NewAction("say", &models.BashConfig{CommandTemplate: "echo done"}))
	f.save(t, models.NewAction("loose", &models.CompositeConfig{
		StopOnError: stopOnError(false),
		Steps: []models.CompositeStep{
			{Action: "missing"},
			{Action: "say"},
		},
	}))

	result, err := newRunner(f, dispatcher.RunnerConfig{}).Execute(context.Background(), dispatcher.ExecuteRequest{Action: "loose"})
	require.NoError(t, err)

	assert.True(t, result.Success)

	steps := result.Data.(*models.CompositeOutput).Steps
	require.Len(t, steps, 2)
	assert.False(t, steps[0].Success)
	assert.Equal(t, "action not found or disabled: missing", steps[0].Error)
	assert.True(t, steps[1].Success)
}

func TestRunner_Execute_CompositeCycleIsAFailedStep(t *testing.T) {
	f := newFixture(t)
	f.save(t, models.NewAction("ping_pong", &models.CompositeConfig{Steps: []models.CompositeStep{{Action: "pong_ping"}}}))
	f.save(t, models.NewAction("pong_ping", &models.CompositeConfig{Steps: []models.CompositeStep{{Action: "ping_pong"}}}))

	result, err := newRunner(f, dispatcher.RunnerConfig{}).Execute(context.Background(), dispatcher.ExecuteRequest{Action: "ping_pong"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "Step 0 (pong_ping) failed", result.Error)

	inner := result.Data.(*models.CompositeOutput).Steps[0]
	assert.Equal(t, "Step 0 (ping_pong) failed", inner.Error)

	innermost := inner.Data.(*models.CompositeOutput).Steps[0]
	assert.Contains(t, innermost.Error, "composite cycle detected: ping_pong -> pong_ping -> ping_pong")
}

func TestRunner_Execute_CompositeDepthIsCapped(t *testing.T) {
	f := newFixture(t)
	f.save(t, models.NewAction("level_0", &models.CompositeConfig{Steps: []models.CompositeStep{{Action: "level_1"}}}))
	f.save(t, models.NewAction("level_1", &models.CompositeConfig{Steps: []models.CompositeStep{{Action: "level_2"}}}))
	f.save(t, models.NewAction("level_2", &models.BashConfig{CommandTemplate: "echo deep"}))

	result, err := newRunner(f, dispatcher.RunnerConfig{MaxCompositeDepth: 1}).Execute(context.Background(), dispatcher.ExecuteRequest{Action: "level_0"})
	require.NoError(t, err)

	assert.False(t, result.Success)

	inner := result.Data.(*models.CompositeOutput).Steps[0]
	assert.Contains(t, inner.Error, "composite nesting too deep")
}

func TestRunner_Execute_PlanningErrorsPropagate(t *testing.T) {
	f := newFixture(t)

	_, err := newRunner(f, dispatcher.RunnerConfig{}).Execute(context.Background(), dispatcher.ExecuteRequest{Action: "nope"})

	assert.True(t, dispatcher.IsNotFound(err))
}

func TestRunner_Plan_IsAlwaysFinal(t *testing.T) {
	f := newFixture(t)
	f.save(t, models.NewAction("say", &models.BashConfig{CommandTemplate: "echo hi"}))

	plan, err := newRunner(f, dispatcher.RunnerConfig{}).Plan(context.Background(), dispatcher.ExecuteRequest{Action: "say"})
	require.NoError(t, err)

	assert.True(t, plan.Final())
	assert.Equal(t, models.ActionTypeBash, plan.ActionType)
	assert.Equal(t, "hi", plan.Result.Data.(*models.BashOutput).Stdout)
}

type planFunc func(ctx context.Context, req dispatcher.ExecuteRequest) (*models.Plan, error)

func (f planFunc) Plan(ctx context.Context, req dispatcher.ExecuteRequest) (*models.Plan, error) {
	return f(ctx, req)
}

func TestRunner_Execute_UnexpectedPlan(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	planner := planFunc(func(_ context.Context, req dispatcher.ExecuteRequest) (*models.Plan, error) {
		return &models.Plan{Action: req.Action, ActionType: models.ActionTypeBash}, nil
	})

	runner := dispatcher.NewRunner(logger, planner, bash.NewRunner(logger, bash.Config{}), nil, dispatcher.RunnerConfig{})

	_, err := runner.Execute(context.Background(), dispatcher.ExecuteRequest{Action: "x"})
	assert.ErrorIs(t, err, dispatcher.ErrUnexpectedPlan)
}

func TestRunner_Execute_RunErrorsAreAudited(t *testing.T) {
	tests := []struct {
		name string
		plan *models.Plan
		is   error
	}{
		{
			name: "unexpected plan",
			plan: &models.Plan{Action: "x", ActionType: models.ActionTypeBash},
			is:   dispatcher.ErrUnexpectedPlan,
		},
		{
			name: "empty command",
			plan: &models.Plan{Action: "x", ActionType: models.ActionTypeBash, Bash: &models.ResolvedBash{Command: "   "}},
			is:   bash.ErrEmptyCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := slog.New(slog.DiscardHandler)
			captured := &capture{}
			recorder := audit.NewRecorder(logger, time.Second, captured)

			planner := planFunc(func(context.Context, dispatcher.ExecuteRequest) (*models.Plan, error) {
				return tt.plan, nil
			})

			runner := dispatcher.NewRunner(logger, planner, bash.NewRunner(logger, bash.Config{}), recorder, dispatcher.RunnerConfig{})

			_, err := runner.Execute(context.Background(), dispatcher.ExecuteRequest{Action: "x", Source: models.SourceMCP})
			require.ErrorIs(t, err, tt.is)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, recorder.Wait(ctx))

			entries := captured.all()
			require.Len(t, entries, 1)
			assert.Equal(t, "x", entries[0].ActionName)
			assert.Equal(t, models.ActionTypeBash, entries[0].ActionType)
			assert.False(t, entries[0].Success)
			assert.Equal(t, err.Error(), entries[0].ErrorMessage)
			assert.Equal(t, models.SourceMCP, entries[0].Source)
		})
	}
}
