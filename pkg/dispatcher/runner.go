package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gonbaum/composite/pkg/audit"
	"github.com/gonbaum/composite/pkg/executors/bash"
	"github.com/gonbaum/composite/pkg/executors/composite"
	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Planner turns an invocation into a plan. *Dispatcher implements it in
// process and the REST client implements it over the network.
type Planner interface {
	Plan(ctx context.Context, req ExecuteRequest) (*models.Plan, error)
}

// RunnerConfig holds the trusted host settings fixed at startup.
type RunnerConfig struct {
	// MaxCompositeDepth bounds composite nesting. Zero means composite.DefaultMaxDepth.
	MaxCompositeDepth int
}

// Runner completes plans on the trusted host: it runs bash commands and
// drives composite steps, each of which re-enters Execute.
type Runner struct {
	planner  Planner
	bash     *bash.Runner
	recorder *audit.Recorder
	maxDepth int
	tracer   trace.Tracer
	logger   *slog.Logger
}

func NewRunner(logger *slog.Logger, planner Planner, bashRunner *bash.Runner, recorder *audit.Recorder, cfg RunnerConfig) *Runner {
	maxDepth := cfg.MaxCompositeDepth
	if maxDepth <= 0 {
		maxDepth = composite.DefaultMaxDepth
	}

	return &Runner{
		planner:  planner,
		bash:     bashRunner,
		recorder: recorder,
		maxDepth: maxDepth,
		tracer:   otelhelper.Tracer(tracerName),
		logger:   logger.With("module", "runner"),
	}
}

// Execute runs an invocation to completion. The returned error carries the
// client and structural errors of planning; every executor failure is a
// Result with Success false.
func (r *Runner) Execute(ctx context.Context, req ExecuteRequest) (*models.Result, error) {
	source := models.NormalizeSource(string(req.Source))

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "runner.execute",
		attribute.String(otelhelper.ActionNameKey, req.Action),
		attribute.String(otelhelper.SourceKey, string(source)),
	)
	defer span.End()

	plan, err := r.planner.Plan(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.ActionTypeKey, string(plan.ActionType)))

	if plan.Final() {
		otelhelper.SetOutcome(span, plan.Result.Success, plan.Result.Error)

		return plan.Result, nil
	}

	start := time.Now()

	result, err := r.run(ctx, plan, source)
	if err != nil {
		otelhelper.SetError(span, err)

		failed := &models.Result{ActionType: plan.ActionType, Error: err.Error()}
		r.recorder.Record(models.NewActionLog(plan.Action, plan.ActionType, plan.Params, failed, time.Since(start), source))

		r.logger.ErrorContext(ctx, "Failed to run plan", "action", plan.Action, "action_type", plan.ActionType, "error", err)

		return nil, err
	}

	duration := time.Since(start)

	r.recorder.Record(models.NewActionLog(plan.Action, plan.ActionType, plan.Params, result, duration, source))
	otelhelper.SetOutcome(span, result.Success, result.Error)

	r.logger.InfoContext(ctx, "Executed action",
		"action", plan.Action,
		"action_type", plan.ActionType,
		"success", result.Success,
		"duration_ms", duration.Milliseconds(),
	)

	return result, nil
}

// Plan lets a Runner stand in for a Planner whose plans are always final, so
// the store can execute everything itself.
func (r *Runner) Plan(ctx context.Context, req ExecuteRequest) (*models.Plan, error) {
	result, err := r.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	return &models.Plan{Action: req.Action, ActionType: result.ActionType, Result: result}, nil
}

func (r *Runner) run(ctx context.Context, plan *models.Plan, source models.Source) (*models.Result, error) {
	switch {
	case plan.ActionType == models.ActionTypeBash && plan.Bash != nil:
		return r.bash.Run(ctx, plan.Bash)
	case plan.ActionType == models.ActionTypeComposite && plan.Composite != nil:
		return r.runComposite(ctx, plan, source), nil
	default:
		return nil, fmt.Errorf("%w: %s action %s has no resolved payload", ErrUnexpectedPlan, plan.ActionType, plan.Action)
	}
}

func (r *Runner) runComposite(ctx context.Context, plan *models.Plan, source models.Source) *models.Result {
	ctx, err := composite.Enter(ctx, plan.Action, r.maxDepth)
	if err != nil {
		r.logger.WarnContext(ctx, "Composite rejected", "action", plan.Action, "chain", composite.Chain(ctx), "error", err)

		return &models.Result{ActionType: models.ActionTypeComposite, Error: err.Error()}
	}

	index := 0
	step := func(ctx context.Context, action string, params map[string]any) (*models.Result, error) {
		ctx, span := otelhelper.StartSpan(ctx, r.tracer, "composite.step",
			attribute.String(otelhelper.ActionNameKey, action),
			attribute.Int(otelhelper.StepIndexKey, index),
		)
		defer span.End()

		index++

		return r.Execute(ctx, ExecuteRequest{Action: action, Params: params, Source: source})
	}

	result := composite.Execute(ctx, plan.Composite, step)
	result.ActionType = models.ActionTypeComposite

	return result
}
