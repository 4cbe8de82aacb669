// Package dispatcher turns a named invocation into a result: it looks the
// action up, validates the caller's parameters, routes to the executor for
// the action type and records the outcome in the audit log.
//
// The work is split across two roles. The Dispatcher runs next to the action
// store: it executes api actions itself and returns bash and composite
// actions as resolved plans. The Runner runs on the trusted host: it takes
// plans from a Planner and executes what is left.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gonbaum/composite/pkg/audit"
	"github.com/gonbaum/composite/pkg/executors/api"
	"github.com/gonbaum/composite/pkg/executors/bash"
	"github.com/gonbaum/composite/pkg/executors/composite"
	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/otelhelper"
	"github.com/gonbaum/composite/pkg/params"
	"github.com/gonbaum/composite/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/gonbaum/composite/pkg/dispatcher"

// ActionFinder looks actions up by exact name.
type ActionFinder interface {
	GetByName(ctx context.Context, name string, enabledOnly bool) (*models.Action, error)
}

// CredentialFinder looks credentials up by name.
type CredentialFinder interface {
	GetByName(ctx context.Context, name string) (*models.AuthCredential, error)
}

// ExecuteRequest is one invocation of a named action.
type ExecuteRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
	Source models.Source  `json:"source,omitempty"`
}

// Dispatcher is safe for concurrent use. It holds no state between invocations.
type Dispatcher struct {
	actions     ActionFinder
	credentials CredentialFinder
	api         *api.Executor
	recorder    *audit.Recorder
	tracer      trace.Tracer
	logger      *slog.Logger
}

func New(
	logger *slog.Logger,
	actions ActionFinder,
	credentials CredentialFinder,
	executor *api.Executor,
	recorder *audit.Recorder,
) *Dispatcher {
	return &Dispatcher{
		actions:     actions,
		credentials: credentials,
		api:         executor,
		recorder:    recorder,
		tracer:      otelhelper.Tracer(tracerName),
		logger:      logger.With("module", "dispatcher"),
	}
}

type invocation struct {
	action     *models.Action
	params     map[string]any
	credential *models.AuthCredential
}

// Plan runs the invocation as far as the store side can: api actions are
// executed and audited, bash and composite actions are resolved.
func (d *Dispatcher) Plan(ctx context.Context, req ExecuteRequest) (*models.Plan, error) {
	source := models.NormalizeSource(string(req.Source))

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatcher.plan",
		attribute.String(otelhelper.ActionNameKey, req.Action),
		attribute.String(otelhelper.SourceKey, string(source)),
	)
	defer span.End()

	inv, err := d.prepare(ctx, req, true)
	if err != nil {
		d.fail(ctx, span, req.Action, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.ActionTypeKey, string(inv.action.Type)))

	plan := &models.Plan{
		Action:     inv.action.Name,
		ActionType: inv.action.Type,
		Params:     inv.params,
	}

	switch inv.action.Type {
	case models.ActionTypeAPI:
		plan.Result, err = d.executeAPI(ctx, inv, source)
		if err == nil {
			otelhelper.SetOutcome(span, plan.Result.Success, plan.Result.Error)
		}
	case models.ActionTypeBash:
		plan.Bash, err = bash.Resolve(inv.action, inv.params)
	case models.ActionTypeComposite:
		plan.Composite, err = composite.Resolve(inv.action, inv.params)
	}

	if err != nil {
		d.fail(ctx, span, req.Action, err)

		return nil, err
	}

	return plan, nil
}

// Preview resolves the request an invocation would make without making it.
// Missing required parameters are not an error here: their placeholders are
// left in the output. Secret header values are masked.
func (d *Dispatcher) Preview(ctx context.Context, req ExecuteRequest) (*models.ResolvedRequest, error) {
	inv, err := d.prepare(ctx, req, false)
	if err != nil {
		return nil, err
	}

	switch inv.action.Type {
	case models.ActionTypeAPI:
		return api.Resolve(inv.action.APIConfig(), inv.credential, inv.params).Redacted(), nil
	case models.ActionTypeBash:
		resolved, err := bash.Resolve(inv.action, inv.params)
		if err != nil {
			return nil, err
		}

		return &models.ResolvedRequest{Command: resolved.Command}, nil
	default:
		resolved, err := composite.Resolve(inv.action, inv.params)
		if err != nil {
			return nil, err
		}

		return &models.ResolvedRequest{Steps: resolved.Steps}, nil
	}
}

func (d *Dispatcher) prepare(ctx context.Context, req ExecuteRequest, strict bool) (*invocation, error) {
	if req.Action == "" {
		return nil, ErrMissingAction
	}

	action, err := d.actions.GetByName(ctx, req.Action, true)
	if err != nil {
		if persistence.IsActionNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrActionNotFound, req.Action)
		}

		return nil, fmt.Errorf("failed to look up action %s: %w", req.Action, err)
	}

	var resolved map[string]any

	if strict {
		resolved, err = params.Validate(action.Parameters, req.Params)
		if err != nil {
			return nil, err
		}
	} else {
		resolved = params.WithDefaults(action.Parameters, req.Params)
	}

	if !action.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, action.Type)
	}

	err = action.Validate()
	if err != nil {
		if errors.Is(err, ErrMissingConfig) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	credential, err := d.credential(ctx, action)
	if err != nil {
		return nil, err
	}

	return &invocation{action: action, params: resolved, credential: credential}, nil
}

// credential returns the credential linked to an api action. A dangling link
// is logged and the request goes out without it.
func (d *Dispatcher) credential(ctx context.Context, action *models.Action) (*models.AuthCredential, error) {
	if action.Type != models.ActionTypeAPI || action.Credential == "" || d.credentials == nil {
		return nil, nil
	}

	credential, err := d.credentials.GetByName(ctx, action.Credential)
	if err == nil {
		return credential, nil
	}

	if persistence.IsCredentialNotFound(err) {
		d.logger.WarnContext(ctx, "Linked credential not found", "action", action.Name, "credential", action.Credential)

		return nil, nil
	}

	return nil, fmt.Errorf("failed to look up credential %s: %w", action.Credential, err)
}

func (d *Dispatcher) executeAPI(ctx context.Context, inv *invocation, source models.Source) (*models.Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "executor.api",
		attribute.String(otelhelper.ActionNameKey, inv.action.Name),
	)
	defer span.End()

	start := time.Now()

	result, err := d.api.Execute(ctx, inv.action, inv.credential, inv.params)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)

	d.recorder.Record(models.NewActionLog(inv.action.Name, inv.action.Type, inv.params, result, duration, source))

	d.logger.InfoContext(ctx, "Executed action",
		"action", inv.action.Name,
		"action_type", inv.action.Type,
		"success", result.Success,
		"status", result.Status,
		"duration_ms", duration.Milliseconds(),
	)

	return result, nil
}

func (d *Dispatcher) fail(ctx context.Context, span trace.Span, action string, err error) {
	otelhelper.SetError(span, err, attribute.String(otelhelper.ActionNameKey, action))

	if IsClientError(err) {
		d.logger.WarnContext(ctx, "Rejected invocation", "action", action, "error", err)

		return
	}

	d.logger.ErrorContext(ctx, "Invocation failed", "action", action, "error", err)
}
