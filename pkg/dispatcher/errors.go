package dispatcher

import (
	"errors"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/params"
)

var (
	// ErrActionNotFound indicates no enabled action has the requested name.
	ErrActionNotFound = errors.New("action not found or disabled")

	// ErrMissingAction indicates a request without an action name.
	ErrMissingAction = errors.New("missing required field: action")

	// ErrInvalidParams indicates caller parameters that could not be decoded.
	ErrInvalidParams = errors.New("invalid params")

	// ErrUnknownActionType indicates an action_type outside api, bash and composite.
	ErrUnknownActionType = models.ErrUnknownActionType

	// ErrMissingConfig indicates a stored action without the payload for its type.
	ErrMissingConfig = models.ErrMissingConfig

	// ErrInvalidDefinition indicates a stored action that breaks a model invariant.
	ErrInvalidDefinition = errors.New("invalid action definition")

	// ErrUnexpectedPlan indicates a plan that carries neither a result nor a
	// payload for its action type.
	ErrUnexpectedPlan = errors.New("unexpected plan")
)

// IsNotFound reports whether err means the action does not exist or is disabled.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrActionNotFound)
}

// IsClientError reports whether err was caused by the caller's request rather
// than by the server or the stored data.
func IsClientError(err error) bool {
	return IsNotFound(err) ||
		errors.Is(err, ErrMissingAction) ||
		errors.Is(err, ErrInvalidParams) ||
		errors.Is(err, ErrUnknownActionType) ||
		params.IsMissingParameters(err)
}
