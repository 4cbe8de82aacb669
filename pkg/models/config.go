package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownActionType indicates an action_type outside api, bash and composite.
	ErrUnknownActionType = errors.New("unknown action_type")

	// ErrMissingConfig indicates an action has no payload for its declared type.
	ErrMissingConfig = errors.New("missing action config")

	allowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}
)

// APIConfig describes an HTTP call.
type APIConfig struct {
	Method       string            `json:"method,omitempty"`
	URLTemplate  string            `json:"url_template"`
	Headers      map[string]string `json:"headers,omitempty"`
	BodyTemplate *string           `json:"body_template"`
	TimeoutMS    int               `json:"timeout_ms,omitempty"`
}

func (*APIConfig) ActionType() ActionType { return ActionTypeAPI }
func (*APIConfig) sealed()                {}

// HTTPMethod returns the upper-cased method, GET when unset.
func (c *APIConfig) HTTPMethod() string {
	if c.Method == "" {
		return "GET"
	}

	return strings.ToUpper(c.Method)
}

// HasBody reports whether the method carries a request body.
func (c *APIConfig) HasBody() bool {
	switch c.HTTPMethod() {
	case "POST", "PUT", "PATCH":
		return true
	default:
		return false
	}
}

// Timeout returns the configured timeout in milliseconds or the default.
func (c *APIConfig) Timeout() int {
	if c.TimeoutMS <= 0 {
		return DefaultTimeoutMS
	}

	return c.TimeoutMS
}

func (c *APIConfig) validate() error {
	if c.URLTemplate == "" {
		return errors.New("api_config.url_template is required")
	}

	for _, m := range allowedMethods {
		if c.HTTPMethod() == m {
			return nil
		}
	}

	return fmt.Errorf("api_config.method %q is not supported", c.Method)
}

// BashConfig describes a local command run on the trusted host.
type BashConfig struct {
	CommandTemplate  string   `json:"command_template"`
	TimeoutMS        int      `json:"timeout_ms,omitempty"`
	WorkingDirectory *string  `json:"working_directory"`
	AllowedCommands  []string `json:"allowed_commands"`
}

func (*BashConfig) ActionType() ActionType { return ActionTypeBash }
func (*BashConfig) sealed()                {}

// Timeout returns the configured timeout in milliseconds or the default.
func (c *BashConfig) Timeout() int {
	if c.TimeoutMS <= 0 {
		return DefaultTimeoutMS
	}

	return c.TimeoutMS
}

// CompositeStep invokes another action by name.
type CompositeStep struct {
	Action string            `json:"action"`
	Params map[string]string `json:"params,omitempty"`
}

// CompositeConfig is an ordered list of steps.
type CompositeConfig struct {
	Steps       []CompositeStep `json:"steps"`
	StopOnError *bool           `json:"stop_on_error,omitempty"`
}

func (*CompositeConfig) ActionType() ActionType { return ActionTypeComposite }
func (*CompositeConfig) sealed()                {}

// ShouldStopOnError defaults to true when the flag is absent.
func (c *CompositeConfig) ShouldStopOnError() bool {
	return c.StopOnError == nil || *c.StopOnError
}
