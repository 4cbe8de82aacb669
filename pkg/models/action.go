// Package models defines the core domain models for operator-defined actions.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"
)

// ActionType is the tag of the action union.
type ActionType string

const (
	ActionTypeAPI       ActionType = "api"
	ActionTypeBash      ActionType = "bash"
	ActionTypeComposite ActionType = "composite"
)

// DefaultTimeoutMS is applied to api and bash configs that do not declare a timeout.
const DefaultTimeoutMS = 30000

var (
	// ErrConfigMismatch indicates a stored config payload does not match its action_type.
	ErrConfigMismatch = errors.New("action config does not match action_type")

	// ErrInvalidActionName indicates an action name is not a valid slug.
	ErrInvalidActionName = errors.New("invalid action name")

	// ErrDuplicateParameter indicates two parameters share a name.
	ErrDuplicateParameter = errors.New("duplicate parameter name")

	actionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Valid reports whether t is one of the known action types.
func (t ActionType) Valid() bool {
	switch t {
	case ActionTypeAPI, ActionTypeBash, ActionTypeComposite:
		return true
	default:
		return false
	}
}

// ActionConfig is the type-specific payload of an Action. It is implemented only by
// *APIConfig, *BashConfig and *CompositeConfig.
type ActionConfig interface {
	ActionType() ActionType
	sealed()
}

// Action is a named, operator-defined unit of work.
type Action struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"                      validate:"required,max=100"`
	DisplayName string          `json:"display_name"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags"`
	Enabled     bool            `json:"enabled"`
	Type        ActionType      `json:"action_type"               validate:"required"`
	Parameters  []ParameterSpec `json:"parameters"                validate:"dive"`
	Config      ActionConfig    `json:"-"`
	Credential  string          `json:"auth_credential,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewAction builds an enabled action whose type is taken from its config.
func NewAction(name string, config ActionConfig) *Action {
	return &Action{
		Name:    name,
		Enabled: true,
		Type:    config.ActionType(),
		Config:  config,
	}
}

// Label returns the display name, falling back to the action name.
func (a *Action) Label() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}

	return a.Name
}

// HasTag reports whether the action carries the given tag.
func (a *Action) HasTag(tag string) bool {
	return slices.Contains(a.Tags, tag)
}

// Validate checks the invariants that struct tags cannot express.
func (a *Action) Validate() error {
	if !actionNamePattern.MatchString(a.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidActionName, a.Name)
	}

	if !a.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownActionType, a.Type)
	}

	if a.Config == nil {
		return fmt.Errorf("%w: %s action has no %s_config", ErrMissingConfig, a.Type, a.Type)
	}

	if a.Config.ActionType() != a.Type {
		return fmt.Errorf("%w: %s action carries %s config", ErrConfigMismatch, a.Type, a.Config.ActionType())
	}

	seen := make(map[string]bool, len(a.Parameters))
	for _, p := range a.Parameters {
		if seen[p.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateParameter, p.Name)
		}

		seen[p.Name] = true
	}

	if c, ok := a.Config.(*APIConfig); ok {
		return c.validate()
	}

	if c, ok := a.Config.(*BashConfig); ok && c.CommandTemplate == "" {
		return errors.New("bash_config.command_template is required")
	}

	if c, ok := a.Config.(*CompositeConfig); ok {
		for i, step := range c.Steps {
			if step.Action == "" {
				return fmt.Errorf("composite_config.steps[%d].action is required", i)
			}
		}
	}

	return nil
}

// APIConfig returns the api payload or nil.
func (a *Action) APIConfig() *APIConfig {
	c, _ := a.Config.(*APIConfig)

	return c
}

// BashConfig returns the bash payload or nil.
func (a *Action) BashConfig() *BashConfig {
	c, _ := a.Config.(*BashConfig)

	return c
}

// CompositeConfig returns the composite payload or nil.
func (a *Action) CompositeConfig() *CompositeConfig {
	c, _ := a.Config.(*CompositeConfig)

	return c
}

// actionDocument is the stored shape of an Action: a tag plus three nullable payloads.
type actionDocument struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	DisplayName     string           `json:"display_name"`
	Description     string           `json:"description"`
	Tags            []string         `json:"tags"`
	Enabled         bool             `json:"enabled"`
	Type            ActionType       `json:"action_type"`
	Parameters      []ParameterSpec  `json:"parameters"`
	APIConfig       *APIConfig       `json:"api_config"`
	BashConfig      *BashConfig      `json:"bash_config"`
	CompositeConfig *CompositeConfig `json:"composite_config"`
	Credential      string           `json:"auth_credential,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	doc := actionDocument{
		ID:          a.ID,
		Name:        a.Name,
		DisplayName: a.DisplayName,
		Description: a.Description,
		Tags:        a.Tags,
		Enabled:     a.Enabled,
		Type:        a.Type,
		Parameters:  a.Parameters,
		Credential:  a.Credential,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}

	if doc.Tags == nil {
		doc.Tags = []string{}
	}

	if doc.Parameters == nil {
		doc.Parameters = []ParameterSpec{}
	}

	switch c := a.Config.(type) {
	case *APIConfig:
		doc.APIConfig = c
	case *BashConfig:
		doc.BashConfig = c
	case *CompositeConfig:
		doc.CompositeConfig = c
	}

	return json.Marshal(doc)
}

// UnmarshalJSON decodes the stored shape. A payload for a different type than
// action_type is rejected; a missing payload for the declared type leaves
// Config nil so the dispatcher can report it as a structural error. An absent
// action_type means api.
func (a *Action) UnmarshalJSON(data []byte) error {
	var doc actionDocument

	err := json.Unmarshal(data, &doc)
	if err != nil {
		return err
	}

	if doc.Type == "" {
		doc.Type = ActionTypeAPI
	}

	*a = Action{
		ID:          doc.ID,
		Name:        doc.Name,
		DisplayName: doc.DisplayName,
		Description: doc.Description,
		Tags:        doc.Tags,
		Enabled:     doc.Enabled,
		Type:        doc.Type,
		Parameters:  doc.Parameters,
		Credential:  doc.Credential,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}

	payloads := map[ActionType]ActionConfig{}
	if doc.APIConfig != nil {
		payloads[ActionTypeAPI] = doc.APIConfig
	}

	if doc.BashConfig != nil {
		payloads[ActionTypeBash] = doc.BashConfig
	}

	if doc.CompositeConfig != nil {
		payloads[ActionTypeComposite] = doc.CompositeConfig
	}

	for t := range payloads {
		if t != doc.Type {
			return fmt.Errorf("%w: %s action carries %s_config", ErrConfigMismatch, doc.Type, t)
		}
	}

	a.Config = payloads[doc.Type]

	return nil
}
