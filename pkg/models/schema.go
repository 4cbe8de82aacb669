package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidActionDocument indicates a stored action document failed schema validation.
var ErrInvalidActionDocument = errors.New("invalid action document")

// JSONSchema represents a JSON Schema for document validation.
type JSONSchema struct {
	Type        string               `json:"type"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
}

// Property represents a JSON Schema property. Type is a string or a list of
// strings so nullable payloads can be declared.
type Property struct {
	Type                 any                  `json:"type"`
	Description          string               `json:"description,omitempty"`
	Enum                 []any                `json:"enum,omitempty"`
	MinLength            *int                 `json:"minLength,omitempty"`
	Pattern              string               `json:"pattern,omitempty"`
	Items                *Property            `json:"items,omitempty"`
	Properties           map[string]*Property `json:"properties,omitempty"`
	AdditionalProperties *Property            `json:"additionalProperties,omitempty"`
	Required             []string             `json:"required,omitempty"`
}

func nullable(t string) []string {
	return []string{t, "null"}
}

// ActionDocumentSchema describes the stored shape of an action.
func ActionDocumentSchema() *JSONSchema {
	one := 1
	stringMap := &Property{Type: "object", AdditionalProperties: &Property{Type: "string"}}

	return &JSONSchema{
		Type:  "object",
		Title: "Action",
		Properties: map[string]*Property{
			"name":         {Type: "string", MinLength: &one, Pattern: actionNamePattern.String()},
			"display_name": {Type: nullable("string")},
			"description":  {Type: nullable("string")},
			"enabled":      {Type: "boolean"},
			"tags":         {Type: nullable("array"), Items: &Property{Type: "string"}},
			"action_type":  {Type: "string", MinLength: &one},
			"parameters": {
				Type: nullable("array"),
				Items: &Property{
					Type:     "object",
					Required: []string{"name"},
					Properties: map[string]*Property{
						"name":          {Type: "string", MinLength: &one},
						"type":          {Type: "string", Enum: []any{"string", "number", "boolean"}},
						"description":   {Type: nullable("string")},
						"required":      {Type: "boolean"},
						"default_value": {Type: nullable("string")},
					},
				},
			},
			"api_config": {
				Type:     nullable("object"),
				Required: []string{"url_template"},
				Properties: map[string]*Property{
					"method":        {Type: "string", Enum: []any{"GET", "POST", "PUT", "PATCH", "DELETE"}},
					"url_template":  {Type: "string", MinLength: &one},
					"headers":       stringMap,
					"body_template": {Type: nullable("string")},
					"timeout_ms":    {Type: "integer"},
				},
			},
			"bash_config": {
				Type:     nullable("object"),
				Required: []string{"command_template"},
				Properties: map[string]*Property{
					"command_template":  {Type: "string", MinLength: &one},
					"timeout_ms":        {Type: "integer"},
					"working_directory": {Type: nullable("string")},
					"allowed_commands":  {Type: nullable("array"), Items: &Property{Type: "string"}},
				},
			},
			"composite_config": {
				Type:     nullable("object"),
				Required: []string{"steps"},
				Properties: map[string]*Property{
					"steps": {
						Type: "array",
						Items: &Property{
							Type:     "object",
							Required: []string{"action"},
							Properties: map[string]*Property{
								"action": {Type: "string", MinLength: &one},
								"params": stringMap,
							},
						},
					},
					"stop_on_error": {Type: "boolean"},
				},
			},
			"auth_credential": {Type: nullable("string")},
		},
		Required: []string{"name", "action_type"},
	}
}

// ValidateActionDocument checks a decoded JSON or YAML document against ActionDocumentSchema.
func ValidateActionDocument(document any) error {
	schemaLoader := gojsonschema.NewGoLoader(ActionDocumentSchema())
	dataLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidActionDocument, err)
	}

	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidActionDocument, strings.Join(reasons, "; "))
	}

	return nil
}

// DecodeAction validates raw JSON against the action schema before decoding it.
func DecodeAction(data []byte) (*Action, error) {
	var document any

	err := json.Unmarshal(data, &document)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidActionDocument, err)
	}

	err = ValidateActionDocument(document)
	if err != nil {
		return nil, err
	}

	var action Action

	err = json.Unmarshal(data, &action)
	if err != nil {
		return nil, err
	}

	return &action, nil
}
