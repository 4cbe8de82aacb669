package models

import "encoding/json"

// ParameterType is the declared type of an action parameter.
type ParameterType string

const (
	ParameterTypeString  ParameterType = "string"
	ParameterTypeNumber  ParameterType = "number"
	ParameterTypeBoolean ParameterType = "boolean"
)

// ParameterSpec declares one input of an action.
type ParameterSpec struct {
	Name         string        `json:"name"           validate:"required"`
	Type         ParameterType `json:"type,omitempty" validate:"omitempty,oneof=string number boolean"`
	Description  string        `json:"description"`
	Required     bool          `json:"required"`
	DefaultValue *string       `json:"default_value"`
}

// UnmarshalJSON applies the stored defaults: required is true and type is
// string unless stated otherwise.
func (p *ParameterSpec) UnmarshalJSON(data []byte) error {
	type plain ParameterSpec

	raw := struct {
		plain

		Required *bool `json:"required"`
	}{}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	*p = ParameterSpec(raw.plain)
	p.Required = raw.Required == nil || *raw.Required

	if p.Type == "" {
		p.Type = ParameterTypeString
	}

	return nil
}
