package models

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_UnmarshalJSON_SelectsMatchingConfig(t *testing.T) {
	data := []byte(`{
		"name": "get_weather",
		"action_type": "api",
		"enabled": true,
		"parameters": [{"name": "city"}],
		"api_config": {"method": "GET", "url_template": "https://wttr.in/{{city}}?format=j1"},
		"bash_config": null,
		"composite_config": null
	}`)

	var action Action

	err := json.Unmarshal(data, &action)
	require.NoError(t, err)

	assert.Equal(t, ActionTypeAPI, action.Type)
	require.NotNil(t, action.APIConfig())
	assert.Nil(t, action.BashConfig())
	assert.Equal(t, "https://wttr.in/{{city}}?format=j1", action.APIConfig().URLTemplate)

	require.Len(t, action.Parameters, 1)
	assert.True(t, action.Parameters[0].Required, "required defaults to true")
	assert.Equal(t, ParameterTypeString, action.Parameters[0].Type)
	assert.NoError(t, action.Validate())
}

func TestAction_UnmarshalJSON_RejectsMismatchedConfig(t *testing.T) {
	data := []byte(`{
		"name": "broken",
		"action_type": "api",
		"bash_config": {"command_template": "ls"}
	}`)

	var action Action

	err := json.Unmarshal(data, &action)
	assert.ErrorIs(t, err, ErrConfigMismatch)
}

func TestAction_UnmarshalJSON_MissingConfigLeavesNil(t *testing.T) {
	var action Action

	err := json.Unmarshal([]byte(`{"name": "empty", "action_type": "bash"}`), &action)
	require.NoError(t, err)

	assert.Nil(t, action.Config)
	assert.ErrorIs(t, action.Validate(), ErrMissingConfig)
}

func TestAction_UnmarshalJSON_KeepsUnknownType(t *testing.T) {
	var action Action

	err := json.Unmarshal([]byte(`{"name": "odd", "action_type": "ftp"}`), &action)
	require.NoError(t, err)

	assert.Equal(t, ActionType("ftp"), action.Type)
	assert.ErrorIs(t, action.Validate(), ErrUnknownActionType)
}

func TestAction_MarshalJSON_EmitsOnlyMatchingConfig(t *testing.T) {
	action := NewAction("disk_usage", &BashConfig{CommandTemplate: "du -sh {{path}}", AllowedCommands: []string{"du"}})

	data, err := json.Marshal(action)
	require.NoError(t, err)

	var doc map[string]any

	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "bash", doc["action_type"])
	assert.Nil(t, doc["api_config"])
	assert.Nil(t, doc["composite_config"])
	assert.NotNil(t, doc["bash_config"])
	assert.Equal(t, []any{}, doc["tags"])
}

func TestAction_Validate(t *testing.T) {
	tests := []struct {
		name    string
		action  *Action
		wantErr error
	}{
		{
			name:   "valid composite",
			action: NewAction("combo", &CompositeConfig{Steps: []CompositeStep{{Action: "a"}}}),
		},
		{
			name:    "invalid name",
			action:  NewAction("has space", &BashConfig{CommandTemplate: "ls"}),
			wantErr: ErrInvalidActionName,
		},
		{
			name: "duplicate parameters",
			action: &Action{
				Name:       "dup",
				Type:       ActionTypeBash,
				Config:     &BashConfig{CommandTemplate: "ls"},
				Parameters: []ParameterSpec{{Name: "a"}, {Name: "a"}},
			},
			wantErr: ErrDuplicateParameter,
		},
		{
			name:    "config does not match type",
			action:  &Action{Name: "mismatch", Type: ActionTypeAPI, Config: &BashConfig{CommandTemplate: "ls"}},
			wantErr: ErrConfigMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAction_StructValidation(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	action := &Action{Type: ActionTypeAPI}

	err := validate.Struct(action)

	var validationErrors validator.ValidationErrors

	require.ErrorAs(t, err, &validationErrors)
	assert.Equal(t, "Name", validationErrors[0].Field())
}

func TestCompositeConfig_ShouldStopOnError(t *testing.T) {
	no := false

	assert.True(t, (&CompositeConfig{}).ShouldStopOnError())
	assert.False(t, (&CompositeConfig{StopOnError: &no}).ShouldStopOnError())
}

func TestAuthCredential_HeadersAndMask(t *testing.T) {
	bearer := &AuthCredential{Name: "gh", AuthType: AuthTypeBearer, BearerToken: "secret"}
	assert.Equal(t, map[string]string{"Authorization": "Bearer secret"}, bearer.Headers())
	assert.Equal(t, SecretMask, bearer.Masked().BearerToken)
	assert.Equal(t, "secret", bearer.BearerToken, "masking must not touch the original")

	custom := &AuthCredential{Name: "k", AuthType: AuthTypeCustomHeaders, CustomHeaders: map[string]string{"X-Api-Key": "abc"}}
	assert.Equal(t, map[string]string{"X-Api-Key": "abc"}, custom.Headers())
	assert.Equal(t, map[string]string{"X-Api-Key": SecretMask}, custom.Masked().CustomHeaders)
}

func TestNewActionLog(t *testing.T) {
	result := &Result{Success: false, Status: 502, Error: "upstream returned 502", ResolvedRequest: &ResolvedRequest{Method: "GET"}}

	entry := NewActionLog("x", ActionTypeAPI, map[string]any{"a": "b"}, result, 0, NormalizeSource("bogus"))

	assert.Equal(t, SourceUnknown, entry.Source)
	assert.False(t, entry.Success)
	assert.Equal(t, "upstream returned 502", entry.ErrorMessage)
	require.NotNil(t, entry.StatusCode)
	assert.Equal(t, 502, *entry.StatusCode)
	assert.Equal(t, "GET", entry.ResolvedRequest.Method)
}

func TestResult_DataString(t *testing.T) {
	assert.Equal(t, "ok", (&Result{Data: "ok"}).DataString())
	assert.JSONEq(t, `{"a":1}`, (&Result{Data: map[string]any{"a": 1}}).DataString())
}
