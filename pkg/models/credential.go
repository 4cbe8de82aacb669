package models

import "time"

// AuthType selects how a credential is applied to a request.
type AuthType string

const (
	AuthTypeBearer        AuthType = "bearer"
	AuthTypeCustomHeaders AuthType = "custom_headers"
)

// SecretMask replaces secret values wherever they would be displayed or stored in logs.
const SecretMask = "****"

// AuthCredential is a stored secret attachable to api actions.
type AuthCredential struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"                     validate:"required,max=100"`
	DisplayName   string            `json:"display_name"`
	AuthType      AuthType          `json:"auth_type"                validate:"required,oneof=bearer custom_headers"`
	BearerToken   string            `json:"bearer_token,omitempty"   validate:"required_if=AuthType bearer"`
	CustomHeaders map[string]string `json:"custom_headers,omitempty" validate:"required_if=AuthType custom_headers"`
	Description   string            `json:"description"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Headers returns the request headers the credential contributes.
func (c *AuthCredential) Headers() map[string]string {
	headers := map[string]string{}

	switch c.AuthType {
	case AuthTypeBearer:
		if c.BearerToken != "" {
			headers["Authorization"] = "Bearer " + c.BearerToken
		}
	case AuthTypeCustomHeaders:
		for k, v := range c.CustomHeaders {
			headers[k] = v
		}
	}

	return headers
}

// Masked returns a copy with every secret value replaced by SecretMask.
func (c *AuthCredential) Masked() *AuthCredential {
	masked := *c

	if masked.BearerToken != "" {
		masked.BearerToken = SecretMask
	}

	if c.CustomHeaders != nil {
		masked.CustomHeaders = make(map[string]string, len(c.CustomHeaders))
		for k := range c.CustomHeaders {
			masked.CustomHeaders[k] = SecretMask
		}
	}

	return &masked
}
