package api

import (
	"strings"

	"github.com/gonbaum/composite/pkg/models"
)

var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"api-key":       true,
	"token":         true,
}

// Redact copies headers, masking the well-known secret headers and any
// additional names given. Names are compared case-insensitively.
func Redact(headers map[string]string, secret ...string) map[string]string {
	extra := make(map[string]bool, len(secret))
	for _, name := range secret {
		extra[strings.ToLower(name)] = true
	}

	redacted := make(map[string]string, len(headers))

	for name, value := range headers {
		lower := strings.ToLower(name)
		if sensitiveHeaders[lower] || extra[lower] {
			redacted[name] = mask(lower, value)

			continue
		}

		redacted[name] = value
	}

	return redacted
}

func mask(name, value string) string {
	if name == "authorization" && strings.HasPrefix(value, "Bearer ") {
		return "Bearer " + models.SecretMask
	}

	return models.SecretMask
}

// setHeader replaces any existing header with the same name regardless of case.
func setHeader(headers map[string]string, name, value string) {
	for existing := range headers {
		if strings.EqualFold(existing, name) && existing != name {
			delete(headers, existing)
		}
	}

	headers[name] = value
}

func headerValue(headers map[string]string, name string) string {
	for existing, value := range headers {
		if strings.EqualFold(existing, name) {
			return value
		}
	}

	return ""
}
