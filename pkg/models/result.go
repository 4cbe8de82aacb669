package models

import (
	"encoding/json"
	"fmt"
)

// Image is a binary response body, base64 encoded.
type Image struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// ResolvedRequest is the concrete request derived from an action and its
// parameters. Header values that carry secrets are always masked.
type ResolvedRequest struct {
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    *string           `json:"body,omitempty"`
	Command string            `json:"command,omitempty"`
	Steps   []CompositeStep   `json:"steps,omitempty"`
}

// Result is the outcome of one invocation of any action type.
type Result struct {
	ActionType      ActionType       `json:"action_type,omitempty"`
	Success         bool             `json:"success"`
	Status          int              `json:"status,omitempty"`
	Data            any              `json:"data,omitempty"`
	Image           *Image           `json:"image,omitempty"`
	Error           string           `json:"error,omitempty"`
	ResolvedRequest *ResolvedRequest `json:"resolved_request,omitempty"`
}

// Failure builds an unsuccessful result carrying only a message.
func Failure(format string, args ...any) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// DataString renders Data for interpolation: strings verbatim, anything else as JSON.
func (r *Result) DataString() string {
	if s, ok := r.Data.(string); ok {
		return s
	}

	if r.Data == nil && r.Image != nil {
		return r.Image.Data
	}

	body, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Sprint(r.Data)
	}

	return string(body)
}

// BashOutput is the data of a bash result.
type BashOutput struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	Code      *int   `json:"code,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// CompositeOutput is the data of a composite result.
type CompositeOutput struct {
	Steps []*Result `json:"steps"`
}
