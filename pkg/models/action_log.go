package models

import "time"

// Source identifies who triggered an invocation.
type Source string

const (
	SourceDashboard Source = "dashboard"
	SourceMCP       Source = "mcp"
	SourceUnknown   Source = "unknown"
)

// NormalizeSource maps anything unrecognised to SourceUnknown.
func NormalizeSource(s string) Source {
	switch Source(s) {
	case SourceDashboard, SourceMCP:
		return Source(s)
	default:
		return SourceUnknown
	}
}

// ActionLog is the audit record of one invocation.
type ActionLog struct {
	ID              string           `json:"id"`
	ActionName      string           `json:"action_name"`
	ActionType      ActionType       `json:"action_type"`
	Params          map[string]any   `json:"params"`
	Response        *Result          `json:"response"`
	Success         bool             `json:"success"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	DurationMS      int64            `json:"duration_ms"`
	StatusCode      *int             `json:"status_code,omitempty"`
	Source          Source           `json:"source"`
	ResolvedRequest *ResolvedRequest `json:"resolved_request,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NewActionLog shapes an audit record from a finished invocation.
func NewActionLog(action string, actionType ActionType, params map[string]any, result *Result, duration time.Duration, source Source) *ActionLog {
	entry := &ActionLog{
		ActionName: action,
		ActionType: actionType,
		Params:     params,
		Response:   result,
		DurationMS: duration.Milliseconds(),
		Source:     source,
	}

	if result != nil {
		entry.Success = result.Success
		entry.ErrorMessage = result.Error
		entry.ResolvedRequest = result.ResolvedRequest

		if result.Status != 0 {
			status := result.Status
			entry.StatusCode = &status
		}
	}

	return entry
}
