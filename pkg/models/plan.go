package models

import "encoding/json"

// ResolvedBash is a bash action after template substitution, ready to run on
// the trusted host.
type ResolvedBash struct {
	Command          string   `json:"command"`
	TimeoutMS        int      `json:"timeout_ms"`
	WorkingDirectory *string  `json:"working_directory"`
	AllowedCommands  []string `json:"allowed_commands"`
}

// ResolvedComposite is a composite action whose step params have been
// resolved against the caller's parameters. Step result placeholders are
// still present.
type ResolvedComposite struct {
	Steps       []CompositeStep `json:"steps"`
	StopOnError bool            `json:"stop_on_error"`
}

// Plan is what the action store returns for an invocation: a final result for
// api actions, or a resolved payload the trusted host must run itself.
type Plan struct {
	Action     string             `json:"action"`
	ActionType ActionType         `json:"action_type"`
	Params     map[string]any     `json:"params,omitempty"`
	Result     *Result            `json:"result,omitempty"`
	Bash       *ResolvedBash      `json:"bash,omitempty"`
	Composite  *ResolvedComposite `json:"composite,omitempty"`
}

// Final reports whether the plan already carries the invocation result.
func (p *Plan) Final() bool {
	return p.Result != nil
}

// planDocument is the wire shape of an unfinished plan.
type planDocument struct {
	Action     string          `json:"action,omitempty"`
	ActionType ActionType      `json:"action_type"`
	Params     map[string]any  `json:"params,omitempty"`
	Resolved   json.RawMessage `json:"resolved,omitempty"`
	Success    *bool           `json:"success,omitempty"`
}

// MarshalJSON writes a final plan as its bare result and an unfinished plan
// as {action_type, resolved}.
func (p Plan) MarshalJSON() ([]byte, error) {
	if p.Result != nil {
		result := *p.Result
		if result.ActionType == "" {
			result.ActionType = p.ActionType
		}

		return json.Marshal(result)
	}

	var resolved any

	switch p.ActionType {
	case ActionTypeBash:
		resolved = p.Bash
	case ActionTypeComposite:
		resolved = p.Composite
	}

	payload, err := json.Marshal(resolved)
	if err != nil {
		return nil, err
	}

	return json.Marshal(planDocument{
		Action:     p.Action,
		ActionType: p.ActionType,
		Params:     p.Params,
		Resolved:   payload,
	})
}

// UnmarshalJSON reads either shape written by MarshalJSON. A document with a
// success flag is a final result.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var doc planDocument

	err := json.Unmarshal(data, &doc)
	if err != nil {
		return err
	}

	*p = Plan{Action: doc.Action, ActionType: doc.ActionType, Params: doc.Params}

	if doc.Success != nil {
		var result Result

		err = json.Unmarshal(data, &result)
		if err != nil {
			return err
		}

		p.Result = &result

		return nil
	}

	if len(doc.Resolved) == 0 || string(doc.Resolved) == "null" {
		return nil
	}

	switch doc.ActionType {
	case ActionTypeBash:
		p.Bash = &ResolvedBash{}

		return json.Unmarshal(doc.Resolved, p.Bash)
	case ActionTypeComposite:
		p.Composite = &ResolvedComposite{}

		return json.Unmarshal(doc.Resolved, p.Composite)
	}

	return nil
}
