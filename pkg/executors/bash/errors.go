package bash

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyCommand indicates there is nothing to execute.
	ErrEmptyCommand = errors.New("no command to execute")

	// ErrCommandRejected is matched by every CommandRejectedError.
	ErrCommandRejected = errors.New("command rejected")

	// ErrTimeout indicates the process was killed after exceeding its timeout.
	ErrTimeout = errors.New("command timed out")
)

// CommandRejectedError names a base command refused by the whitelist.
type CommandRejectedError struct {
	Command string
	Allowed []string
}

func (e *CommandRejectedError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("command %q rejected: no allowed_commands configured", e.Command)
	}

	return fmt.Sprintf("command %q not in allowed_commands: [%s]", e.Command, strings.Join(e.Allowed, ", "))
}

func (e *CommandRejectedError) Is(target error) bool {
	return target == ErrCommandRejected
}

// CommandError records which stage of a process run failed.
type CommandError struct {
	Cmd   string
	Cause error
	Stage string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("failed to %s command %s: %v", e.Stage, e.Cmd, e.Cause)
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}
