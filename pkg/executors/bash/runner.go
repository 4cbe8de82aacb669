package bash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/gonbaum/composite/pkg/models"
)

// DefaultMaxOutputBytes caps each of stdout and stderr.
const DefaultMaxOutputBytes = 1 << 20

// pipeWaitDelay bounds how long output is still read after the command exits.
const pipeWaitDelay = time.Second

// Config holds the runner settings fixed at startup.
type Config struct {
	// MaxOutputBytes caps each captured stream. Zero means DefaultMaxOutputBytes.
	MaxOutputBytes int
	// RequireWhitelist rejects commands whose action declares no allowed_commands.
	RequireWhitelist bool
}

// Runner executes resolved bash commands. It is safe for concurrent use.
type Runner struct {
	maxOutputBytes   int
	requireWhitelist bool
	logger           *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(logger *slog.Logger, cfg Config) *Runner {
	maxBytes := cfg.MaxOutputBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxOutputBytes
	}

	return &Runner{
		maxOutputBytes:   maxBytes,
		requireWhitelist: cfg.RequireWhitelist,
		logger:           logger.With("module", "bash_runner"),
	}
}

// Check applies the whitelist to a resolved command and returns its argv.
func (r *Runner) Check(resolved *models.ResolvedBash) ([]string, error) {
	argv := strings.Fields(resolved.Command)
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}

	base := argv[0]

	if len(resolved.AllowedCommands) == 0 {
		if r.requireWhitelist {
			return nil, &CommandRejectedError{Command: base}
		}

		return argv, nil
	}

	if !slices.Contains(resolved.AllowedCommands, base) {
		return nil, &CommandRejectedError{Command: base, Allowed: resolved.AllowedCommands}
	}

	return argv, nil
}

// Run executes the command without a shell. An empty command is returned as
// an error; every other failure, including whitelist rejection, is reported
// in the result with whatever output was captured.
func (r *Runner) Run(ctx context.Context, resolved *models.ResolvedBash) (*models.Result, error) {
	argv, err := r.Check(resolved)
	if errors.Is(err, ErrEmptyCommand) {
		return nil, err
	}

	if err != nil {
		r.logger.WarnContext(ctx, "command rejected", "command", resolved.Command, "error", err)

		return &models.Result{ActionType: models.ActionTypeBash, Error: err.Error()}, nil
	}

	timeout := time.Duration(resolved.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Duration(models.DefaultTimeoutMS) * time.Millisecond
	}

	output, runErr := r.exec(ctx, argv, resolved.WorkingDirectory, timeout)

	result := &models.Result{
		ActionType: models.ActionTypeBash,
		Success:    runErr == nil,
		Data:       output,
	}

	if runErr != nil {
		result.Error = runErr.Error()

		r.logger.InfoContext(ctx, "command failed", "command", argv[0], "error", runErr)
	}

	return result, nil
}

func (r *Runner) exec(ctx context.Context, argv []string, dir *string, timeout time.Duration) (*models.BashOutput, error) {
	stdout := newCollector(r.maxOutputBytes)
	stderr := newCollector(r.maxOutputBytes)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Background children that keep the pipes open must not hold Wait.
	cmd.WaitDelay = pipeWaitDelay

	if dir != nil && *dir != "" {
		cmd.Dir = *dir
	}

	setProcessGroup(cmd)

	err := cmd.Start()
	if err != nil {
		return &models.BashOutput{}, &CommandError{Cmd: argv[0], Cause: err, Stage: "start"}
	}

	done := make(chan error, 1)

	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var execErr error

	select {
	case execErr = <-done:
		if errors.Is(execErr, exec.ErrWaitDelay) {
			execErr = nil
		}
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		execErr = ctx.Err()
	case <-timer.C:
		killProcessGroup(cmd)
		<-done
		execErr = fmt.Errorf("%w after %dms", ErrTimeout, timeout.Milliseconds())
	}

	// Whatever the command left running in its group goes with it.
	killProcessGroup(cmd)

	output := &models.BashOutput{
		Stdout:    strings.TrimSpace(stdout.String()),
		Stderr:    strings.TrimSpace(stderr.String()),
		Truncated: stdout.truncated || stderr.truncated,
	}

	if execErr == nil {
		return output, nil
	}

	code := exitCode(execErr)
	if code >= 0 {
		output.Code = &code
		execErr = fmt.Errorf("command %s exited with code %d", argv[0], code)
	}

	return output, execErr
}

func exitCode(err error) int {
	type exitCoder interface {
		ExitCode() int
	}

	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}

	return -1
}
