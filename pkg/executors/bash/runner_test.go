package bash

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(cfg Config) *Runner {
	return NewRunner(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
}

func requireBinary(t *testing.T, name string) {
	t.Helper()

	if _, err := os.Stat("/bin/" + name); err != nil {
		if _, err := os.Stat("/usr/bin/" + name); err != nil {
			t.Skipf("%s not available", name)
		}
	}
}

func TestResolve(t *testing.T) {
	dir := "/tmp"
	action := models.NewAction("disk_usage", &models.BashConfig{
		CommandTemplate:  "du -sh {{path}}",
		WorkingDirectory: &dir,
		AllowedCommands:  []string{"du"},
	})

	resolved, err := Resolve(action, map[string]any{"path": "."})
	require.NoError(t, err)

	assert.Equal(t, "du -sh .", resolved.Command)
	assert.Equal(t, models.DefaultTimeoutMS, resolved.TimeoutMS)
	assert.Equal(t, &dir, resolved.WorkingDirectory)
	assert.Equal(t, []string{"du"}, resolved.AllowedCommands)
}

func TestResolve_MissingConfig(t *testing.T) {
	_, err := Resolve(&models.Action{Name: "x", Type: models.ActionTypeBash}, nil)
	assert.ErrorIs(t, err, models.ErrMissingConfig)
}

func TestRunner_Check(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		resolved models.ResolvedBash
		wantArgv []string
		wantErr  error
	}{
		{
			name:     "whitelisted command is split on whitespace",
			resolved: models.ResolvedBash{Command: "du  -sh\t.", AllowedCommands: []string{"du"}},
			wantArgv: []string{"du", "-sh", "."},
		},
		{
			name:     "command outside whitelist is rejected",
			resolved: models.ResolvedBash{Command: "rm -rf /", AllowedCommands: []string{"du"}},
			wantErr:  ErrCommandRejected,
		},
		{
			name:     "empty whitelist is permissive by default",
			resolved: models.ResolvedBash{Command: "ls -la"},
			wantArgv: []string{"ls", "-la"},
		},
		{
			name:     "empty whitelist is rejected when required",
			cfg:      Config{RequireWhitelist: true},
			resolved: models.ResolvedBash{Command: "ls -la"},
			wantErr:  ErrCommandRejected,
		},
		{
			name:     "blank command",
			resolved: models.ResolvedBash{Command: "   "},
			wantErr:  ErrEmptyCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			argv, err := newTestRunner(tt.cfg).Check(&tt.resolved)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantArgv, argv)
		})
	}
}

func TestRunner_Run_RejectedCommandNeverSpawns(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "spawned")

	result, err := newTestRunner(Config{}).Run(context.Background(), &models.ResolvedBash{
		Command:         "touch " + marker,
		AllowedCommands: []string{"du"},
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, `command "touch" not in allowed_commands: [du]`, result.Error)
	assert.NoFileExists(t, marker)
}

func TestRunner_Run_EmptyCommand(t *testing.T) {
	_, err := newTestRunner(Config{}).Run(context.Background(), &models.ResolvedBash{})
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestRunner_Run_NoShellInterpretation(t *testing.T) {
	requireBinary(t, "echo")

	marker := filepath.Join(t.TempDir(), "pwned")

	result, err := newTestRunner(Config{}).Run(context.Background(), &models.ResolvedBash{
		Command:         "echo hello; touch " + marker,
		AllowedCommands: []string{"echo"},
		TimeoutMS:       5000,
	})
	require.NoError(t, err)

	require.True(t, result.Success, result.Error)

	output, ok := result.Data.(*models.BashOutput)
	require.True(t, ok)
	assert.Equal(t, "hello; touch "+marker, output.Stdout)
	assert.NoFileExists(t, marker)
}

func TestRunner_Run_WorkingDirectory(t *testing.T) {
	requireBinary(t, "pwd")

	dir := t.TempDir()

	result, err := newTestRunner(Config{}).Run(context.Background(), &models.ResolvedBash{Command: "pwd", WorkingDirectory: &dir})
	require.NoError(t, err)

	require.True(t, result.Success, result.Error)

	resolvedDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	output := result.Data.(*models.BashOutput)
	assert.True(t, output.Stdout == dir || output.Stdout == resolvedDir)
}

func TestRunner_Run_NonZeroExitKeepsOutput(t *testing.T) {
	requireBinary(t, "ls")

	missing := filepath.Join(t.TempDir(), "does-not-exist")

	result, err := newTestRunner(Config{}).Run(context.Background(), &models.ResolvedBash{Command: "ls " + missing})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "exited with code")

	output := result.Data.(*models.BashOutput)
	require.NotNil(t, output.Code)
	assert.NotZero(t, *output.Code)
	assert.NotEmpty(t, output.Stderr)
}

func TestRunner_Run_Timeout(t *testing.T) {
	requireBinary(t, "sleep")

	start := time.Now()

	result, err := newTestRunner(Config{}).Run(context.Background(), &models.ResolvedBash{Command: "sleep 10", TimeoutMS: 100})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, result.Success)
	assert.Equal(t, "command timed out after 100ms", result.Error)
	assert.Nil(t, result.Data.(*models.BashOutput).Code)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestRunner_Run_TimeoutKillsChildProcesses(t *testing.T) {
	requireBinary(t, "sh")
	requireBinary(t, "sleep")

	script := writeScript(t, "sleep 4 &\nsleep 30\n")
	start := time.Now()

	result, err := newTestRunner(Config{}).Run(context.Background(), &models.ResolvedBash{
		Command:   "sh " + script,
		TimeoutMS: 300,
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 3*time.Second)
	assert.False(t, result.Success)
	assert.Equal(t, "command timed out after 300ms", result.Error)
}

func TestRunner_Run_ContextCancelKillsChildProcesses(t *testing.T) {
	requireBinary(t, "sh")
	requireBinary(t, "sleep")

	script := writeScript(t, "sleep 30 &\nsleep 30\n")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()

	result, err := newTestRunner(Config{}).Run(ctx, &models.ResolvedBash{
		Command:   "sh " + script,
		TimeoutMS: 60000,
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 3*time.Second)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, context.DeadlineExceeded.Error())
}

func TestRunner_Run_BackgroundChildDoesNotHoldResult(t *testing.T) {
	requireBinary(t, "sh")
	requireBinary(t, "sleep")

	script := writeScript(t, "sleep 30 &\necho done\n")
	start := time.Now()

	result, err := newTestRunner(Config{}).Run(context.Background(), &models.ResolvedBash{
		Command:   "sh " + script,
		TimeoutMS: 10000,
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "done", result.Data.(*models.BashOutput).Stdout)
}

func TestRunner_Run_SpawnFailure(t *testing.T) {
	result, err := newTestRunner(Config{}).Run(context.Background(), &models.ResolvedBash{Command: "definitely-not-a-real-binary-xyz"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "failed to start command")
}

func TestRunner_Run_OutputIsCapped(t *testing.T) {
	requireBinary(t, "head")

	result, err := newTestRunner(Config{MaxOutputBytes: 16}).Run(context.Background(), &models.ResolvedBash{
		Command:   "head -c 100000 /dev/zero",
		TimeoutMS: 5000,
	})
	require.NoError(t, err)

	require.True(t, result.Success, result.Error)

	output := result.Data.(*models.BashOutput)
	assert.True(t, output.Truncated)
	assert.LessOrEqual(t, len(output.Stdout), 16)
}

func TestCommandError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &CommandError{Cmd: "x", Cause: cause, Stage: "start"}

	assert.ErrorIs(t, err, cause)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to start command x"))
}
