package process

import (
	"context"
	"os/exec"
	"sync"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/errors"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
)

// maxOutputDetail bounds how much process output is attached to an error.
const maxOutputDetail = 2048

// Runner executes an external command to completion.
type Runner interface {
	Run(ctx context.Context, command string, args ...string) ([]byte, error)
}

// OSRunner runs processes through os/exec.
type OSRunner struct{}

func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

// Run executes the command and returns its combined output.
func (*OSRunner) Run(ctx context.Context, command string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, command, args...)

	logutils.Log.WithFields(map[string]any{
		"command": command,
		"args":    args,
	}).Debug("Executing command")

	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, errors.WrapDomainError(
			err,
			errors.ErrorTypeExternal,
			"command_execution_failed",
			"failed to execute command",
		).WithDetails(map[string]any{
			"command": command,
			"output":  tail(output),
		})
	}

	return output, nil
}

func tail(output []byte) string {
	if len(output) > maxOutputDetail {
		output = output[len(output)-maxOutputDetail:]
	}
	return string(output)
}

// CommandCall is one recorded MockRunner invocation.
type CommandCall struct {
	Command string
	Args    []string
}

// MockRunner records calls and delegates to Handler, if set.
type MockRunner struct {
	Handler func(call CommandCall) ([]byte, error)

	mu    sync.Mutex
	calls []CommandCall
}

func (m *MockRunner) Run(_ context.Context, command string, args ...string) ([]byte, error) {
	call := CommandCall{Command: command, Args: append([]string(nil), args...)}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	handler := m.Handler
	m.mu.Unlock()

	if handler == nil {
		return []byte("mock output"), nil
	}
	return handler(call)
}

func (m *MockRunner) Calls() []CommandCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CommandCall(nil), m.calls...)
}
