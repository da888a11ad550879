// Package bazel resolves file modules from the owning Bazel targets.
package bazel

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Executor runs Bazel queries
type Executor interface {
	RunQuery(ctx context.Context, workspacePath string, query string) ([]byte, error)
}

// CommandExecutor invokes the bazel binary found on PATH
type CommandExecutor struct {
	// Binary overrides the executable, e.g. "bazelisk"
	Binary string
}

// NewExecutor creates an executor running the bazel binary
func NewExecutor() Executor {
	return &CommandExecutor{Binary: "bazel"}
}

// RunQuery executes a Bazel query and returns the raw XML output.
// It respects the provided context for cancellation.
func (e *CommandExecutor) RunQuery(ctx context.Context, workspacePath string, query string) ([]byte, error) {
	bin := e.Binary
	if bin == "" {
		bin = "bazel"
	}
	cmd := exec.CommandContext(ctx, bin, "query", query, "--output=xml")
	cmd.Dir = workspacePath

	output, err := cmd.Output()
	if err != nil {
		var stderr string
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			stderr = string(ee.Stderr)
		}
		return nil, fmt.Errorf("bazel query failed: %w\n%s", err, stderr)
	}
	return output, nil
}
