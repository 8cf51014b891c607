package conda

import (
	"context"
	"os/exec"
)

// CommandRunner abstracts external process invocation so that services and
// tests can observe exactly which operations run without spawning processes.
type CommandRunner interface {
	// Run executes the named program with arguments and returns its
	// combined stdout/stderr output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner invokes real processes via os/exec.
type execRunner struct{}

// Run executes the command and waits for completion.
func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
