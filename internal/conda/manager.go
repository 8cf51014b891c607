package conda

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultExecutable is the environment manager binary looked up on PATH.
	DefaultExecutable = "conda"

	// activationProbe runs inside the target environment and prints the
	// name the environment manager reports as active. This replaces the
	// shell's CONDA_DEFAULT_ENV check with an explicit operation.
	activationProbe = `import os; print(os.environ.get("CONDA_DEFAULT_ENV", ""))`

	// outputTailLimit bounds how much subprocess output is attached to errors.
	outputTailLimit = 512
)

// Manager drives the external environment manager: environment creation and
// removal, activation probing, manifest installation and kernel registration.
type Manager struct {
	// executable is the environment manager binary.
	executable string
	// runner performs the actual process invocations.
	runner CommandRunner
}

// Option customizes Manager construction.
type Option func(*Manager)

// WithExecutable overrides the environment manager binary.
func WithExecutable(executable string) Option {
	return func(m *Manager) {
		m.executable = executable
	}
}

// WithRunner overrides the process runner. Used by tests and dry runs.
func WithRunner(runner CommandRunner) Option {
	return func(m *Manager) {
		m.runner = runner
	}
}

// NewManager creates a Manager invoking the real environment manager binary
// unless overridden via options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		executable: DefaultExecutable,
		runner:     execRunner{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// CreateEnv creates a named environment pinned to the given interpreter
// version, confirming non-interactively.
func (m *Manager) CreateEnv(ctx context.Context, name, pythonVersion string) error {
	return m.run(ctx, "create", "--yes", "--name", name, "python="+pythonVersion)
}

// RemoveEnv deletes a named environment, confirming non-interactively.
func (m *Manager) RemoveEnv(ctx context.Context, name string) error {
	return m.run(ctx, "env", "remove", "--yes", "--name", name)
}

// ActiveEnv probes the named environment and returns the environment name
// the manager reports as active inside it. Callers compare the result
// against the expected name by exact string equality before any operation
// with further side effects.
func (m *Manager) ActiveEnv(ctx context.Context, name string) (string, error) {
	output, err := m.runner.Run(ctx, m.executable, "run", "-n", name, "python", "-c", activationProbe)
	if err != nil {
		return "", fmt.Errorf("conda run: %w%s", err, tailOfOutput(output))
	}

	return lastLine(output), nil
}

// InstallManifest installs the dependency manifest into the named
// environment, scoped to the provided channels, confirming non-interactively.
func (m *Manager) InstallManifest(ctx context.Context, name, manifest string, channels []string) error {
	args := []string{"install", "--yes", "--name", name, "--file", manifest}
	for _, channel := range channels {
		args = append(args, "--channel", channel)
	}

	return m.run(ctx, args...)
}

// RegisterKernel binds the environment to a selectable notebook kernel. The
// environment name is used as the kernel identifier.
func (m *Manager) RegisterKernel(ctx context.Context, name, displayName string) error {
	return m.run(ctx,
		"run", "-n", name,
		"python", "-m", "ipykernel", "install",
		"--user", "--name", name, "--display-name", displayName,
	)
}

// run invokes the environment manager and wraps failures with the trailing
// subprocess output, which is where conda reports its diagnostics.
func (m *Manager) run(ctx context.Context, args ...string) error {
	output, err := m.runner.Run(ctx, m.executable, args...)
	if err != nil {
		return fmt.Errorf("conda %s: %w%s", args[0], err, tailOfOutput(output))
	}

	return nil
}

// tailOfOutput renders the trailing subprocess output for error messages,
// or an empty string when there is no output.
func tailOfOutput(output []byte) string {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return ""
	}

	if len(trimmed) > outputTailLimit {
		trimmed = trimmed[len(trimmed)-outputTailLimit:]
	}

	return ": " + trimmed
}

// lastLine returns the final non-empty output line. The activation probe
// prints exactly one line, but the manager may prepend its own notices.
func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")

	return strings.TrimSpace(lines[len(lines)-1])
}
