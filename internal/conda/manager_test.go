package conda

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordedCall captures a single invocation observed by fakeRunner.
type recordedCall struct {
	name string
	args []string
}

// fakeRunner records invocations and plays back scripted results.
type fakeRunner struct {
	calls  []recordedCall
	output []byte
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, recordedCall{name: name, args: args})
	return f.output, f.err
}

// TestCreateEnv_Arguments verifies the non-interactive create invocation.
func TestCreateEnv_Arguments(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	m := NewManager(WithRunner(runner))

	require.NoError(t, m.CreateEnv(context.Background(), "exercise-env", "3.11"))
	require.Len(t, runner.calls, 1)
	require.Equal(t, DefaultExecutable, runner.calls[0].name)
	require.Equal(t,
		[]string{"create", "--yes", "--name", "exercise-env", "python=3.11"},
		runner.calls[0].args)
}

// TestInstallManifest_Arguments verifies manifest and channel scoping.
func TestInstallManifest_Arguments(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	m := NewManager(WithRunner(runner), WithExecutable("mamba"))

	channels := []string{"pytorch", "nvidia", "conda-forge"}
	require.NoError(t, m.InstallManifest(context.Background(), "exercise-env", "requirements.txt", channels))

	require.Len(t, runner.calls, 1)
	require.Equal(t, "mamba", runner.calls[0].name)
	require.Equal(t,
		[]string{
			"install", "--yes", "--name", "exercise-env", "--file", "requirements.txt",
			"--channel", "pytorch", "--channel", "nvidia", "--channel", "conda-forge",
		},
		runner.calls[0].args)
}

// TestRegisterKernel_Arguments verifies the kernel install invocation runs
// inside the environment and uses the name as the kernel identifier.
func TestRegisterKernel_Arguments(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	m := NewManager(WithRunner(runner))

	require.NoError(t, m.RegisterKernel(context.Background(), "exercise-env", "Exercise Env"))
	require.Len(t, runner.calls, 1)
	require.Equal(t,
		[]string{
			"run", "-n", "exercise-env",
			"python", "-m", "ipykernel", "install",
			"--user", "--name", "exercise-env", "--display-name", "Exercise Env",
		},
		runner.calls[0].args)
}

// TestActiveEnv returns the probed environment name, tolerating manager notices.
func TestActiveEnv(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: []byte("==> notice: channels updated <==\nexercise-env\n")}
	m := NewManager(WithRunner(runner))

	name, err := m.ActiveEnv(context.Background(), "exercise-env")
	require.NoError(t, err)
	require.Equal(t, "exercise-env", name)

	require.Len(t, runner.calls, 1)
	require.Equal(t, "run", runner.calls[0].args[0])
	require.Equal(t, []string{"-n", "exercise-env"}, runner.calls[0].args[1:3])
}

// TestRun_ErrorIncludesOutput ensures failures carry the trailing subprocess output.
func TestRun_ErrorIncludesOutput(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		output: []byte("PackagesNotFoundError: the following packages are missing"),
		err:    errors.New("exit status 1"),
	}
	m := NewManager(WithRunner(runner))

	err := m.CreateEnv(context.Background(), "exercise-env", "3.11")
	require.Error(t, err)
	require.Contains(t, err.Error(), "PackagesNotFoundError")
	require.Contains(t, err.Error(), "exit status 1")
}
