package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dlmbl/labsetup/internal/config"
	"github.com/dlmbl/labsetup/internal/conda"
	"github.com/dlmbl/labsetup/internal/dataset"
	"github.com/dlmbl/labsetup/internal/logger"
	"github.com/dlmbl/labsetup/internal/repository/receipt"
)

// EnvironmentManager is the environment-manager surface the pipeline drives.
type EnvironmentManager interface {
	CreateEnv(ctx context.Context, name, pythonVersion string) error
	RemoveEnv(ctx context.Context, name string) error
	ActiveEnv(ctx context.Context, name string) (string, error)
	InstallManifest(ctx context.Context, name, manifest string, channels []string) error
	RegisterKernel(ctx context.Context, name, displayName string) error
}

// DatasetFetcher retrieves the exercise data.
type DatasetFetcher interface {
	Fetch(ctx context.Context) (*dataset.Summary, error)
}

// Options are inputs accepted by the bootstrap entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// KeepGoing logs install, registration and download failures and
	// continues instead of stopping. The activation check aborts the run
	// in both modes.
	KeepGoing bool
	// SkipData skips the dataset retrieval step.
	SkipData bool
	// Recreate removes a pre-existing environment with the target name
	// before creating it, for re-provisioning a broken environment.
	Recreate bool

	// Manager overrides the environment manager. Used by tests.
	Manager EnvironmentManager
	// NewFetcher overrides dataset fetcher construction. Used by tests.
	NewFetcher func(*config.DatasetConfig) DatasetFetcher
	// Receipts overrides the receipt repository. Used by tests.
	Receipts receipt.Repository
}

// Step names recorded in the receipt, in pipeline order.
const (
	StepCreate   = "create"
	StepInstall  = "install"
	StepKernel   = "kernel"
	StepDataset  = "dataset"
	StepTeardown = "teardown"
)

var (
	// ErrEnvironmentMismatch indicates the activation check failed: the
	// environment manager reports a different active environment than the
	// one just created. Nothing with further side effects runs after it.
	ErrEnvironmentMismatch = errors.New("environment activation verification failed")

	// ErrAlreadyRunning indicates another bootstrap holds the marker file.
	ErrAlreadyRunning = errors.New("a provisioning run is already in progress")
)

// Run executes the provisioning pipeline:
// 1) Create the pinned environment.
// 2) Verify activation by exact name comparison.
// 3) Install the dependency manifest scoped to the configured channels.
// 4) Register the notebook kernel under the environment name.
// 5) Fetch the exercise dataset.
// 6) Tear down back to the base environment and persist the receipt.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "labsetup")

	// Load settings from configuration file, falling back to course defaults.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if IsBootstrapRunningNow(ctx) {
		return ErrAlreadyRunning
	}

	marker, err := os.Create(MarkerFilename)
	if err != nil {
		return fmt.Errorf("create provisioning marker: %w", err)
	}

	if err = marker.Close(); err != nil {
		return fmt.Errorf("close provisioning marker: %w", err)
	}

	defer func() {
		_ = os.Remove(MarkerFilename)
	}()

	r := newRun(cfg, opts)

	if err = r.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Provisioning failed", "error", err)
		return err
	}

	logger.Info(ctx, "Provisioning completed")

	return nil
}

// run holds the state of a single provisioning execution.
type run struct {
	cfg      *config.Config
	opts     *Options
	manager  EnvironmentManager
	fetcher  DatasetFetcher
	receipts receipt.Repository
	// activeEnv tracks which environment the run considers active. With
	// explicit subprocess invocation there is no shell activation state to
	// mutate, so this is the tool's own bookkeeping.
	activeEnv string
}

// newRun wires defaults for any collaborator not injected through Options.
func newRun(cfg *config.Config, opts *Options) *run {
	r := &run{
		cfg:      cfg,
		opts:     opts,
		manager:  opts.Manager,
		receipts: opts.Receipts,
	}

	if r.manager == nil {
		r.manager = conda.NewManager()
	}

	newFetcher := opts.NewFetcher
	if newFetcher == nil {
		newFetcher = func(datasetCfg *config.DatasetConfig) DatasetFetcher {
			return dataset.NewDownloader(datasetCfg)
		}
	}

	r.fetcher = newFetcher(&cfg.Dataset)

	if r.receipts == nil {
		r.receipts = receipt.NewFileRepository(cfg.ReceiptFile)
	}

	return r
}

// Run drives the pipeline for this execution.
//
//nolint:cyclop // The step sequence reads best as one linear function.
func (r *run) Run(ctx context.Context) error {
	env := &r.cfg.Environment

	rec, err := receipt.New(env.Name, env.PythonVersion)
	if err != nil {
		return fmt.Errorf("start receipt: %w", err)
	}

	ctx = logger.WithKV(ctx, "run_id", rec.RunID)
	logger.InfoKV(ctx, "Provisioning environment",
		"name", env.Name, "python", env.PythonVersion, "manifest", env.Manifest)

	r.fingerprintManifest(ctx, rec)

	if r.opts.Recreate {
		if err = r.removeExistingEnv(ctx, env.Name); err != nil {
			return err
		}
	}

	// Step 1: create the pinned environment.
	err = r.timed(ctx, func(ctx context.Context) error {
		return r.manager.CreateEnv(ctx, env.Name, env.PythonVersion)
	})

	rec.RecordStep(StepCreate, err)

	if err != nil && !r.opts.KeepGoing {
		return r.finish(ctx, rec, fmt.Errorf("create environment: %w", err))
	}

	// Step 2: activation check. A mismatch terminates before anything with
	// further side effects, in both failure-handling modes.
	if err = r.verifyActivation(ctx, env.Name); err != nil {
		return err
	}

	r.activeEnv = env.Name

	// Step 3: install the manifest, then register the kernel.
	err = r.step(ctx, rec, StepInstall, func(ctx context.Context) error {
		return r.manager.InstallManifest(ctx, env.Name, env.Manifest, env.Channels)
	})
	if err != nil {
		return r.finish(ctx, rec, err)
	}

	err = r.step(ctx, rec, StepKernel, func(ctx context.Context) error {
		return r.manager.RegisterKernel(ctx, env.Name, env.KernelDisplayName)
	})
	if err != nil {
		return r.finish(ctx, rec, err)
	}

	// Step 4: fetch the dataset.
	if err = r.fetchDataset(ctx, rec); err != nil {
		return r.finish(ctx, rec, err)
	}

	// Step 5: teardown back to the base environment.
	r.teardown(ctx, rec)

	return r.finish(ctx, rec, nil)
}

// fingerprintManifest records the manifest checksum in the receipt. A missing
// manifest is not fatal here: the install step reports it with the
// environment manager's own diagnostics.
func (r *run) fingerprintManifest(ctx context.Context, rec *receipt.Receipt) {
	checksum, err := ManifestChecksum(r.cfg.Environment.Manifest)
	if err != nil {
		logger.WarnKV(ctx, "Unable to fingerprint manifest",
			"manifest", r.cfg.Environment.Manifest, "error", err)

		return
	}

	rec.ManifestChecksum = checksum
}

// removeExistingEnv deletes a leftover environment before re-provisioning.
func (r *run) removeExistingEnv(ctx context.Context, name string) error {
	logger.InfoKV(ctx, "Removing existing environment", "name", name)

	err := r.timed(ctx, func(ctx context.Context) error {
		return r.manager.RemoveEnv(ctx, name)
	})
	if err != nil {
		return fmt.Errorf("remove environment: %w", err)
	}

	return nil
}

// verifyActivation probes the environment and compares the reported name by
// exact string equality, the single distinguished error condition.
func (r *run) verifyActivation(ctx context.Context, name string) error {
	var active string

	err := r.timed(ctx, func(ctx context.Context) error {
		var probeErr error
		active, probeErr = r.manager.ActiveEnv(ctx, name)

		return probeErr
	})
	if err != nil {
		logger.ErrorKV(ctx, "Unable to verify environment activation", "name", name, "error", err)
		return fmt.Errorf("%w: %s", ErrEnvironmentMismatch, name)
	}

	if active != name {
		logger.Errorf(ctx, "Environment %q is not active (reported: %q), stopping before installation", name, active)
		return fmt.Errorf("%w: expected %q, reported %q", ErrEnvironmentMismatch, name, active)
	}

	logger.InfoKV(ctx, "Environment active", "name", name)

	return nil
}

// fetchDataset runs the dataset retrieval step and stores the transfer summary.
func (r *run) fetchDataset(ctx context.Context, rec *receipt.Receipt) error {
	if r.opts.SkipData {
		logger.Info(ctx, "Skipping dataset retrieval")
		rec.SkipStep(StepDataset)

		return nil
	}

	return r.step(ctx, rec, StepDataset, func(ctx context.Context) error {
		summary, err := r.fetcher.Fetch(ctx)
		if err != nil {
			return err
		}

		rec.Transfer = summary

		return nil
	})
}

// teardown restores the base environment. There is no parent shell to mutate,
// so this resets the run's own active-environment tracking and is recorded
// in the receipt; it is never reached on the mismatch path.
func (r *run) teardown(ctx context.Context, rec *receipt.Receipt) {
	logger.InfoKV(ctx, "Deactivating environment", "name", r.activeEnv)

	r.activeEnv = r.cfg.Environment.Base

	logger.InfoKV(ctx, "Base environment restored", "name", r.activeEnv)
	rec.RecordStep(StepTeardown, nil)
}

// step runs one pipeline step, records its outcome, and applies the
// configured failure handling: fail fast by default, log and continue when
// KeepGoing is set.
func (r *run) step(ctx context.Context, rec *receipt.Receipt, name string, fn func(context.Context) error) error {
	logger.InfoKV(ctx, "Running step", "step", name)

	err := r.timed(ctx, fn)
	rec.RecordStep(name, err)

	if err == nil {
		return nil
	}

	if r.opts.KeepGoing {
		logger.WarnKV(ctx, "Step failed, continuing", "step", name, "error", err)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// timed bounds one external operation with the configured timeout.
func (r *run) timed(ctx context.Context, fn func(context.Context) error) error {
	if r.cfg.Timeout <= 0 {
		return fn(ctx)
	}

	opCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	return fn(opCtx)
}

// finish stamps and persists the receipt, then returns the pipeline error.
func (r *run) finish(ctx context.Context, rec *receipt.Receipt, runErr error) error {
	rec.Finish()

	if err := r.receipts.Save(ctx, rec); err != nil {
		logger.ErrorKV(ctx, "Unable to save receipt", "error", err)

		if runErr == nil {
			return err
		}
	}

	if runErr == nil {
		logger.InfoKV(ctx, "Receipt saved",
			"path", r.cfg.ReceiptFile, "duration", rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond).String())
	}

	return runErr
}
