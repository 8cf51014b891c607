package receipt

import (
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/google/uuid"

	"github.com/dlmbl/labsetup/internal/dataset"
)

// StepStatus describes the outcome of one provisioning step.
type StepStatus string

const (
	// StepOK marks a step that completed successfully.
	StepOK StepStatus = "ok"
	// StepFailed marks a step whose external operation returned an error.
	StepFailed StepStatus = "failed"
	// StepSkipped marks a step that was not attempted.
	StepSkipped StepStatus = "skipped"
)

// Step records the outcome of one provisioning step.
type Step struct {
	// Name identifies the step (create, install, kernel, dataset, teardown).
	Name string `json:"name"`
	// Status is the step outcome.
	Status StepStatus `json:"status"`
	// Error carries the failure message for failed steps.
	Error string `json:"error,omitempty"`
	// FinishedAt is when the step outcome was recorded.
	FinishedAt time.Time `json:"finished_at"`
}

// Receipt is the durable record of one provisioning run.
type Receipt struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`
	// Hostname and Username identify who provisioned, for audit purposes.
	Hostname string `json:"hostname"`
	Username string `json:"username"`
	// Environment and PythonVersion identify what was provisioned.
	Environment   string `json:"environment"`
	PythonVersion string `json:"python_version"`
	// ManifestChecksum is the base64-encoded sha512 of the installed manifest.
	ManifestChecksum string `json:"manifest_checksum,omitempty"`
	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Steps lists per-step outcomes in execution order.
	Steps []Step `json:"steps"`
	// Transfer summarizes the dataset download when it ran.
	Transfer *dataset.Summary `json:"transfer,omitempty"`
}

// New creates a receipt for a run starting now, capturing host and user
// for the audit trail.
func New(environment, pythonVersion string) (*Receipt, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Receipt{
		RunID:         uuid.NewString(),
		Hostname:      hostname,
		Username:      currentUser.Username,
		Environment:   environment,
		PythonVersion: pythonVersion,
		StartedAt:     time.Now().UTC(),
	}, nil
}

// RecordStep appends a step outcome. A nil error records success.
func (r *Receipt) RecordStep(name string, err error) {
	step := Step{
		Name:       name,
		Status:     StepOK,
		FinishedAt: time.Now().UTC(),
	}

	if err != nil {
		step.Status = StepFailed
		step.Error = err.Error()
	}

	r.Steps = append(r.Steps, step)
}

// SkipStep appends a skipped step outcome.
func (r *Receipt) SkipStep(name string) {
	r.Steps = append(r.Steps, Step{
		Name:       name,
		Status:     StepSkipped,
		FinishedAt: time.Now().UTC(),
	})
}

// Finish stamps the run end time.
func (r *Receipt) Finish() {
	r.FinishedAt = time.Now().UTC()
}
