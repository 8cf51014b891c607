package receipt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dlmbl/labsetup/internal/dataset"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))
	r, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, r)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns an equal receipt.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "receipt.json")
	repo := NewFileRepository(file)

	want, err := New("05-semantic-segmentation", "3.11")
	require.NoError(t, err)
	require.NotEmpty(t, want.RunID)
	require.NotEmpty(t, want.Hostname)
	require.NotEmpty(t, want.Username)

	want.ManifestChecksum = "c2hhNTEyLWNoZWNrc3Vt"
	want.RecordStep("create", nil)
	want.RecordStep("install", errors.New("exit status 1"))
	want.SkipStep("dataset")
	want.Transfer = &dataset.Summary{Objects: 30, Bytes: 123456}
	want.Finish()

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.RunID, got.RunID)
	require.Equal(t, want.Environment, got.Environment)
	require.Equal(t, want.ManifestChecksum, got.ManifestChecksum)
	require.Len(t, got.Steps, 3)
	require.Equal(t, StepOK, got.Steps[0].Status)
	require.Equal(t, StepFailed, got.Steps[1].Status)
	require.Equal(t, "exit status 1", got.Steps[1].Error)
	require.Equal(t, StepSkipped, got.Steps[2].Status)
	require.Equal(t, want.Transfer, got.Transfer)

	_, err = os.Stat(file)
	require.NoError(t, err)
}
