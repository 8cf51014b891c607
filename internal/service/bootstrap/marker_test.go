package bootstrap

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// chdir changes into dir for the duration of the test, restoring the
// previous working directory on cleanup. It stands in for t.Chdir, which
// requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

// TestIsBootstrapRunningNow_FreshMarker treats a recent marker as a running bootstrap.
func TestIsBootstrapRunningNow_FreshMarker(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, os.WriteFile(MarkerFilename, nil, 0o600))
	require.True(t, IsBootstrapRunningNow(context.Background()))
}

// TestIsBootstrapRunningNow_StaleMarker removes a marker older than its lifetime.
func TestIsBootstrapRunningNow_StaleMarker(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, os.WriteFile(MarkerFilename, nil, 0o600))

	past := time.Now().Add(-markerLifetime - time.Minute)
	require.NoError(t, os.Chtimes(MarkerFilename, past, past))

	require.False(t, IsBootstrapRunningNow(context.Background()))

	_, err := os.Stat(MarkerFilename)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestIsBootstrapRunningNow_NoMarker reports no run without a marker file.
func TestIsBootstrapRunningNow_NoMarker(t *testing.T) {
	chdir(t, t.TempDir())

	require.False(t, IsBootstrapRunningNow(context.Background()))
}

// TestRun_AlreadyRunning aborts when another bootstrap holds the marker.
func TestRun_AlreadyRunning(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, os.WriteFile(MarkerFilename, nil, 0o600))

	err := Run(context.Background(), newTestOptions(&fakeManager{}, &fakeFetcher{}, &memoryReceipts{}))
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

// TestManifestChecksum matches a direct sha512 of the file contents.
func TestManifestChecksum(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "requirements.txt")
	contents := []byte("torch\ntorchvision\nimageio\n")
	require.NoError(t, os.WriteFile(path, contents, 0o600))

	sum := sha512.Sum512(contents)
	want := base64.StdEncoding.EncodeToString(sum[:])

	got, err := ManifestChecksum(path)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = ManifestChecksum(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}
