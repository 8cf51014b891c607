package bootstrap

import (
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/dlmbl/labsetup/internal/logger"

	// Ensure SHA512 is available for checksum calculation.
	_ "crypto/sha512"
)

var errHashUnavailable = errors.New("hash function unavailable")

const (
	// MarkerFilename marks that a bootstrap is running right now to avoid
	// two runs racing over the same environment.
	MarkerFilename = "labsetup-provision-marker.bin"

	// DefaultChecksumFunction is used to fingerprint the installed manifest.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512

	// markerLifetime is the period after which a provisioning marker is
	// considered stale. Manifest installs download large packages, so the
	// bound is much longer than the marker of a quick update run would need.
	markerLifetime = 2 * time.Hour

	// baseExecutable is the bootstrap binary name without platform extension.
	baseExecutable = "labsetup"
)

// IsBootstrapRunningNow checks presence of a marker file and attempts recovery if it looks stale.
func IsBootstrapRunningNow(ctx context.Context) bool {
	logger.Info(ctx, "Checking for the presence of a provisioning marker")

	fileInfo, err := os.Stat(MarkerFilename)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The provisioning marker is too old, attempting cleanup")

		if err = terminateProcessByName(executableName()); err != nil {
			return true
		}

		if err = os.Remove(MarkerFilename); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Provisioning marker not found, continuing")
		return false
	}

	logger.Infof(ctx, "Unable to read provisioning marker: %v", err)

	return false
}

// ManifestChecksum returns the base64-encoded checksum of the manifest file
// using DefaultChecksumFunction.
func ManifestChecksum(path string) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	if !DefaultChecksumFunction.Available() {
		return "", fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return base64.StdEncoding.EncodeToString(hasher.Sum(nil)), nil
}

// terminateProcessByName tries to kill processes with the provided executable name.
func terminateProcessByName(processName string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}

// executableName returns the bootstrap binary name for the current platform.
func executableName() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return baseExecutable + ".exe"
	}

	return baseExecutable
}
