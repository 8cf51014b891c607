package selfupdate

import (
	"bytes"
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	goupdate "github.com/doitdistributed/go-update"
	"gopkg.in/yaml.v3"

	"github.com/dlmbl/labsetup/internal/config"
	"github.com/dlmbl/labsetup/internal/logger"
	"github.com/dlmbl/labsetup/internal/version"

	// Ensure SHA512 is available for checksum validation.
	_ "crypto/sha512"
)

const (
	// ManifestFilename is the release manifest hosted in the update folder.
	ManifestFilename = "labsetup-version.yaml"

	// DefaultFileMode is applied to the replaced binary.
	DefaultFileMode os.FileMode = 0o755

	// checksumFunction validates the downloaded binary.
	checksumFunction crypto.Hash = crypto.SHA512
)

var (
	errNoUpdateFolder = errors.New("update folder is not configured")
	errBadHTTPStatus  = errors.New("unexpected http status")
	errNoChecksum     = errors.New("checksum missing from release manifest")
	errNoBinary       = errors.New("binary name missing from release manifest")
)

// Manifest describes a published labsetup release.
type Manifest struct {
	// VersionNumber is the semantic version of the release.
	VersionNumber string `yaml:"version"`
	// Binary is the artifact filename within the update folder.
	Binary string `yaml:"binary"`
	// Checksum is the base64-encoded sha512 of the artifact.
	Checksum string `yaml:"checksum"`
}

// Options are inputs accepted by the self-update entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// TargetPath overrides the binary to replace. Empty means the running
	// executable. Used by tests.
	TargetPath string
}

// Run fetches the release manifest from the configured update folder,
// compares it with the built-in version and applies the new binary with
// checksum verification.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "labsetup-update")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.UpdateFolder == "" {
		return errNoUpdateFolder
	}

	manifest, err := fetchManifest(ctx, cfg.UpdateFolder)
	if err != nil {
		return fmt.Errorf("download release manifest: %w", err)
	}

	if manifest.VersionNumber == version.Short() {
		logger.InfoKV(ctx, "Already up to date", "version", version.Short())
		return nil
	}

	logger.InfoKV(ctx, "Updating",
		"local", version.Short(), "remote", manifest.VersionNumber)

	if err = apply(ctx, cfg.UpdateFolder, manifest, opts.TargetPath); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Update applied", "version", manifest.VersionNumber)

	return nil
}

// fetchManifest downloads and parses the release manifest.
func fetchManifest(ctx context.Context, updateFolder string) (*Manifest, error) {
	body, err := fetchFile(ctx, updateFolder, ManifestFilename)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err = yaml.Unmarshal(body, &manifest); err != nil {
		return nil, err
	}

	if manifest.Binary == "" {
		return nil, errNoBinary
	}

	if manifest.Checksum == "" {
		return nil, errNoChecksum
	}

	return &manifest, nil
}

// apply downloads the release binary and replaces the target executable.
func apply(ctx context.Context, updateFolder string, manifest *Manifest, targetPath string) error {
	checksum, err := base64.StdEncoding.DecodeString(manifest.Checksum)
	if err != nil {
		return fmt.Errorf("decode checksum: %w", err)
	}

	body, err := fetchFile(ctx, updateFolder, manifest.Binary)
	if err != nil {
		return fmt.Errorf("download %s: %w", manifest.Binary, err)
	}

	options := goupdate.Options{
		TargetPath: targetPath,
		TargetMode: DefaultFileMode,
		Checksum:   checksum,
		Hash:       checksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(body), options); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}

	oldFileName := targetPath + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}

// fetchFile retrieves a file from the update folder.
func fetchFile(ctx context.Context, updateFolder, fileName string) ([]byte, error) {
	folderURL, err := url.Parse(updateFolder)
	if err != nil {
		return nil, err
	}

	// Use path.Join to normalize duplicate slashes when composing the URL path.
	folderURL.Path = path.Join(folderURL.Path, fileName)
	finalURL := folderURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", finalURL, response.Status, errBadHTTPStatus)
	}

	return io.ReadAll(response.Body)
}
