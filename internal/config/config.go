package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds provisioning parameters for the labsetup binary.
type Config struct {
	// Environment describes the isolated package environment to provision.
	Environment EnvironmentConfig `yaml:"environment"`
	// Dataset describes the exercise data to fetch from object storage.
	Dataset DatasetConfig `yaml:"dataset"`
	// ReceiptFile is the path to the JSON file recording provisioning outcomes.
	ReceiptFile string `yaml:"receipt_file"`
	// UpdateFolder is the URL where labsetup release artifacts are hosted.
	UpdateFolder string `yaml:"update_folder"`
	// Timeout is the duration applied to each external operation.
	Timeout time.Duration `yaml:"timeout"`
}

// EnvironmentConfig identifies the conda environment and its dependency set.
type EnvironmentConfig struct {
	// Name is the environment name, also used as the kernel identifier.
	Name string `yaml:"name"`
	// PythonVersion pins the interpreter version at environment creation.
	PythonVersion string `yaml:"python"`
	// Manifest is the path to the dependency manifest file.
	Manifest string `yaml:"manifest"`
	// Channels are the package channels the install is scoped to.
	Channels []string `yaml:"channels"`
	// KernelDisplayName is the notebook kernel display name.
	// Defaults to the environment name.
	KernelDisplayName string `yaml:"kernel_display_name"`
	// Base is the environment restored during teardown.
	Base string `yaml:"base"`
}

// DatasetConfig locates the remote dataset and the local destination.
type DatasetConfig struct {
	// Bucket is the object storage bucket holding the exercise data.
	Bucket string `yaml:"bucket"`
	// Prefix is the key prefix copied recursively.
	Prefix string `yaml:"prefix"`
	// Region is the bucket region.
	Region string `yaml:"region"`
	// Destination is the local directory receiving the objects.
	Destination string `yaml:"destination"`
	// AccessKeyID and SecretAccessKey enable signed requests against a
	// private mirror. When empty, requests are sent unsigned, which is
	// valid only for publicly readable buckets.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

const (
	// DefaultConfigFilename is the default filename for provisioning settings.
	DefaultConfigFilename = "labsetup-settings.yaml"

	// DefaultReceiptFilename is the default filename for the provisioning receipt.
	DefaultReceiptFilename = "labsetup-receipt.json"

	// DefaultTimeout is the default duration for each external operation.
	// Manifest installation downloads large packages, so the bound is generous.
	DefaultTimeout = 30 * time.Minute

	// DefaultEnvironmentName is the course exercise environment name.
	DefaultEnvironmentName = "05-semantic-segmentation"

	// DefaultPythonVersion pins the interpreter the exercise is tested against.
	DefaultPythonVersion = "3.11"

	// DefaultManifestFilename is the dependency manifest shipped with the exercise.
	DefaultManifestFilename = "requirements.txt"

	// DefaultBaseEnvironment is the environment restored during teardown.
	DefaultBaseEnvironment = "base"

	// DefaultBucket is the public bucket holding the exercise data.
	DefaultBucket = "dl-at-mbl-data"

	// DefaultPrefix is the key prefix of the nuclei training samples.
	DefaultPrefix = "nuclei_train_data"

	// DefaultRegion is the bucket region.
	DefaultRegion = "us-east-1"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errEnvironmentNameRequired is returned when the environment name is missing.
	errEnvironmentNameRequired = errors.New("environment name must be provided")
	// errInvalidPythonVersion is returned for malformed interpreter versions.
	errInvalidPythonVersion = errors.New("invalid python version")
	// errNoChannels is returned when the channel list is empty.
	errNoChannels = errors.New("at least one package channel must be provided")
	// errBucketRequired is returned when the dataset bucket is missing.
	errBucketRequired = errors.New("dataset bucket must be provided")
)

// pythonVersionPattern accepts dotted numeric versions such as "3.11" or "3.11.4".
var pythonVersionPattern = regexp.MustCompile(`^\d+(\.\d+){0,2}$`)

// DefaultChannels returns the package channels the exercise manifest is resolved against.
func DefaultChannels() []string {
	return []string{"pytorch", "nvidia", "conda-forge"}
}

// Default returns settings matching a zero-configuration run.
// Every field has a working default so a missing settings file is not an
// error; students run the tool from a fresh checkout with no input at all.
func Default() *Config {
	return &Config{
		Environment: EnvironmentConfig{
			Name:              DefaultEnvironmentName,
			PythonVersion:     DefaultPythonVersion,
			Manifest:          DefaultManifestFilename,
			Channels:          DefaultChannels(),
			KernelDisplayName: DefaultEnvironmentName,
			Base:              DefaultBaseEnvironment,
		},
		Dataset: DatasetConfig{
			Bucket:      DefaultBucket,
			Prefix:      DefaultPrefix,
			Region:      DefaultRegion,
			Destination: ".",
		},
		ReceiptFile: DefaultReceiptFilename,
		Timeout:     DefaultTimeout,
	}
}

// Load reads configuration from the provided path and validates essential fields.
// A missing file at the default path yields the built-in defaults.
func Load(path string) (*Config, error) {
	usingDefaultPath := path == ""
	if usingDefaultPath {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if usingDefaultPath && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting,
// filling defaults for optional fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	env := &cfg.Environment
	if env.Name == "" {
		return errEnvironmentNameRequired
	}

	if env.PythonVersion == "" {
		env.PythonVersion = DefaultPythonVersion
	}

	if !pythonVersionPattern.MatchString(env.PythonVersion) {
		return fmt.Errorf("%w: %q", errInvalidPythonVersion, env.PythonVersion)
	}

	if env.Manifest == "" {
		env.Manifest = DefaultManifestFilename
	}

	if len(env.Channels) == 0 {
		return errNoChannels
	}

	if env.KernelDisplayName == "" {
		env.KernelDisplayName = env.Name
	}

	if env.Base == "" {
		env.Base = DefaultBaseEnvironment
	}

	if cfg.Dataset.Bucket == "" {
		return errBucketRequired
	}

	if cfg.Dataset.Region == "" {
		cfg.Dataset.Region = DefaultRegion
	}

	if cfg.Dataset.Destination == "" {
		cfg.Dataset.Destination = "."
	}

	if cfg.ReceiptFile == "" {
		cfg.ReceiptFile = DefaultReceiptFilename
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.UpdateFolder == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(cfg.UpdateFolder); err != nil {
		return fmt.Errorf("invalid update folder URI: %w", err)
	}

	return nil
}
