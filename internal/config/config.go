package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the parameters of one artifact sync run.
type Config struct {
	// Fsid is the unique identifier of the cluster instance; it namespaces
	// the staging directory.
	Fsid string `yaml:"fsid"`
	// FetchRoot is the root of the staging tree produced by the
	// cluster-initializing node.
	FetchRoot string `yaml:"fetch_root"`
	// Cluster is the cluster name used to template artifact filenames.
	Cluster string `yaml:"cluster"`
	// CopyAdminKey enables syncing the admin keyring and cluster conf in
	// addition to the bootstrap keyring.
	CopyAdminKey bool `yaml:"copy_admin_key"`
	// DestRoot is prepended to every destination path. It stays "/" in
	// production and points at a build root in chroot/image scenarios.
	DestRoot string `yaml:"dest_root"`
	// PollInterval is the delay between staging existence checks while
	// waiting for an artifact to appear.
	PollInterval time.Duration `yaml:"poll_interval"`
	// StagingTimeout bounds the wait for a staging artifact.
	// Zero means wait until cancelled.
	StagingTimeout time.Duration `yaml:"staging_timeout"`
}

const (
	// DefaultConfigFilename is the default filename for sync settings.
	DefaultConfigFilename = "keysync-settings.yaml"

	// DefaultPollInterval is the default delay between staging checks.
	DefaultPollInterval = 2 * time.Second

	// DefaultDestRoot is the destination prefix used when none is configured.
	DefaultDestRoot = "/"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errFsidRequired is returned when the cluster fsid is missing.
	errFsidRequired = errors.New("cluster fsid must be provided")
	// errFetchRootRequired is returned when the staging root is missing.
	errFetchRootRequired = errors.New("fetch root must be provided")
	// errNegativeTimeout is returned for a negative staging timeout.
	errNegativeTimeout = errors.New("staging timeout must not be negative")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
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

// Validate checks required fields and fills in defaults.
func Validate(cfg *Config) error {
	if cfg.Fsid == "" {
		return errFsidRequired
	}

	if cfg.FetchRoot == "" {
		return errFetchRootRequired
	}

	if cfg.StagingTimeout < 0 {
		return errNegativeTimeout
	}

	// Set default poll interval if not specified.
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	// Set default destination root if not specified.
	if cfg.DestRoot == "" {
		cfg.DestRoot = DefaultDestRoot
	}

	return nil
}
