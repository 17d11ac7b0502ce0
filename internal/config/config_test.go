package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and defaulting for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing fsid.
	cfg := new(Config)

	err := Validate(cfg)
	require.Error(t, err)

	// Missing fetch root.
	cfg = &Config{
		Fsid: "abc123",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Negative staging timeout.
	cfg = &Config{
		Fsid:           "abc123",
		FetchRoot:      "/fetch",
		StagingTimeout: -time.Second,
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Okay, defaults filled in.
	cfg = &Config{
		Fsid:      "abc123",
		FetchRoot: "/fetch",
	}

	err = Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultPollInterval, cfg.PollInterval)
	require.Equal(t, DefaultDestRoot, cfg.DestRoot)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		Fsid:           "abc123",
		FetchRoot:      "/fetch",
		Cluster:        "ceph",
		CopyAdminKey:   true,
		PollInterval:   time.Second,
		StagingTimeout: time.Minute,
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Fsid, loaded.Fsid)
	require.Equal(t, cfg.FetchRoot, loaded.FetchRoot)
	require.Equal(t, cfg.Cluster, loaded.Cluster)
	require.True(t, loaded.CopyAdminKey)
	require.Equal(t, cfg.PollInterval, loaded.PollInterval)
	require.Equal(t, cfg.StagingTimeout, loaded.StagingTimeout)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoad_MissingFile ensures a missing settings file surfaces os.ErrNotExist.
func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
