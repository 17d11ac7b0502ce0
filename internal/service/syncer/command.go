package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/google/uuid"

	"github.com/oshokin/ceph-keysync/internal/config"
	"github.com/oshokin/ceph-keysync/internal/domain/artifact"
	"github.com/oshokin/ceph-keysync/internal/logger"
	"github.com/oshokin/ceph-keysync/internal/repository/staging"
	"github.com/oshokin/ceph-keysync/internal/service/common"
)

var (
	// ErrSourceMissing is returned when the staging artifact is absent at copy
	// time. The barrier normally prevents this, but the copy re-checks.
	ErrSourceMissing = errors.New("staging artifact missing at copy time")
	// ErrWriteDenied is returned when the destination cannot be written.
	ErrWriteDenied = errors.New("destination cannot be written")
	// ErrOwnershipDenied is returned when destination ownership cannot be set.
	ErrOwnershipDenied = errors.New("destination ownership cannot be set")

	errSyncerAlreadyRunning = errors.New("the syncer is already running")
	errFsidRequired         = errors.New("fsid must be provided")
)

// Options are inputs accepted by the syncer entry point. Non-zero values
// override the corresponding settings from the configuration file.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Fsid identifies the cluster instance.
	Fsid string
	// FetchRoot is the root of the staging tree.
	FetchRoot string
	// Cluster is the cluster name used to template artifact filenames.
	Cluster string
	// CopyAdminKey enables the optional artifacts when set.
	CopyAdminKey bool
	// DestRoot is the destination prefix (chroot/image builds).
	DestRoot string
	// PollInterval is the delay between staging existence checks.
	PollInterval time.Duration
	// StagingTimeout bounds the wait for each staging artifact.
	StagingTimeout time.Duration
}

// Result describes the outcome of syncing one artifact.
type Result struct {
	// Artifact is the synced artifact.
	Artifact artifact.Artifact
	// Status is the terminal pipeline status reached by the artifact.
	Status artifact.Status
	// Changed is what gets reported to the operator. This step always
	// reports "no state change" regardless of bytes written, so Changed
	// stays false; Updated carries the real outcome.
	Changed bool
	// Updated indicates whether bytes were actually written.
	Updated bool
}

// runner holds the state of a single sync execution.
// It is intentionally unexported—call Run(ctx, Options) from callers.
type runner struct {
	cfg     *config.Config     // Effective run configuration.
	repo    staging.Repository // Read-only staging tree access.
	results []Result           // Per-artifact outcomes in processing order.
	uid     int                // Destination owner, root in production.
	gid     int                // Destination group, root in production.
}

// Run executes the sync lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name and run ID for tracking.
	ctx = logger.WithName(ctx, "keysync")
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())

	if IsSyncerRunningNow(ctx) {
		return errSyncerAlreadyRunning
	}

	runMarker, err := os.Create(MarkerFilename)
	if err != nil {
		return fmt.Errorf("create run marker: %w", err)
	}

	if err = runMarker.Close(); err != nil {
		return fmt.Errorf("close run marker: %w", err)
	}

	defer cleanup(ctx)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Starting artifact sync",
		"host", actor.Hostname, "user", actor.Username,
		"fsid", cfg.Fsid, "fetch_root", cfg.FetchRoot)

	r := newRunner(cfg)
	if err = r.SyncAll(ctx); err != nil {
		logger.ErrorKV(ctx, "Artifact sync failed", "error", err)
		return err
	}

	logger.Info(ctx, "Artifact sync completed")

	return nil
}

// loadConfig merges the settings file with explicit option overrides.
// A missing default settings file is fine when the options carry everything;
// an explicitly named file must exist.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg := &config.Config{}

	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	} else if loaded, err := config.Load(config.DefaultConfigFilename); err == nil {
		cfg = loaded
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if opts.Fsid != "" {
		cfg.Fsid = opts.Fsid
	}

	if opts.FetchRoot != "" {
		cfg.FetchRoot = opts.FetchRoot
	}

	if opts.Cluster != "" {
		cfg.Cluster = opts.Cluster
	}

	if opts.CopyAdminKey {
		cfg.CopyAdminKey = true
	}

	if opts.DestRoot != "" {
		cfg.DestRoot = opts.DestRoot
	}

	if opts.PollInterval > 0 {
		cfg.PollInterval = opts.PollInterval
	}

	if opts.StagingTimeout > 0 {
		cfg.StagingTimeout = opts.StagingTimeout
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newRunner prepares a runner over the configured staging tree.
// Destination files belong to root; tests lower uid/gid to the current user.
func newRunner(cfg *config.Config) *runner {
	return &runner{
		cfg:  cfg,
		repo: staging.NewFileRepository(cfg.FetchRoot, cfg.Fsid, cfg.PollInterval, cfg.StagingTimeout),
		uid:  0,
		gid:  0,
	}
}

// Resolve builds the effective artifact set for this run.
func (r *runner) Resolve() ([]artifact.Artifact, error) {
	if strings.TrimSpace(r.cfg.Fsid) == "" {
		return nil, errFsidRequired
	}

	return artifact.Resolve(r.cfg.Cluster, r.cfg.CopyAdminKey), nil
}

// SyncAll processes every artifact of the effective set in order:
// await the staging barrier, probe for diagnostics, then copy. The first
// copy failure aborts the remaining artifacts.
func (r *runner) SyncAll(ctx context.Context) error {
	set, err := r.Resolve()
	if err != nil {
		return fmt.Errorf("resolve artifact set: %w", err)
	}

	for _, a := range set {
		actx := logger.WithKV(ctx, "artifact", a.Name)

		if err = r.awaitAvailability(actx, a); err != nil {
			r.results = append(r.results, Result{
				Artifact: a,
				Status:   artifact.StatusAwaitingStaging,
			})

			return fmt.Errorf("await staging of %s: %w", a.Name, err)
		}

		r.probe(actx, a)

		result, err := r.syncOne(actx, a)

		r.results = append(r.results, result)
		if err != nil {
			return fmt.Errorf("sync %s: %w", a.Name, err)
		}
	}

	logger.InfoKV(ctx, "All artifacts synced", "count", len(set))

	return nil
}

// Results returns per-artifact outcomes in processing order.
func (r *runner) Results() []Result {
	return r.results
}

// awaitAvailability blocks until the staging copy of the artifact exists.
// It performs no destination mutation; this is the synchronization barrier
// against the concurrently bootstrapping producer node.
func (r *runner) awaitAvailability(ctx context.Context, a artifact.Artifact) error {
	logger.DebugKV(ctx, "Awaiting staging artifact",
		"status", artifact.StatusAwaitingStaging.String())

	if err := r.repo.Await(ctx, a); err != nil {
		return err
	}

	logger.DebugKV(ctx, "Staging artifact available",
		"status", artifact.StatusStaged.String())

	return nil
}

// probe records a one-shot existence check after the barrier. The copy step
// re-checks the source itself, so a failed probe is advisory only and never
// aborts the run.
func (r *runner) probe(ctx context.Context, a artifact.Artifact) {
	if err := r.repo.Stat(ctx, a); err != nil {
		logger.WarnKV(ctx, "Staging artifact probe failed", "error", err)
		return
	}

	logger.Debug(ctx, "Staging artifact probe succeeded")
}

// syncOne copies the staged artifact to its destination with mode 0644 and
// the configured ownership. Identical content and metadata make it a no-op.
// Either way the result reports no state change to the operator.
func (r *runner) syncOne(ctx context.Context, a artifact.Artifact) (Result, error) {
	result := Result{
		Artifact: a,
		Status:   artifact.StatusSyncFailed,
	}

	data, err := r.repo.Read(ctx, a)
	if err != nil {
		if errors.Is(err, staging.ErrNotFound) {
			return result, fmt.Errorf("%s: %w", a.Path, ErrSourceMissing)
		}

		return result, err
	}

	sum, err := checksum(data)
	if err != nil {
		return result, err
	}

	destPath := r.destinationPath(a)

	upToDate, err := r.isUpToDate(destPath, sum)
	if err != nil {
		return result, err
	}

	if upToDate {
		result.Status = artifact.StatusSynced

		logger.InfoKV(ctx, "Artifact already in sync",
			"path", destPath, "changed", result.Changed)

		return result, nil
	}

	if err = r.applyArtifact(destPath, data, sum); err != nil {
		return result, err
	}

	result.Status = artifact.StatusSynced
	result.Updated = true

	logger.InfoKV(ctx, "Artifact synced",
		"path", destPath, "changed", result.Changed)

	return result, nil
}

// destinationPath maps an artifact to its runtime location under the
// configured destination root.
func (r *runner) destinationPath(a artifact.Artifact) string {
	if r.cfg.DestRoot == "" || r.cfg.DestRoot == config.DefaultDestRoot {
		return a.Path
	}

	return filepath.Join(r.cfg.DestRoot, a.Path)
}

// isUpToDate reports whether the destination already matches the staged
// contents, the required mode and the required ownership.
func (r *runner) isUpToDate(destPath string, want []byte) (bool, error) {
	info, err := os.Stat(destPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("stat destination: %w", err)
	}

	if info.Mode().Perm() != DestFileMode {
		return false, nil
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok || int(stat.Uid) != r.uid || int(stat.Gid) != r.gid {
		return false, nil
	}

	got, err := fileChecksum(destPath)
	if err != nil {
		return false, fmt.Errorf("checksum destination: %w", err)
	}

	return bytes.Equal(want, got), nil
}

// applyArtifact writes the artifact with checksum verification, fixes the
// permission bits and hands the file to the configured owner.
func (r *runner) applyArtifact(destPath string, data, sum []byte) error {
	if err := os.MkdirAll(filepath.Dir(destPath), destDirMode); err != nil {
		return fmt.Errorf("create destination directory: %s: %w", err, ErrWriteDenied)
	}

	if _, err := os.Stat(destPath); err != nil && errors.Is(err, os.ErrNotExist) {
		var destFile *os.File

		destFile, err = os.Create(destPath)
		if err != nil {
			return fmt.Errorf("create destination: %s: %w", err, ErrWriteDenied)
		}

		_ = destFile.Close()
	}

	options := goupdate.Options{
		TargetPath: destPath,
		TargetMode: DestFileMode,
		Checksum:   sum,
		Hash:       DefaultChecksumFunction,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("apply artifact: %s: %w", err, ErrWriteDenied)
	}

	oldPath := destPath + ".old"
	if _, err := os.Stat(oldPath); err == nil {
		_ = os.Remove(oldPath)
	}

	// Apply creates the file under the process umask; force the exact bits.
	if err := os.Chmod(destPath, DestFileMode); err != nil {
		return fmt.Errorf("chmod destination: %s: %w", err, ErrWriteDenied)
	}

	if err := os.Chown(destPath, r.uid, r.gid); err != nil {
		return fmt.Errorf("chown destination: %s: %w", err, ErrOwnershipDenied)
	}

	return nil
}

// cleanup removes the run marker.
func cleanup(ctx context.Context) {
	if _, err := os.Stat(MarkerFilename); err == nil {
		_ = os.Remove(MarkerFilename)
	}

	logger.Info(ctx, "The syncer has been stopped")
}
