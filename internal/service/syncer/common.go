package syncer

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/ceph-keysync/internal/logger"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

var errHashUnavailable = errors.New("hash function unavailable")

const (
	// MarkerFilename marks that a sync run is in progress to avoid parallel execution.
	MarkerFilename = "keysync-run-marker.bin"

	// DestFileMode is the permission set on every synced artifact.
	DestFileMode os.FileMode = 0o644

	// destDirMode is used when creating missing destination directories.
	destDirMode os.FileMode = 0o755

	// DefaultChecksumFunction is used to compare staged and destination files.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512

	// syncerExecutable is the process name checked during stale marker recovery.
	syncerExecutable = "keysync"

	// markerLifetime is the period after which a stale run marker is ignored.
	markerLifetime = 30 * time.Second
)

// checksum returns the hash of in-memory artifact contents.
func checksum(data []byte) ([]byte, error) {
	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err := hasher.Write(data); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// fileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func fileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	return checksum(contents)
}

// IsSyncerRunningNow checks presence of a run marker and attempts recovery if it looks stale.
func IsSyncerRunningNow(ctx context.Context) bool {
	logger.Info(ctx, "Checking for the presence of a run marker")

	fileInfo, err := os.Stat(MarkerFilename)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The run marker is too old, attempting cleanup")

		if err = terminateProcessByName(syncerExecutable); err != nil {
			return true
		}

		if err = os.Remove(MarkerFilename); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Run marker not found, continuing")
		return false
	}

	logger.Infof(ctx, "Unable to read run marker: %v", err)

	return false
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
