package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/ceph-keysync/internal/domain/artifact"
)

// Repository defines read-only access to the staging tree where the
// cluster-initializing node publishes bootstrap artifacts.
type Repository interface {
	Stat(ctx context.Context, a artifact.Artifact) error
	Await(ctx context.Context, a artifact.Artifact) error
	Read(ctx context.Context, a artifact.Artifact) ([]byte, error)
}

var (
	// ErrNotFound is returned when a staging artifact does not exist yet.
	ErrNotFound = errors.New("staging artifact not found")
	// ErrAwaitTimeout is returned when the wait for a staging artifact
	// exceeds the configured timeout.
	ErrAwaitTimeout = errors.New("timed out waiting for staging artifact")
)

// FileRepository reads artifacts from a filesystem staging tree rooted at
// <fetchRoot>/<fsid>. The tree is owned by the producing node; this side
// never mutates it.
type FileRepository struct {
	// root is the fsid-namespaced staging directory.
	root string
	// pollInterval is the delay between existence checks in Await.
	pollInterval time.Duration
	// timeout bounds Await; zero waits until the context is cancelled.
	timeout time.Duration
}

// NewFileRepository creates a repository over <fetchRoot>/<fsid>.
func NewFileRepository(fetchRoot, fsid string, pollInterval, timeout time.Duration) *FileRepository {
	return &FileRepository{
		root:         filepath.Join(filepath.Clean(fetchRoot), fsid),
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// path maps an artifact to its staging location. Artifact paths are absolute
// runtime paths; the staging tree mirrors them under the fsid directory.
func (r *FileRepository) path(a artifact.Artifact) string {
	return filepath.Join(r.root, a.Path)
}

// Stat checks whether the staging copy of the artifact exists. It never
// blocks and never touches the destination.
func (r *FileRepository) Stat(_ context.Context, a artifact.Artifact) error {
	if _, err := os.Stat(r.path(a)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}

		return fmt.Errorf("stat staging artifact: %w", err)
	}

	return nil
}

// Await blocks until the staging copy of the artifact exists. It polls at the
// configured interval and returns the context error on cancellation or
// ErrAwaitTimeout once the configured timeout elapses. A transient stat
// failure does not end the wait; only the artifact appearing does.
func (r *FileRepository) Await(ctx context.Context, a artifact.Artifact) error {
	if r.exists(a) {
		return nil
	}

	var deadline <-chan time.Time

	if r.timeout > 0 {
		timer := time.NewTimer(r.timeout)
		defer timer.Stop()

		deadline = timer.C
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%s after %s: %w", a.Name, r.timeout, ErrAwaitTimeout)
		case <-ticker.C:
			if r.exists(a) {
				return nil
			}
		}
	}
}

// Read returns the staged artifact contents.
func (r *FileRepository) Read(_ context.Context, a artifact.Artifact) ([]byte, error) {
	contents, err := os.ReadFile(r.path(a))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read staging artifact: %w", err)
	}

	return contents, nil
}

func (r *FileRepository) exists(a artifact.Artifact) bool {
	_, err := os.Stat(r.path(a))

	return err == nil
}
