package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/ceph-keysync/internal/domain/artifact"
)

const testFsid = "abc123"

// stage writes artifact contents into the mirrored staging tree.
func stage(t *testing.T, fetchRoot string, a artifact.Artifact, contents []byte) {
	t.Helper()

	path := filepath.Join(fetchRoot, testFsid, a.Path)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, contents, 0o600))
}

// TestFileRepository_StatNotFound verifies Stat returns ErrNotFound for a missing artifact.
func TestFileRepository_StatNotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir(), testFsid, 10*time.Millisecond, 0)

	err := repo.Stat(context.Background(), artifact.BootstrapOSDKeyring("ceph"))
	require.ErrorIs(t, err, ErrNotFound)
}

// TestFileRepository_AwaitExisting ensures Await returns immediately for a staged artifact.
func TestFileRepository_AwaitExisting(t *testing.T) {
	t.Parallel()

	fetchRoot := t.TempDir()
	a := artifact.BootstrapOSDKeyring("ceph")
	stage(t, fetchRoot, a, []byte("keyring"))

	repo := NewFileRepository(fetchRoot, testFsid, time.Hour, 0)

	start := time.Now()
	require.NoError(t, repo.Await(context.Background(), a))
	require.Less(t, time.Since(start), time.Second)
}

// TestFileRepository_AwaitDelayedCreation ensures Await does not return before
// the artifact appears in the staging tree.
func TestFileRepository_AwaitDelayedCreation(t *testing.T) {
	t.Parallel()

	fetchRoot := t.TempDir()
	a := artifact.AdminKeyring("ceph")
	delay := 100 * time.Millisecond

	go func() {
		time.Sleep(delay)
		path := filepath.Join(fetchRoot, testFsid, a.Path)

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return
		}

		_ = os.WriteFile(path, []byte("keyring"), 0o600)
	}()

	repo := NewFileRepository(fetchRoot, testFsid, 10*time.Millisecond, 5*time.Second)

	start := time.Now()
	require.NoError(t, repo.Await(context.Background(), a))
	require.GreaterOrEqual(t, time.Since(start), delay)
}

// TestFileRepository_AwaitContextCanceled ensures Await stops on context cancellation.
func TestFileRepository_AwaitContextCanceled(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir(), testFsid, 10*time.Millisecond, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := repo.Await(ctx, artifact.BootstrapOSDKeyring("ceph"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestFileRepository_AwaitTimeout ensures the configured timeout surfaces as ErrAwaitTimeout.
func TestFileRepository_AwaitTimeout(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir(), testFsid, 10*time.Millisecond, 100*time.Millisecond)

	err := repo.Await(context.Background(), artifact.BootstrapOSDKeyring("ceph"))
	require.ErrorIs(t, err, ErrAwaitTimeout)
}

// TestFileRepository_Read verifies contents roundtrip and the missing-artifact error.
func TestFileRepository_Read(t *testing.T) {
	t.Parallel()

	fetchRoot := t.TempDir()
	a := artifact.ClusterConf("ceph")
	want := []byte("[global]\nfsid = abc123\n")
	stage(t, fetchRoot, a, want)

	repo := NewFileRepository(fetchRoot, testFsid, 10*time.Millisecond, 0)

	got, err := repo.Read(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = repo.Read(context.Background(), artifact.AdminKeyring("ceph"))
	require.ErrorIs(t, err, ErrNotFound)
}
