package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/kamusis/skillbase/internal/corpus"
	"github.com/kamusis/skillbase/internal/logger"
)

const defaultLockTimeout = 30 * time.Second

// BuildOptions controls snapshot building.
type BuildOptions struct {
	OutDir      string
	Roots       []string
	LockTimeout time.Duration
}

// Build writes store to a temporary directory next to opts.OutDir and then
// swaps it into place. Concurrent builds of the same OutDir are serialized by
// a file lock.
func Build(ctx context.Context, store *corpus.Store, opts BuildOptions) (Manifest, error) {
	if opts.OutDir == "" {
		return Manifest{}, fmt.Errorf("snapshot dir is required")
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}

	parent := filepath.Dir(opts.OutDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("cannot create %s: %w", parent, err)
	}
	release, err := acquireLock(ctx, opts.OutDir+".lock", timeout)
	if err != nil {
		return Manifest{}, err
	}
	defer release()

	tmp, err := os.MkdirTemp(parent, ".snapshot-tmp-*")
	if err != nil {
		return Manifest{}, fmt.Errorf("cannot create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	docs := store.List()
	m := Manifest{
		Version:       FormatVersion,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Roots:         append([]string(nil), opts.Roots...),
		DocumentsFile: DefaultDocumentsFile,
	}
	if err := Write(tmp, m, docs); err != nil {
		return Manifest{}, err
	}
	if err := AtomicSwap(tmp, opts.OutDir); err != nil {
		return Manifest{}, fmt.Errorf("cannot install snapshot %s: %w", opts.OutDir, err)
	}

	m, err = LoadManifest(opts.OutDir)
	if err != nil {
		return Manifest{}, err
	}
	logger.G(ctx).WithField("dir", opts.OutDir).WithField("documents", m.DocumentCount).Info("snapshot written")
	return m, nil
}

// AtomicSwap replaces destDir with srcDir by renaming.
func AtomicSwap(srcDir, destDir string) error {
	parent := filepath.Dir(destDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	backup := destDir + ".bak"
	_ = os.RemoveAll(backup)
	if _, err := os.Stat(destDir); err == nil {
		if err := os.Rename(destDir, backup); err != nil {
			return err
		}
	}
	if err := os.Rename(srcDir, destDir); err != nil {
		// rollback best-effort
		if _, stErr := os.Stat(backup); stErr == nil {
			_ = os.Rename(backup, destDir)
		}
		return err
	}
	_ = os.RemoveAll(backup)
	return nil
}

// acquireLock polls for the lock at lockPath until timeout or ctx is done.
func acquireLock(ctx context.Context, lockPath string, timeout time.Duration) (func(), error) {
	l := flock.New(lockPath)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return nil, fmt.Errorf("cannot acquire snapshot lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("another snapshot build is in progress (lock: %s)", lockPath)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
