package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the advisory lock held in the output directory while a
// batch runs.
const LockFileName = ".vidoptimizer.lock"

// ErrOutputLocked is returned by Start when another batch holds the output
// directory lock.
var ErrOutputLocked = errors.New("output directory is in use by another batch")

func lockOutputDir(dir string) (*flock.Flock, error) {
	fl := flock.New(filepath.Join(dir, LockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output directory: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, dir)
	}
	return fl, nil
}
