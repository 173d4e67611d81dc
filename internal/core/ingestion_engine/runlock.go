package ingestion_engine

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

var ErrRunInProgress = errors.New("another ingestion run holds the lock")

// AcquireRunLock takes the host-wide run lock without waiting. Release it
// with Unlock.
func AcquireRunLock(path string) (*flock.Flock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("run lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrRunInProgress)
	}
	return fl, nil
}
