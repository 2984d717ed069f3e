// Package storelock implements the store-root advisory lock: a single
// process may hold the store exclusively (mutating operations) or share it
// with other readers (plan/status), but never both at once. The lock is
// strictly non-blocking — contention is reported immediately as an error
// rather than waited out, so callers can decide whether to retry.
package storelock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
)

// Metadata is written into the lock file while it is held, so a contending
// process can report who holds it.
type Metadata struct {
	Version       int    `json:"version"`
	PID           int    `json:"pid"`
	StartedAtUnix int64  `json:"started_at_unix"`
	Command       string `json:"command"`
	Store         string `json:"store"`
}

// Lock is an acquired store lock. Callers must call Unlock when done.
type Lock struct {
	mode constants.LockMode
	fl   *flock.Flock
	path string
}

// Acquire attempts to take the store lock at storeRoot in the given mode.
// It never blocks: on contention it returns an *engineerr.LockError
// populated with the current holder's metadata, read on a best-effort basis.
func Acquire(storeRoot string, mode constants.LockMode, command string) (*Lock, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("storelock: invalid lock mode %q", mode)
	}
	path := filepath.Join(storeRoot, constants.LockFileName)
	fl := flock.New(path)

	var locked bool
	var err error
	if mode == constants.LockModeExclusive {
		locked, err = fl.TryLock()
	} else {
		locked, err = fl.TryRLock()
	}
	if err != nil {
		return nil, &engineerr.LockError{Mode: mode, IOErr: err, StorePath: storeRoot}
	}
	if !locked {
		holder := readMetadata(path)
		return nil, &engineerr.LockError{
			Mode:        mode,
			HolderPID:   holder.PID,
			HolderCmd:   holder.Command,
			HolderStart: time.Unix(holder.StartedAtUnix, 0).Format(time.RFC3339),
			StorePath:   storeRoot,
		}
	}

	if mode == constants.LockModeExclusive {
		meta := Metadata{
			Version:       constants.LockFileVersion,
			PID:           os.Getpid(),
			Command:       command,
			StartedAtUnix: nowFunc().Unix(),
			Store:         storeRoot,
		}
		data, err := json.Marshal(meta)
		if err != nil {
			_ = fl.Unlock()
			return nil, err
		}
		if err := writeMetadataInPlace(path, data); err != nil {
			_ = fl.Unlock()
			return nil, &engineerr.LockError{Mode: mode, IOErr: err, StorePath: storeRoot}
		}
	}

	return &Lock{mode: mode, fl: fl, path: path}, nil
}

// Unlock releases the lock. Exclusive locks truncate the metadata so a
// future reader does not mistake the stale content for a live holder.
func (l *Lock) Unlock() error {
	if l.mode == constants.LockModeExclusive {
		_ = os.Truncate(l.path, 0)
	}
	return l.fl.Unlock()
}

// Mode reports whether the lock is held shared or exclusive.
func (l *Lock) Mode() constants.LockMode {
	return l.mode
}

// Inspect reads the lock file's metadata without acquiring the lock itself,
// for a side-effect-free "who holds this store" query (the `lock-status`
// operation). ok is false if the store is not currently held exclusively
// (file absent or empty).
func Inspect(storeRoot string) (Metadata, bool, error) {
	path := filepath.Join(storeRoot, constants.LockFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, err
	}
	if len(data) == 0 {
		return Metadata{}, false, nil
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, false, fmt.Errorf("storelock: corrupt lock metadata: %w", err)
	}
	return m, true, nil
}

// writeMetadataInPlace overwrites the lock file's content without replacing
// its inode. fileutil.WriteFileAtomic's create-temp-then-rename swaps in a
// brand-new, never-flock'd inode at path: the very next Acquire would open
// and lock that fresh inode instead of contending with the one this
// process's flock.Flock actually holds, defeating mutual exclusion entirely.
// Truncating the already-locked inode in place keeps the lock meaningful.
func writeMetadataInPlace(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func readMetadata(path string) Metadata {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}
	}
	return m
}

// nowFunc is indirected so tests can pin a deterministic start time.
var nowFunc = time.Now
