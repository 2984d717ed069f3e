// Package store implements the on-disk store layout: build and bind
// directories keyed by object hash, the completion marker protocol,
// post-realization immutability, parent-store fallback, and bind state
// persistence.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
	"github.com/syslua/syslua/pkg/fileutil"
)

// Store addresses a primary store root and an optional read-only parent
// store used for layered lookups (§4.B.2).
type Store struct {
	Root   string
	Parent string
}

// New returns a Store rooted at root, with an optional parent for fallback
// lookups. parent may be empty.
func New(root, parent string) *Store {
	return &Store{Root: root, Parent: parent}
}

// EnsureLayout creates the directories the store needs to operate:
// build/, bind/, snapshots/. It does not create the lock file.
func (s *Store) EnsureLayout() error {
	for _, dir := range []string{s.buildRoot(), s.bindRoot(), s.SnapshotsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return engineerr.NewStoreError(dir, err)
		}
	}
	return nil
}

func (s *Store) buildRoot() string { return filepath.Join(s.Root, constants.BuildDirName) }
func (s *Store) bindRoot() string  { return filepath.Join(s.Root, constants.BindDirName) }

// LockPath is the path to the store's advisory lock file.
func (s *Store) LockPath() string { return filepath.Join(s.Root, constants.LockFileName) }

// BuildDir returns the realized output directory for a build hash.
func (s *Store) BuildDir(hash constants.ObjectHash) string {
	return filepath.Join(s.buildRoot(), string(hash))
}

// BindDir returns the state directory for a bind hash.
func (s *Store) BindDir(hash constants.ObjectHash) string {
	return filepath.Join(s.bindRoot(), string(hash))
}

// BindStatePath returns the path to a bind's persisted state.json.
func (s *Store) BindStatePath(hash constants.ObjectHash) string {
	return filepath.Join(s.BindDir(hash), constants.BindStateFileName)
}

func (s *Store) completionMarker(hash constants.ObjectHash) string {
	return filepath.Join(s.BuildDir(hash), constants.CompletionMarkerName)
}

// SnapshotsDir returns the snapshots directory.
func (s *Store) SnapshotsDir() string { return filepath.Join(s.Root, constants.SnapshotsDirName) }

// SnapshotPath returns the path to a single snapshot file.
func (s *Store) SnapshotPath(id constants.SnapshotID) string {
	return filepath.Join(s.SnapshotsDir(), string(id)+".json")
}

// SnapshotIndexPath returns the path to the snapshot index.
func (s *Store) SnapshotIndexPath() string {
	return filepath.Join(s.SnapshotsDir(), constants.SnapshotIndexFileName)
}

// IsBuildComplete reports whether hash is realized and trustworthy: the
// directory exists and carries the completion marker. If the primary store
// lacks it but a parent store has a complete build, a cross-store symlink is
// created and true is returned (§4.B.2).
func (s *Store) IsBuildComplete(hash constants.ObjectHash) (bool, error) {
	if s.hasMarker(s.Root, hash) {
		return true, nil
	}
	if s.Parent == "" {
		return false, nil
	}
	if !s.hasMarker(s.Parent, hash) {
		return false, nil
	}
	if err := s.linkFromParent(hash); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) hasMarker(root string, hash constants.ObjectHash) bool {
	marker := filepath.Join(root, constants.BuildDirName, string(hash), constants.CompletionMarkerName)
	_, err := os.Lstat(marker)
	return err == nil
}

func (s *Store) linkFromParent(hash constants.ObjectHash) error {
	target := filepath.Join(s.Parent, constants.BuildDirName, string(hash))
	link := s.BuildDir(hash)
	if err := os.MkdirAll(s.buildRoot(), 0o755); err != nil {
		return engineerr.NewStoreError(s.buildRoot(), err)
	}
	if _, err := os.Lstat(link); err == nil {
		return nil
	}
	if err := os.Symlink(target, link); err != nil {
		return engineerr.NewStoreError(link, err)
	}
	return nil
}

// PrepareBuildDir creates a fresh, writable output directory for a build
// realization, clearing immutability and removing any partial contents left
// by a previous failed attempt.
func (s *Store) PrepareBuildDir(hash constants.ObjectHash) (string, error) {
	dir := s.BuildDir(hash)
	_ = s.ClearImmutability(hash)
	if err := os.RemoveAll(dir); err != nil {
		return "", engineerr.NewStoreError(dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", engineerr.NewStoreError(dir, err)
	}
	return dir, nil
}

// FinalizeBuild writes the completion marker and imposes OS-level
// immutability. The marker is written last, per the completion protocol.
func (s *Store) FinalizeBuild(hash constants.ObjectHash) error {
	dir := s.BuildDir(hash)
	if err := imposeImmutability(dir); err != nil {
		return engineerr.NewStoreError(dir, err)
	}
	marker := s.completionMarker(hash)
	if err := fileutil.WriteFileAtomic(marker, []byte{}, 0o644); err != nil {
		return engineerr.NewStoreError(marker, err)
	}
	// The marker write above lands inside an otherwise-immutable directory on
	// platforms (e.g. Linux FS_IMMUTABLE_FL) where immutability forbids new
	// directory entries too. Re-impose after the marker exists, so the final
	// state is fully locked down.
	if err := imposeImmutability(dir); err != nil {
		return engineerr.NewStoreError(dir, err)
	}
	return nil
}

// ClearImmutability removes OS-level write protection from a build
// directory so it can be rebuilt or reclaimed by GC.
func (s *Store) ClearImmutability(hash constants.ObjectHash) error {
	dir := s.BuildDir(hash)
	if _, err := os.Lstat(dir); err != nil {
		return nil
	}
	return clearImmutability(dir)
}

// BindState is the persisted shape of bind/<hash>/state.json.
type BindState struct {
	Version int            `json:"version"`
	Outputs map[string]any `json:"outputs"`
}

// ReadBindState loads a bind's persisted state, if present.
func (s *Store) ReadBindState(hash constants.ObjectHash) (BindState, bool, error) {
	path := s.BindStatePath(hash)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return BindState{}, false, nil
	}
	if err != nil {
		return BindState{}, false, engineerr.NewStoreError(path, err)
	}
	var st BindState
	if err := json.Unmarshal(data, &st); err != nil {
		return BindState{}, false, engineerr.NewStoreError(path, fmt.Errorf("corrupt bind state: %w", err))
	}
	return st, true, nil
}

// WriteBindState persists a bind's outputs, creating its directory if
// necessary.
func (s *Store) WriteBindState(hash constants.ObjectHash, outputs map[string]any) error {
	dir := s.BindDir(hash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return engineerr.NewStoreError(dir, err)
	}
	st := BindState{Version: constants.BindStateVersion, Outputs: outputs}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	path := s.BindStatePath(hash)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return engineerr.NewStoreError(path, err)
	}
	return nil
}

// DeleteBindState removes a bind's state.json, marking it as no longer
// applied.
func (s *Store) DeleteBindState(hash constants.ObjectHash) error {
	path := s.BindStatePath(hash)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return engineerr.NewStoreError(path, err)
	}
	return nil
}

// ListBuildHashes enumerates every build directory present in the primary
// store, regardless of completion, for GC's sweep phase.
func (s *Store) ListBuildHashes() ([]constants.ObjectHash, error) {
	return s.listHashes(s.buildRoot())
}

// ListBindHashes enumerates every bind directory present in the primary
// store.
func (s *Store) ListBindHashes() ([]constants.ObjectHash, error) {
	return s.listHashes(s.bindRoot())
}

func (s *Store) listHashes(root string) ([]constants.ObjectHash, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, engineerr.NewStoreError(root, err)
	}
	hashes := make([]constants.ObjectHash, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			hashes = append(hashes, constants.ObjectHash(e.Name()))
		}
	}
	return hashes, nil
}

// RemoveBuild deletes a build directory entirely, clearing immutability
// first. Used by GC and forced rebuilds.
func (s *Store) RemoveBuild(hash constants.ObjectHash) error {
	_ = s.ClearImmutability(hash)
	dir := s.BuildDir(hash)
	if err := os.RemoveAll(dir); err != nil {
		return engineerr.NewStoreError(dir, err)
	}
	return nil
}

// RemoveBind deletes a bind's entire state directory.
func (s *Store) RemoveBind(hash constants.ObjectHash) error {
	dir := s.BindDir(hash)
	if err := os.RemoveAll(dir); err != nil {
		return engineerr.NewStoreError(dir, err)
	}
	return nil
}

// DirSize computes the recursive byte size of a directory, used for GC
// reporting of reclaimed bytes.
func DirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	return total, err
}
