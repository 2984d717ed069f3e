// Package snapshot persists applied manifests: one file per snapshot plus an
// index tracking creation order and the current pointer. Writes are
// crash-safe (write-temp, rename) via pkg/fileutil.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
	"github.com/syslua/syslua/pkg/fileutil"
	"github.com/syslua/syslua/pkg/manifest"
	"github.com/syslua/syslua/pkg/store"
)

// Snapshot freezes a manifest once it has been successfully applied.
type Snapshot struct {
	ID         constants.SnapshotID `json:"id"`
	CreatedAt  time.Time            `json:"created_at"`
	ConfigPath string               `json:"config_path,omitempty"`
	Manifest   ManifestView         `json:"manifest"`
	Metadata   manifest.Metadata    `json:"metadata"`
}

// ManifestView is the serialized shape of a manifest within a snapshot file.
type ManifestView struct {
	Builds   map[constants.ObjectHash]manifest.Build `json:"builds"`
	Bindings map[constants.ObjectHash]manifest.Bind  `json:"bindings"`
}

func toView(m *manifest.Manifest) ManifestView {
	return ManifestView{Builds: m.Builds, Bindings: m.Bindings}
}

func (v ManifestView) toManifest() *manifest.Manifest {
	m := manifest.New()
	m.Builds = v.Builds
	m.Bindings = v.Bindings
	return m
}

// indexEntry is the summary recorded per snapshot in index.json.
type indexEntry struct {
	ID        constants.SnapshotID `json:"id"`
	CreatedAt time.Time            `json:"created_at"`
}

// Index is the persisted snapshots/index.json.
type Index struct {
	Version   int                   `json:"version"`
	Current   constants.SnapshotID  `json:"current,omitempty"`
	Snapshots []indexEntry          `json:"snapshots"`
}

// Store provides snapshot persistence over a content-addressed store.
type Store struct {
	s *store.Store
}

// New returns a snapshot Store backed by s.
func New(s *store.Store) *Store {
	return &Store{s: s}
}

// NewID mints a time-ordered, collision-resistant snapshot id.
func NewID() constants.SnapshotID {
	return constants.SnapshotID(fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405"), uuid.New().String()[:8]))
}

// Save writes a snapshot file, appends it to the index, and optionally
// advances the current pointer.
func (st *Store) Save(snap Snapshot, advanceCurrent bool) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	path := st.s.SnapshotPath(snap.ID)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return engineerr.NewStoreError(path, err)
	}

	idx, err := st.loadIndex()
	if err != nil {
		return err
	}
	idx.Snapshots = append(idx.Snapshots, indexEntry{ID: snap.ID, CreatedAt: snap.CreatedAt})
	if advanceCurrent {
		idx.Current = snap.ID
	}
	return st.saveIndex(idx)
}

// LoadCurrent returns the manifest pointed at by the current pointer, or
// ok=false if unset (the engine is in a self-healing state).
func (st *Store) LoadCurrent() (*manifest.Manifest, constants.SnapshotID, bool, error) {
	idx, err := st.loadIndex()
	if err != nil {
		return nil, "", false, err
	}
	if idx.Current == "" {
		return nil, "", false, nil
	}
	snap, err := st.Load(idx.Current)
	if err != nil {
		return nil, "", false, err
	}
	return snap.Manifest.toManifest(), idx.Current, true, nil
}

// Load reads a single snapshot by id.
func (st *Store) Load(id constants.SnapshotID) (Snapshot, error) {
	path := st.s.SnapshotPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, engineerr.NewStoreError(path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, engineerr.NewStoreError(path, fmt.Errorf("corrupt snapshot: %w", err))
	}
	return snap, nil
}

// List enumerates snapshot ids in chronological order.
func (st *Store) List() ([]constants.SnapshotID, error) {
	idx, err := st.loadIndex()
	if err != nil {
		return nil, err
	}
	ids := make([]constants.SnapshotID, len(idx.Snapshots))
	for i, e := range idx.Snapshots {
		ids[i] = e.ID
	}
	return ids, nil
}

// SetCurrent swings the current pointer to id, used by rollback.
func (st *Store) SetCurrent(id constants.SnapshotID) error {
	idx, err := st.loadIndex()
	if err != nil {
		return err
	}
	idx.Current = id
	return st.saveIndex(idx)
}

// ClearCurrent unsets the current pointer, entering the self-healing state.
func (st *Store) ClearCurrent() error {
	idx, err := st.loadIndex()
	if err != nil {
		return err
	}
	idx.Current = ""
	return st.saveIndex(idx)
}

// Current returns the id the index currently points at, if any.
func (st *Store) Current() (constants.SnapshotID, bool, error) {
	idx, err := st.loadIndex()
	if err != nil {
		return "", false, err
	}
	return idx.Current, idx.Current != "", nil
}

func (st *Store) loadIndex() (Index, error) {
	path := st.s.SnapshotIndexPath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Index{Version: constants.SnapshotIndexVersion}, nil
	}
	if err != nil {
		return Index{}, engineerr.NewStoreError(path, err)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return Index{}, engineerr.NewStoreError(path, fmt.Errorf("corrupt snapshot index: %w", err))
	}
	return idx, nil
}

func (st *Store) saveIndex(idx Index) error {
	idx.Version = constants.SnapshotIndexVersion
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	path := st.s.SnapshotIndexPath()
	if err := os.MkdirAll(st.s.SnapshotsDir(), 0o755); err != nil {
		return engineerr.NewStoreError(st.s.SnapshotsDir(), err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return engineerr.NewStoreError(path, err)
	}
	return nil
}

// NewSnapshot builds a Snapshot value ready to be Saved from a fully
// constructed manifest.
func NewSnapshot(id constants.SnapshotID, configPath string, m *manifest.Manifest) Snapshot {
	return Snapshot{
		ID:         id,
		CreatedAt:  time.Now().UTC(),
		ConfigPath: configPath,
		Manifest:   toView(m),
		Metadata:   m.Summary(),
	}
}
