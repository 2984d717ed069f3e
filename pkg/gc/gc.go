// Package gc implements the store's mark-and-sweep garbage collector: the
// live set is the union of every snapshot's build and bind hashes (not just
// current), swept against build/, bind/, and the external inputs cache. The
// caller is responsible for holding the store's exclusive lock for the
// duration of a non-dry-run collection.
package gc

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/logger"
	"github.com/syslua/syslua/pkg/snapshot"
	"github.com/syslua/syslua/pkg/store"
)

var gcLog = logger.New("gc")

// Reason categorizes why a sweep candidate was selected for deletion.
type Reason string

const (
	ReasonOrphaned   Reason = "orphaned"   // not reachable from any snapshot
	ReasonIncomplete Reason = "incomplete" // build directory missing its completion marker
)

// Candidate is one directory or cache entry selected (or, in dry-run, would
// be selected) for removal.
type Candidate struct {
	Kind   string // "build", "bind", or "inputs-cache"
	Hash   constants.ObjectHash
	Path   string
	Bytes  int64
	Reason Reason
}

// Warning reports an entry GC could not evaluate safely: corrupted state is
// reported, never deleted, and left for the operator to resolve.
type Warning struct {
	Path string
	Err  error
}

// Report summarizes a completed (or dry-run) collection.
type Report struct {
	DryRun         bool
	Removed        []Candidate
	Warnings       []Warning
	ReclaimedBytes int64
}

// LiveSet is the mark phase's result: every build/bind hash reachable from
// any persisted snapshot.
type LiveSet struct {
	Builds map[constants.ObjectHash]bool
	Binds  map[constants.ObjectHash]bool
}

// Mark computes the live set as the union over every snapshot (not just
// current) of its builds and bindings. A snapshot whose file is corrupt is
// logged as a warning and skipped rather than aborting the whole collection.
func Mark(snaps *snapshot.Store) (LiveSet, []Warning, error) {
	live := LiveSet{Builds: map[constants.ObjectHash]bool{}, Binds: map[constants.ObjectHash]bool{}}

	ids, err := snaps.List()
	if err != nil {
		return LiveSet{}, nil, err
	}

	var warnings []Warning
	for _, id := range ids {
		snap, err := snaps.Load(id)
		if err != nil {
			gcLog.Printf("mark: skipping unreadable snapshot %s: %v", id, err)
			warnings = append(warnings, Warning{Path: string(id), Err: err})
			continue
		}
		for hash := range snap.Manifest.Builds {
			live.Builds[hash] = true
		}
		for hash := range snap.Manifest.Bindings {
			live.Binds[hash] = true
		}
	}
	return live, warnings, nil
}

// Sweep runs the mark-and-sweep collection against s using the previously
// computed live set. When dryRun is true, candidates are identified and
// sized but nothing is deleted. The build/ and bind/ sweeps touch disjoint
// store namespaces, so they run concurrently via errgroup, joined before the
// report is assembled.
func Sweep(s *store.Store, live LiveSet, dryRun bool) (Report, error) {
	var (
		buildCandidates, bindCandidates []Candidate
		buildWarnings, bindWarnings     []Warning
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		buildCandidates, buildWarnings, err = sweepBuilds(s, live, dryRun)
		return err
	})
	g.Go(func() error {
		var err error
		bindCandidates, bindWarnings, err = sweepBinds(s, live, dryRun)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{DryRun: dryRun}
	report.Removed = append(report.Removed, buildCandidates...)
	report.Removed = append(report.Removed, bindCandidates...)
	report.Warnings = append(report.Warnings, buildWarnings...)
	report.Warnings = append(report.Warnings, bindWarnings...)
	for _, c := range report.Removed {
		report.ReclaimedBytes += c.Bytes
	}
	return report, nil
}

func sweepBuilds(s *store.Store, live LiveSet, dryRun bool) ([]Candidate, []Warning, error) {
	hashes, err := s.ListBuildHashes()
	if err != nil {
		return nil, nil, err
	}

	var candidates []Candidate
	var warnings []Warning
	for _, hash := range hashes {
		dir := s.BuildDir(hash)
		reason, ok := buildSweepReason(s, hash, live)
		if !ok {
			continue
		}
		size, err := store.DirSize(dir)
		if err != nil {
			warnings = append(warnings, Warning{Path: dir, Err: err})
			continue
		}
		candidates = append(candidates, Candidate{Kind: "build", Hash: hash, Path: dir, Bytes: size, Reason: reason})
		if !dryRun {
			if err := s.RemoveBuild(hash); err != nil {
				return candidates, warnings, err
			}
			gcLog.Printf("removed build %s (%s, %d bytes)", hash, reason, size)
		}
	}
	return candidates, warnings, nil
}

// buildSweepReason reports whether a build directory should be swept, and
// why: not live at all, or live but missing its completion marker (a
// realization that never finished and is never trusted).
func buildSweepReason(s *store.Store, hash constants.ObjectHash, live LiveSet) (Reason, bool) {
	if !live.Builds[hash] {
		return ReasonOrphaned, true
	}
	marker := filepath.Join(s.BuildDir(hash), constants.CompletionMarkerName)
	if _, err := os.Lstat(marker); err != nil {
		return ReasonIncomplete, true
	}
	return "", false
}

func sweepBinds(s *store.Store, live LiveSet, dryRun bool) ([]Candidate, []Warning, error) {
	hashes, err := s.ListBindHashes()
	if err != nil {
		return nil, nil, err
	}

	var candidates []Candidate
	var warnings []Warning
	for _, hash := range hashes {
		if live.Binds[hash] {
			// Still reachable; a corrupt state.json here is reported, not
			// removed, since the bind itself is not an orphan.
			if _, _, err := s.ReadBindState(hash); err != nil {
				warnings = append(warnings, Warning{Path: s.BindStatePath(hash), Err: err})
			}
			continue
		}
		dir := s.BindDir(hash)
		size, err := store.DirSize(dir)
		if err != nil {
			warnings = append(warnings, Warning{Path: dir, Err: err})
			continue
		}
		candidates = append(candidates, Candidate{Kind: "bind", Hash: hash, Path: dir, Bytes: size, Reason: ReasonOrphaned})
		if !dryRun {
			if err := s.RemoveBind(hash); err != nil {
				return candidates, warnings, err
			}
			gcLog.Printf("removed bind %s (orphaned, %d bytes)", hash, size)
		}
	}
	return candidates, warnings, nil
}

// InputsLock is the external fragment-resolver's reachability graph: a set
// of root labels plus a node-to-node dependency graph, each node naming the
// inputs-cache entry (keyed by its fetch_url sha256) it corresponds to. The
// core never writes this file; it only reads it during GC.
type InputsLock struct {
	Roots []string                  `json:"roots"`
	Nodes map[string]InputsLockNode `json:"nodes"`
}

// InputsLockNode is a single resolved fragment within the lock file's graph.
type InputsLockNode struct {
	CacheKey string   `json:"cache_key"`
	Deps     []string `json:"deps"`
}

// LoadInputsLock parses the lock file at path. A missing file is not an
// error: it means no fragments have been resolved yet, so every cache entry
// is unreachable.
func LoadInputsLock(path string) (InputsLock, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return InputsLock{}, nil
	}
	if err != nil {
		return InputsLock{}, err
	}
	var lock InputsLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return InputsLock{}, err
	}
	return lock, nil
}

// reachableCacheKeys performs a DFS over lock's node graph from its roots,
// collecting every cache_key reachable. Cycles are tolerated (a visited set
// guards against infinite recursion); the lock file's schema is owned by the
// external fragment resolver, not the core.
func reachableCacheKeys(lock InputsLock) map[string]bool {
	live := map[string]bool{}
	visited := map[string]bool{}

	var visit func(label string)
	visit = func(label string) {
		if visited[label] {
			return
		}
		visited[label] = true
		node, ok := lock.Nodes[label]
		if !ok {
			return
		}
		if node.CacheKey != "" {
			live[node.CacheKey] = true
		}
		for _, dep := range node.Deps {
			visit(dep)
		}
	}
	for _, root := range lock.Roots {
		visit(root)
	}
	return live
}

// SweepInputsCache removes cache entries in cacheDir unreachable from the
// inputs lock file at lockPath. An empty lockPath disables the sweep
// entirely (returns an empty report) since no fragments have ever been
// resolved and the collaborator that owns this cache may not be in use.
func SweepInputsCache(cacheDir, lockPath string, dryRun bool) ([]Candidate, error) {
	if lockPath == "" || cacheDir == "" {
		return nil, nil
	}

	lock, err := LoadInputsLock(lockPath)
	if err != nil {
		gcLog.Printf("inputs cache sweep: skipping, lock file unreadable: %v", err)
		return nil, nil
	}
	live := reachableCacheKeys(lock)

	entries, err := os.ReadDir(cacheDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, e := range entries {
		if e.IsDir() || live[e.Name()] {
			continue
		}
		path := filepath.Join(cacheDir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, Candidate{Kind: "inputs-cache", Path: path, Bytes: info.Size(), Reason: ReasonOrphaned})
		if !dryRun {
			if err := os.Remove(path); err != nil {
				return candidates, err
			}
			gcLog.Printf("removed inputs cache entry %s (%d bytes)", e.Name(), info.Size())
		}
	}
	return candidates, nil
}
