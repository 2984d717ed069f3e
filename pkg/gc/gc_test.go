package gc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/syslua/syslua/pkg/action"
	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/manifest"
	"github.com/syslua/syslua/pkg/snapshot"
	"github.com/syslua/syslua/pkg/store"
)

const testPlatform = constants.Platform("amd64-linux")

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(t.TempDir(), "")
	if err := s.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}
	return s
}

func finalizeBuild(t *testing.T, s *store.Store, hash constants.ObjectHash) {
	t.Helper()
	if _, err := s.PrepareBuildDir(hash); err != nil {
		t.Fatalf("PrepareBuildDir: %v", err)
	}
	if err := s.FinalizeBuild(hash); err != nil {
		t.Fatalf("FinalizeBuild: %v", err)
	}
}

func TestMarkUnionsAllSnapshotsNotJustCurrent(t *testing.T) {
	s := newTestStore(t)
	snaps := snapshot.New(s)

	m1 := manifest.New()
	h1, _ := m1.RegisterBuild(manifest.Build{ID: "old", CreateActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")}}, testPlatform, false)
	if err := snaps.Save(snapshot.NewSnapshot(snapshot.NewID(), "", m1), false); err != nil {
		t.Fatalf("Save m1: %v", err)
	}

	m2 := manifest.New()
	h2, _ := m2.RegisterBuild(manifest.Build{ID: "new", CreateActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")}}, testPlatform, false)
	if err := snaps.Save(snapshot.NewSnapshot(snapshot.NewID(), "", m2), true); err != nil {
		t.Fatalf("Save m2: %v", err)
	}

	live, warnings, err := Mark(snaps)
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if !live.Builds[h1] || !live.Builds[h2] {
		t.Errorf("expected both snapshots' builds live, got %v", live.Builds)
	}
}

func TestSweepBuildsRemovesOrphanedAndIncomplete(t *testing.T) {
	s := newTestStore(t)

	liveHash := constants.ObjectHash("11111111111111111111")
	orphanHash := constants.ObjectHash("22222222222222222222")
	incompleteHash := constants.ObjectHash("33333333333333333333")

	finalizeBuild(t, s, liveHash)
	finalizeBuild(t, s, orphanHash)
	if _, err := s.PrepareBuildDir(incompleteHash); err != nil {
		t.Fatalf("PrepareBuildDir: %v", err)
	}

	live := LiveSet{Builds: map[constants.ObjectHash]bool{liveHash: true, incompleteHash: true}, Binds: map[constants.ObjectHash]bool{}}

	report, err := Sweep(s, live, false)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	byHash := map[constants.ObjectHash]Reason{}
	for _, c := range report.Removed {
		byHash[c.Hash] = c.Reason
	}
	if byHash[orphanHash] != ReasonOrphaned {
		t.Errorf("orphanHash reason = %q, want orphaned", byHash[orphanHash])
	}
	if byHash[incompleteHash] != ReasonIncomplete {
		t.Errorf("incompleteHash reason = %q, want incomplete", byHash[incompleteHash])
	}
	if _, present := byHash[liveHash]; present {
		t.Errorf("live+complete build should not have been swept")
	}

	if _, err := os.Stat(s.BuildDir(liveHash)); err != nil {
		t.Errorf("expected live build dir to survive: %v", err)
	}
	if _, err := os.Stat(s.BuildDir(orphanHash)); !os.IsNotExist(err) {
		t.Errorf("expected orphaned build dir to be removed")
	}
}

func TestSweepDryRunReportsWithoutDeleting(t *testing.T) {
	s := newTestStore(t)
	orphanHash := constants.ObjectHash("44444444444444444444")
	finalizeBuild(t, s, orphanHash)

	report, err := Sweep(s, LiveSet{Builds: map[constants.ObjectHash]bool{}, Binds: map[constants.ObjectHash]bool{}}, true)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(report.Removed) != 1 {
		t.Fatalf("Removed = %v, want 1 candidate", report.Removed)
	}
	if _, err := os.Stat(s.BuildDir(orphanHash)); err != nil {
		t.Errorf("dry run must not delete: %v", err)
	}
}

func TestSweepBindsRemovesOrphaned(t *testing.T) {
	s := newTestStore(t)
	liveHash := constants.ObjectHash("55555555555555555555")
	orphanHash := constants.ObjectHash("66666666666666666666")

	if err := s.WriteBindState(liveHash, map[string]any{}); err != nil {
		t.Fatalf("WriteBindState live: %v", err)
	}
	if err := s.WriteBindState(orphanHash, map[string]any{}); err != nil {
		t.Fatalf("WriteBindState orphan: %v", err)
	}

	live := LiveSet{Builds: map[constants.ObjectHash]bool{}, Binds: map[constants.ObjectHash]bool{liveHash: true}}
	report, err := Sweep(s, live, false)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(report.Removed) != 1 || report.Removed[0].Hash != orphanHash {
		t.Fatalf("Removed = %v, want [%s]", report.Removed, orphanHash)
	}
	if _, _, err := s.ReadBindState(liveHash); err != nil {
		t.Errorf("live bind state should survive: %v", err)
	}
}

func TestSweepInputsCacheRemovesUnreachableEntries(t *testing.T) {
	cacheDir := t.TempDir()
	liveKey := "aaaa"
	deadKey := "bbbb"
	if err := os.WriteFile(filepath.Join(cacheDir, liveKey), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, deadKey), []byte("y"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	lock := InputsLock{
		Roots: []string{"fragment-a"},
		Nodes: map[string]InputsLockNode{
			"fragment-a": {CacheKey: liveKey, Deps: nil},
		},
	}
	lockPath := filepath.Join(t.TempDir(), "inputs.lock.json")
	data, err := json.Marshal(lock)
	if err != nil {
		t.Fatalf("marshal lock: %v", err)
	}
	if err := os.WriteFile(lockPath, data, 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	candidates, err := SweepInputsCache(cacheDir, lockPath, false)
	if err != nil {
		t.Fatalf("SweepInputsCache: %v", err)
	}
	if len(candidates) != 1 || filepath.Base(candidates[0].Path) != deadKey {
		t.Fatalf("candidates = %v, want [%s]", candidates, deadKey)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, liveKey)); err != nil {
		t.Errorf("live cache entry should survive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, deadKey)); !os.IsNotExist(err) {
		t.Error("dead cache entry should have been removed")
	}
}

func TestSweepInputsCacheDisabledWithoutLockPath(t *testing.T) {
	cacheDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(cacheDir, "whatever"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	candidates, err := SweepInputsCache(cacheDir, "", false)
	if err != nil {
		t.Fatalf("SweepInputsCache: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected no sweep without a lock path, got %v", candidates)
	}
}
