package apply

import (
	"testing"

	"github.com/syslua/syslua/pkg/action"
	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/manifest"
)

const testPlatform = constants.Platform("amd64-linux")

func alwaysIncomplete(constants.ObjectHash) (bool, error) { return false, nil }

func newBuildManifest(t *testing.T, id string, bin string) (*manifest.Manifest, constants.ObjectHash) {
	t.Helper()
	m := manifest.New()
	h, err := m.RegisterBuild(manifest.Build{ID: constants.EntityID(id), CreateActions: []action.Action{action.NewExec(bin, nil, nil, "")}}, testPlatform, false)
	if err != nil {
		t.Fatalf("RegisterBuild: %v", err)
	}
	return m, h
}

func TestDiffFreshInstallPutsEverythingInToRealize(t *testing.T) {
	desired, hash := newBuildManifest(t, "tool", "/bin/true")
	diff, err := Diff(desired, nil, alwaysIncomplete)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diff.BuildsToRealize) != 1 || diff.BuildsToRealize[0] != hash {
		t.Errorf("BuildsToRealize = %v", diff.BuildsToRealize)
	}
	if len(diff.BuildsCached) != 0 {
		t.Errorf("BuildsCached = %v, want none", diff.BuildsCached)
	}
}

func TestDiffCachedBuildSkipsRealization(t *testing.T) {
	desired, hash := newBuildManifest(t, "tool", "/bin/true")
	complete := func(h constants.ObjectHash) (bool, error) { return h == hash, nil }
	diff, err := Diff(desired, nil, complete)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diff.BuildsCached) != 1 {
		t.Errorf("BuildsCached = %v, want 1", diff.BuildsCached)
	}
}

func TestDiffBindUpdateWithUpdateActions(t *testing.T) {
	current := manifest.New()
	oldHash, err := current.RegisterBind(manifest.Bind{
		ID:             "line",
		CreateActions:  []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}, testPlatform, false)
	if err != nil {
		t.Fatalf("RegisterBind current: %v", err)
	}

	desired := manifest.New()
	newHash, err := desired.RegisterBind(manifest.Bind{
		ID:             "line",
		Inputs:         map[string]any{"content": "v2"},
		CreateActions:  []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		UpdateActions:  []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}, testPlatform, false)
	if err != nil {
		t.Fatalf("RegisterBind desired: %v", err)
	}

	diff, err := Diff(desired, current, alwaysIncomplete)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diff.BindsToUpdate) != 1 || diff.BindsToUpdate[0] != (UpdatePair{OldHash: oldHash, NewHash: newHash}) {
		t.Errorf("BindsToUpdate = %v", diff.BindsToUpdate)
	}
	if len(diff.BindsToDestroy) != 0 {
		t.Errorf("BindsToDestroy = %v, want none", diff.BindsToDestroy)
	}
}

func TestDiffBindSameIDNoUpdateActionsIsDestroyThenApply(t *testing.T) {
	current := manifest.New()
	oldHash, err := current.RegisterBind(manifest.Bind{
		ID:             "line",
		CreateActions:  []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}, testPlatform, false)
	if err != nil {
		t.Fatalf("RegisterBind current: %v", err)
	}

	desired := manifest.New()
	newHash, err := desired.RegisterBind(manifest.Bind{
		ID:             "line",
		Inputs:         map[string]any{"content": "v2"},
		CreateActions:  []action.Action{action.NewExec("/bin/false", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}, testPlatform, false)
	if err != nil {
		t.Fatalf("RegisterBind desired: %v", err)
	}

	diff, err := Diff(desired, current, alwaysIncomplete)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diff.BindsToUpdate) != 0 {
		t.Errorf("BindsToUpdate = %v, want none", diff.BindsToUpdate)
	}
	if len(diff.BindsToDestroy) != 1 || diff.BindsToDestroy[0] != oldHash {
		t.Errorf("BindsToDestroy = %v", diff.BindsToDestroy)
	}
	if len(diff.BindsToApply) != 1 || diff.BindsToApply[0] != newHash {
		t.Errorf("BindsToApply = %v", diff.BindsToApply)
	}
}

func TestDiffBindUnchangedWhenHashMatches(t *testing.T) {
	m := manifest.New()
	hash, err := m.RegisterBind(manifest.Bind{
		ID:             "line",
		CreateActions:  []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}, testPlatform, false)
	if err != nil {
		t.Fatalf("RegisterBind: %v", err)
	}

	diff, err := Diff(m, m, alwaysIncomplete)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diff.BindsUnchanged) != 1 || diff.BindsUnchanged[0] != hash {
		t.Errorf("BindsUnchanged = %v", diff.BindsUnchanged)
	}
	if len(diff.BindsToDestroy) != 0 || len(diff.BindsToApply) != 0 {
		t.Errorf("expected no destroy/apply work for an unchanged bind")
	}
}

func TestDiffOrphanedBuildNoLongerDesired(t *testing.T) {
	current, hash := newBuildManifest(t, "old-tool", "/bin/true")
	desired := manifest.New()

	diff, err := Diff(desired, current, alwaysIncomplete)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diff.BuildsOrphaned) != 1 || diff.BuildsOrphaned[0] != hash {
		t.Errorf("BuildsOrphaned = %v", diff.BuildsOrphaned)
	}
}
