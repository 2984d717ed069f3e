package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syslua/syslua/pkg/action"
	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/manifest"
)

const testPlatform = constants.Platform("amd64-linux")

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(t.TempDir(), "", &action.Executor{InputsCacheDir: t.TempDir()}, 2, "test")
}

func TestApplyAdvancesCurrentSnapshot(t *testing.T) {
	e := newTestEngine(t)

	desired := manifest.New()
	_, err := desired.RegisterBind(manifest.Bind{
		ID:             "thing",
		CreateActions:  []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}, testPlatform, false)
	require.NoError(t, err)

	result, err := e.Apply(context.Background(), desired, "config.lua", false)
	require.NoError(t, err)
	assert.False(t, result.RolledBack)

	st, err := e.Status(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, st.HasCurrent)
	assert.Equal(t, 1, st.Summary.BindCount)
}

func TestApplyFailureRestoresPreviousCurrent(t *testing.T) {
	e := newTestEngine(t)

	first := manifest.New()
	_, err := first.RegisterBind(manifest.Bind{
		ID:             "ok",
		CreateActions:  []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}, testPlatform, false)
	require.NoError(t, err)
	_, err = e.Apply(context.Background(), first, "", false)
	require.NoError(t, err)

	before, err := e.Status(context.Background(), false)
	require.NoError(t, err)

	second := manifest.New()
	_, err = second.RegisterBind(manifest.Bind{
		ID:            "broken",
		CreateActions: []action.Action{action.NewExec("/bin/false", nil, nil, "")},
	}, testPlatform, false)
	require.NoError(t, err)

	_, err = e.Apply(context.Background(), second, "", false)
	require.Error(t, err)

	after, err := e.Status(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, before.CurrentID, after.CurrentID)
}

func TestDestroyAppliesEmptyManifest(t *testing.T) {
	e := newTestEngine(t)

	m := manifest.New()
	_, err := m.RegisterBind(manifest.Bind{
		ID:             "thing",
		CreateActions:  []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}, testPlatform, false)
	require.NoError(t, err)
	_, err = e.Apply(context.Background(), m, "", false)
	require.NoError(t, err)

	result, err := e.Destroy(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.DestroyedHashes, 1)

	st, err := e.Status(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Summary.BindCount)
}

func TestPlanDoesNotMutateState(t *testing.T) {
	e := newTestEngine(t)

	desired := manifest.New()
	_, err := desired.RegisterBind(manifest.Bind{
		ID:            "thing",
		CreateActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}, testPlatform, false)
	require.NoError(t, err)

	diff, err := e.Plan(context.Background(), desired)
	require.NoError(t, err)
	assert.Len(t, diff.BindsToApply, 1)

	st, err := e.Status(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, st.HasCurrent, "plan must not advance current")
}

func TestRollbackReappliesPreviousManifest(t *testing.T) {
	e := newTestEngine(t)

	first := manifest.New()
	_, err := first.RegisterBind(manifest.Bind{
		ID:             "v1",
		CreateActions:  []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}, testPlatform, false)
	require.NoError(t, err)
	_, err = e.Apply(context.Background(), first, "", false)
	require.NoError(t, err)

	second := manifest.New()
	_, err = second.RegisterBind(manifest.Bind{
		ID:             "v2",
		CreateActions:  []action.Action{action.NewExec("/bin/true", nil, nil, "")},
		DestroyActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}, testPlatform, false)
	require.NoError(t, err)
	_, err = e.Apply(context.Background(), second, "", false)
	require.NoError(t, err)

	result, err := e.Rollback(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, result.RolledBack)

	st, err := e.Status(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Summary.BindCount)
}

func TestLockStatusReportsNoHolderWhenUnlocked(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Store.EnsureLayout())

	_, held, err := e.LockStatus()
	require.NoError(t, err)
	assert.False(t, held)
}

func TestGCDryRunReportsNothingForLiveBuild(t *testing.T) {
	e := newTestEngine(t)

	m := manifest.New()
	_, err := m.RegisterBuild(manifest.Build{
		ID:            "tool",
		CreateActions: []action.Action{action.NewExec("/bin/true", nil, nil, "")},
	}, testPlatform, false)
	require.NoError(t, err)
	_, err = e.Apply(context.Background(), m, "", false)
	require.NoError(t, err)

	report, err := e.GC(context.Background(), GCOptions{DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, report.Removed)
}
