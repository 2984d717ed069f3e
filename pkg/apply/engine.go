package apply

import (
	"context"
	"fmt"
	"strings"

	"github.com/syslua/syslua/pkg/action"
	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
	"github.com/syslua/syslua/pkg/logger"
	"github.com/syslua/syslua/pkg/manifest"
	"github.com/syslua/syslua/pkg/store"
)

var engineLog = logger.New("apply:engine")

// Options configures a single apply run.
type Options struct {
	Store      *store.Store
	Executor   *action.Executor
	Desired    *manifest.Manifest
	Current    *manifest.Manifest // nil on a fresh install
	MaxWorkers int
	Repair     bool
}

// Result summarizes a completed (successful or rolled-back) apply run.
type Result struct {
	Diff             StateDiff
	DestroyedHashes  []constants.ObjectHash // binds destroyed by this run; on success Run has already deleted their state.json
	UpdatedOldHashes []constants.ObjectHash
	RolledBack       bool
	Results          *ResultStore
}

// Run executes diff, destroy phase, main phase, and (on failure) the atomic
// rollback protocol described in §4.F. The caller holds the exclusive store
// lock for the duration of this call and is responsible for writing the new
// snapshot and advancing the current pointer on success.
func Run(ctx context.Context, opts Options) (Result, error) {
	diff, err := Diff(opts.Desired, opts.Current, opts.Store.IsBuildComplete)
	if err != nil {
		return Result{}, err
	}

	rs := NewResultStore()
	if err := seedCached(rs, opts.Store, opts.Desired, diff); err != nil {
		return Result{}, err
	}

	if err := runRepairChecks(ctx, opts, &diff, rs); err != nil {
		return Result{}, err
	}

	updatedOld := make([]constants.ObjectHash, len(diff.BindsToUpdate))
	for i, p := range diff.BindsToUpdate {
		updatedOld[i] = p.OldHash
	}

	destroySet := append([]constants.ObjectHash{}, diff.BindsToDestroy...)
	destroySet = append(destroySet, updatedOld...)

	destroyed, err := runDestroyPhase(ctx, opts, destroySet)
	if err != nil {
		// Destroy phase failed partway: restore whatever succeeded and
		// surface the original error.
		rollbackErr := restore(ctx, opts, destroyed)
		return Result{Diff: diff, DestroyedHashes: destroyed, RolledBack: true}, combineRollback(err, rollbackErr)
	}

	nodes := mainPhaseNodes(diff)
	waves, err := BuildDAG(nodes, opts.Desired)
	if err != nil {
		rollbackErr := restore(ctx, opts, destroyed)
		return Result{Diff: diff, DestroyedHashes: destroyed, RolledBack: true}, combineRollback(err, rollbackErr)
	}

	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = constants.MinWaveWorkers
	}

	for i, wave := range waves {
		engineLog.Printf("main phase wave %d/%d: %d nodes", i+1, len(waves), len(wave))
		results := runWave(ctx, wave, maxWorkers, func(ctx context.Context, n Node) error {
			return executeNode(ctx, opts, rs, n)
		})
		if err := firstError(results); err != nil {
			rollbackErr := restore(ctx, opts, destroyed)
			return Result{Diff: diff, DestroyedHashes: destroyed, RolledBack: true, Results: rs}, combineRollback(err, rollbackErr)
		}
	}

	cleanupDestroyedState(opts.Store, destroyed)
	return Result{Diff: diff, DestroyedHashes: destroyed, UpdatedOldHashes: updatedOld, Results: rs}, nil
}

// cleanupDestroyedState removes state.json for every bind whose
// destroy_actions ran and whose apply ultimately succeeded. It is only safe
// to call once the whole run commits: runDestroyPhase deliberately leaves
// state.json in place so a failed apply can still restore() from it.
func cleanupDestroyedState(s *store.Store, destroyed []constants.ObjectHash) {
	for _, h := range destroyed {
		if err := s.DeleteBindState(h); err != nil {
			engineLog.Printf("apply: cleaning up destroyed bind state %s: %v", h, err)
		}
	}
}

func mainPhaseNodes(diff StateDiff) []Node {
	var nodes []Node
	for _, h := range diff.BuildsToRealize {
		nodes = append(nodes, Node{Kind: NodeBuild, Hash: h})
	}
	for _, h := range diff.BindsToApply {
		nodes = append(nodes, Node{Kind: NodeBind, Hash: h})
	}
	for _, p := range diff.BindsToUpdate {
		nodes = append(nodes, Node{Kind: NodeBind, Hash: p.NewHash, OldHash: p.OldHash})
	}
	return nodes
}

func seedCached(rs *ResultStore, s *store.Store, desired *manifest.Manifest, diff StateDiff) error {
	for _, h := range diff.BuildsCached {
		b := desired.Builds[h]
		rs.RecordBuild(h, s.BuildDir(h), b.Outputs)
	}
	for _, h := range diff.BindsUnchanged {
		st, ok, err := s.ReadBindState(h)
		if err != nil {
			return err
		}
		if ok {
			rs.RecordBind(h, st.Outputs)
		}
	}
	return nil
}

// driftMarker is the captured stdout (trimmed) that a check_actions run must
// produce, as its last action, for the bind to be considered drifted. This
// is the chosen convention for an otherwise collaborator-defined signal: a
// check has no universal "exit code means drift" contract across exec and
// fetch_url, so the marker string gives authors an explicit way to report
// drift without overloading action failure (which already means "check
// itself is broken", a distinct, fatal condition).
const driftMarker = "drifted"

// runRepairChecks implements the optional repair flow from §4.F.3: every
// bind in binds_unchanged that declares check_actions gets them run against
// its already-seeded outputs. If the last check action's stdout, trimmed,
// equals driftMarker, the bind moves out of binds_unchanged and into the
// update (if update_actions exist) or destroy+apply (otherwise) sets so the
// main phase re-runs it. A check_actions failure (non-zero exit, etc.) is
// not drift — it is reported as a fatal repair error, since the engine
// cannot tell a broken check from a healthy bind.
func runRepairChecks(ctx context.Context, opts Options, diff *StateDiff, rs *ResultStore) error {
	if !opts.Repair {
		return nil
	}

	stillUnchanged := diff.BindsUnchanged[:0:0]
	for _, hash := range diff.BindsUnchanged {
		b, ok := opts.Desired.Bindings[hash]
		if !ok || len(b.CheckActions) == 0 {
			stillUnchanged = append(stillUnchanged, hash)
			continue
		}

		resolver := &entityResolver{rs: rs, outDir: opts.Store.BindDir(hash)}
		if err := runActions(ctx, opts.Executor, b.CheckActions, hash, resolver); err != nil {
			return fmt.Errorf("repair check for bind %s: %w", hash, err)
		}

		if !checkReportsDrift(resolver) {
			stillUnchanged = append(stillUnchanged, hash)
			continue
		}

		engineLog.Printf("repair: drift detected for bind %s", hash)
		if len(b.UpdateActions) > 0 {
			diff.BindsToUpdate = append(diff.BindsToUpdate, UpdatePair{OldHash: hash, NewHash: hash})
		} else {
			diff.BindsToDestroy = append(diff.BindsToDestroy, hash)
			diff.BindsToApply = append(diff.BindsToApply, hash)
		}
	}
	diff.BindsUnchanged = stillUnchanged
	return nil
}

func checkReportsDrift(r *entityResolver) bool {
	if len(r.actionResults) == 0 {
		return false
	}
	last := r.actionResults[len(r.actionResults)-1]
	return strings.TrimSpace(last) == driftMarker
}

// runDestroyPhase runs destroy_actions for every hash in destroySet in
// reverse dependency order (computed against the previous manifest), and
// returns the hashes whose destroy succeeded. state.json is intentionally
// left on disk for each so a later rollback can restore it.
func runDestroyPhase(ctx context.Context, opts Options, destroySet []constants.ObjectHash) ([]constants.ObjectHash, error) {
	if len(destroySet) == 0 || opts.Current == nil {
		return nil, nil
	}

	nodes := make([]Node, len(destroySet))
	for i, h := range destroySet {
		nodes[i] = Node{Kind: NodeBind, Hash: h}
	}
	waves, err := BuildDAG(nodes, opts.Current)
	if err != nil {
		return nil, err
	}

	var destroyed []constants.ObjectHash
	for i := len(waves) - 1; i >= 0; i-- {
		for _, n := range waves[i] {
			b, ok := opts.Current.Bindings[n.Hash]
			if !ok {
				continue
			}
			st, stOK, err := opts.Store.ReadBindState(n.Hash)
			if err != nil {
				return destroyed, fmt.Errorf("destroy %s: loading prior state: %w", n.Hash, err)
			}
			outputs := map[string]any{}
			if stOK {
				outputs = st.Outputs
			}
			resolver := &entityResolver{rs: NewResultStore(), outDir: ""}
			// destroy_actions run against the persisted outputs, not live
			// inputs: seed the resolver's own bind output so $${bind:self:..}
			// style self-references (if any) still work.
			resolver.rs.RecordBind(n.Hash, outputs)
			if err := runActions(ctx, opts.Executor, b.DestroyActions, n.Hash, resolver); err != nil {
				return destroyed, fmt.Errorf("destroy %s: %w", n.Hash, err)
			}
			destroyed = append(destroyed, n.Hash)
		}
	}
	return destroyed, nil
}

// executeNode realizes a single build or applies/updates a single bind.
func executeNode(ctx context.Context, opts Options, rs *ResultStore, n Node) error {
	switch n.Kind {
	case NodeBuild:
		return executeBuild(ctx, opts, rs, n.Hash)
	case NodeBind:
		return executeBind(ctx, opts, rs, n)
	default:
		return fmt.Errorf("unknown node kind %q", n.Kind)
	}
}

func executeBuild(ctx context.Context, opts Options, rs *ResultStore, hash constants.ObjectHash) error {
	b, ok := opts.Desired.Builds[hash]
	if !ok {
		return fmt.Errorf("build %s not found in desired manifest", hash)
	}
	dir, err := opts.Store.PrepareBuildDir(hash)
	if err != nil {
		return err
	}
	resolver := &entityResolver{rs: rs, outDir: dir}
	if err := runActions(ctx, opts.Executor, b.CreateActions, hash, resolver); err != nil {
		return err
	}
	if err := opts.Store.FinalizeBuild(hash); err != nil {
		return err
	}
	rs.RecordBuild(hash, dir, b.Outputs)
	return nil
}

func executeBind(ctx context.Context, opts Options, rs *ResultStore, n Node) error {
	b, ok := opts.Desired.Bindings[n.Hash]
	if !ok {
		return fmt.Errorf("bind %s not found in desired manifest", n.Hash)
	}
	actions := b.CreateActions
	if n.OldHash != "" && len(b.UpdateActions) > 0 {
		actions = b.UpdateActions
	}

	resolver := &entityResolver{rs: rs, outDir: opts.Store.BindDir(n.Hash)}
	if err := runActions(ctx, opts.Executor, actions, n.Hash, resolver); err != nil {
		return err
	}
	outputs, err := resolveOutputs(b.Outputs, n.Hash, resolver)
	if err != nil {
		return err
	}
	if err := opts.Store.WriteBindState(n.Hash, outputs); err != nil {
		return err
	}
	rs.RecordBind(n.Hash, outputs)
	return nil
}

// restore implements §4.F.4 step 2: rebuild the DAG from the previous
// manifest, filter to the destroyed hashes, and re-run create_actions for
// each so the system is left no worse than before the failed apply.
func restore(ctx context.Context, opts Options, destroyedHashes []constants.ObjectHash) error {
	if len(destroyedHashes) == 0 {
		return nil
	}
	if opts.Current == nil {
		return fmt.Errorf("restore requested but no previous manifest is available")
	}

	destroyedSet := make(map[constants.ObjectHash]bool, len(destroyedHashes))
	for _, h := range destroyedHashes {
		destroyedSet[h] = true
	}

	rs := NewResultStore()
	for hash, b := range opts.Current.Builds {
		complete, err := opts.Store.IsBuildComplete(hash)
		if err == nil && complete {
			rs.RecordBuild(hash, opts.Store.BuildDir(hash), b.Outputs)
		}
	}
	for hash := range opts.Current.Bindings {
		if destroyedSet[hash] {
			continue
		}
		st, ok, err := opts.Store.ReadBindState(hash)
		if err == nil && ok {
			rs.RecordBind(hash, st.Outputs)
		}
	}

	nodes := make([]Node, 0, len(destroyedHashes))
	for _, h := range destroyedHashes {
		nodes = append(nodes, Node{Kind: NodeBind, Hash: h})
	}
	waves, err := BuildDAG(nodes, opts.Current)
	if err != nil {
		return err
	}

	for _, wave := range waves {
		results := runWave(ctx, wave, maxWorkersOrDefault(opts.MaxWorkers), func(ctx context.Context, n Node) error {
			b := opts.Current.Bindings[n.Hash]
			resolver := &entityResolver{rs: rs, outDir: opts.Store.BindDir(n.Hash)}
			if err := runActions(ctx, opts.Executor, b.CreateActions, n.Hash, resolver); err != nil {
				return err
			}
			outputs, err := resolveOutputs(b.Outputs, n.Hash, resolver)
			if err != nil {
				return err
			}
			return opts.Store.WriteBindState(n.Hash, outputs)
		})
		if err := firstError(results); err != nil {
			return err
		}
	}
	return nil
}

func maxWorkersOrDefault(n int) int {
	if n <= 0 {
		return constants.MinWaveWorkers
	}
	return n
}

func combineRollback(original, restoreErr error) error {
	if restoreErr == nil {
		return original
	}
	return &engineerr.RollbackError{OriginalErr: original, RestoreErr: restoreErr, SelfHealed: false}
}
