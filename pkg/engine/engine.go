// Package engine wires the store lock, manifest, diff/apply, snapshot, and
// GC packages into the six top-level operations §6.3 names: apply, destroy,
// plan/diff, status, gc, and rollback. It is the only package a CLI (or any
// other front end) needs to import to drive the system; the core does not
// parse flags itself (§6.3).
package engine

import (
	"context"
	"fmt"

	"github.com/syslua/syslua/pkg/action"
	"github.com/syslua/syslua/pkg/apply"
	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
	"github.com/syslua/syslua/pkg/gc"
	"github.com/syslua/syslua/pkg/logger"
	"github.com/syslua/syslua/pkg/manifest"
	"github.com/syslua/syslua/pkg/snapshot"
	"github.com/syslua/syslua/pkg/store"
	"github.com/syslua/syslua/pkg/storelock"
)

var engLog = logger.New("engine")

// Engine is the entry point a front end (CLI, test harness, or an embedding
// program) drives to run operations against one store.
type Engine struct {
	Store      *store.Store
	Snapshots  *snapshot.Store
	Executor   *action.Executor
	Command    string // recorded into lock metadata and snapshot config_path
	MaxWorkers int
}

// New constructs an Engine over storeRoot (with an optional read-only
// parentStore for the layering fallback). The caller supplies the action
// executor so tests can inject one with a scoped InputsCacheDir.
func New(storeRoot, parentStore string, executor *action.Executor, maxWorkers int, command string) *Engine {
	s := store.New(storeRoot, parentStore)
	return &Engine{
		Store:      s,
		Snapshots:  snapshot.New(s),
		Executor:   executor,
		Command:    command,
		MaxWorkers: maxWorkers,
	}
}

func (e *Engine) withLock(mode constants.LockMode, fn func() error) error {
	if err := e.Store.EnsureLayout(); err != nil {
		return err
	}
	lock, err := storelock.Acquire(e.Store.Root, mode, e.Command)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := lock.Unlock(); uerr != nil {
			engLog.Printf("releasing store lock: %v", uerr)
		}
	}()
	return fn()
}

// Apply realizes desired against whatever is currently applied, per §4.F,
// saving a new snapshot and advancing `current` on success. configPath is
// recorded into the snapshot for debugging (§3.6); it may be empty.
func (e *Engine) Apply(ctx context.Context, desired *manifest.Manifest, configPath string, repair bool) (apply.Result, error) {
	var result apply.Result
	err := e.withLock(constants.LockModeExclusive, func() error {
		current, previousID, _, err := e.Snapshots.LoadCurrent()
		if err != nil {
			return err
		}

		result, err = apply.Run(ctx, apply.Options{
			Store:      e.Store,
			Executor:   e.Executor,
			Desired:    desired,
			Current:    current,
			MaxWorkers: e.MaxWorkers,
			Repair:     repair,
		})
		if err != nil {
			return e.handleApplyFailure(result, previousID, err)
		}

		snap := snapshot.NewSnapshot(snapshot.NewID(), configPath, desired)
		return e.Snapshots.Save(snap, true)
	})
	return result, err
}

// handleApplyFailure implements the caller-side half of §4.F.4: when Run
// reports RolledBack, either swing `current` back explicitly (restore
// succeeded — it was never actually unset, but set it for clarity and so a
// fresh process sees the same state) or clear it entirely (restore itself
// failed, entering the self-healing state) and mark the error accordingly.
func (e *Engine) handleApplyFailure(result apply.Result, previousID constants.SnapshotID, applyErr error) error {
	if !result.RolledBack {
		return applyErr
	}

	var rollbackErr *engineerr.RollbackError
	if asRollbackError(applyErr, &rollbackErr) {
		if cerr := e.Snapshots.ClearCurrent(); cerr != nil {
			engLog.Printf("self-heal: clearing current pointer: %v", cerr)
		} else {
			rollbackErr.SelfHealed = true
		}
		return rollbackErr
	}

	if previousID != "" {
		if serr := e.Snapshots.SetCurrent(previousID); serr != nil {
			engLog.Printf("restoring current pointer after rollback: %v", serr)
		}
	}
	return applyErr
}

func asRollbackError(err error, target **engineerr.RollbackError) bool {
	re, ok := err.(*engineerr.RollbackError)
	if ok {
		*target = re
	}
	return ok
}

// Destroy applies an empty manifest, tearing down every bind and orphaning
// every build (§6.3: "apply of an empty manifest").
func (e *Engine) Destroy(ctx context.Context) (apply.Result, error) {
	return e.Apply(ctx, manifest.New(), "", false)
}

// Plan computes a StateDiff between desired and whatever is currently
// applied, under a shared lock, with no mutation.
func (e *Engine) Plan(ctx context.Context, desired *manifest.Manifest) (apply.StateDiff, error) {
	var diff apply.StateDiff
	err := e.withLock(constants.LockModeShared, func() error {
		current, _, _, err := e.Snapshots.LoadCurrent()
		if err != nil {
			return err
		}
		diff, err = apply.Diff(desired, current, e.Store.IsBuildComplete)
		return err
	})
	return diff, err
}

// Status is the result of the status operation: current snapshot identity,
// its manifest summary, and store disk usage.
type Status struct {
	CurrentID    constants.SnapshotID
	HasCurrent   bool
	Summary      manifest.Metadata
	StoreBytes   int64
	AllSnapshots []SnapshotSummary // populated only when verbose
}

// SnapshotSummary is one row of the verbose snapshot listing.
type SnapshotSummary struct {
	ID      constants.SnapshotID
	Builds  int
	Binds   int
	Current bool
}

// Status reports the current snapshot, its counts, and store usage under a
// shared lock. When verbose, every snapshot in the index is summarized
// (§2.4's supplemented "status --verbose" listing).
func (e *Engine) Status(ctx context.Context, verbose bool) (Status, error) {
	var st Status
	err := e.withLock(constants.LockModeShared, func() error {
		current, id, hasCurrent, err := e.Snapshots.LoadCurrent()
		if err != nil {
			return err
		}
		st.HasCurrent = hasCurrent
		st.CurrentID = id
		if hasCurrent {
			st.Summary = current.Summary()
		}
		size, err := store.DirSize(e.Store.Root)
		if err != nil {
			return err
		}
		st.StoreBytes = size

		if !verbose {
			return nil
		}
		ids, err := e.Snapshots.List()
		if err != nil {
			return err
		}
		for _, sid := range ids {
			snap, err := e.Snapshots.Load(sid)
			if err != nil {
				engLog.Printf("status --verbose: skipping unreadable snapshot %s: %v", sid, err)
				continue
			}
			st.AllSnapshots = append(st.AllSnapshots, SnapshotSummary{
				ID:      sid,
				Builds:  snap.Metadata.BuildCount,
				Binds:   snap.Metadata.BindCount,
				Current: sid == id,
			})
		}
		return nil
	})
	return st, err
}

// GCOptions configures a collection pass.
type GCOptions struct {
	DryRun         bool
	InputsCacheDir string
	InputsLockPath string
}

// GCReport combines the store sweep report with the separately-swept inputs
// cache, since they use different reachability graphs (snapshots vs the
// external lock file) but are reported to the operator together.
type GCReport struct {
	gc.Report
	InputsCacheRemoved []gc.Candidate
}

// GC runs mark-and-sweep under an exclusive lock (§4.G.2). In dry-run mode
// nothing is deleted; candidates are still identified and sized.
func (e *Engine) GC(ctx context.Context, opts GCOptions) (GCReport, error) {
	var report GCReport
	err := e.withLock(constants.LockModeExclusive, func() error {
		live, warnings, err := gc.Mark(e.Snapshots)
		if err != nil {
			return err
		}
		sweep, err := gc.Sweep(e.Store, live, opts.DryRun)
		if err != nil {
			return err
		}
		sweep.Warnings = append(sweep.Warnings, warnings...)
		report.Report = sweep

		cacheRemoved, err := gc.SweepInputsCache(opts.InputsCacheDir, opts.InputsLockPath, opts.DryRun)
		if err != nil {
			return err
		}
		report.InputsCacheRemoved = cacheRemoved
		for _, c := range cacheRemoved {
			report.ReclaimedBytes += c.Bytes
		}
		return nil
	})
	return report, err
}

// Rollback re-applies an older snapshot's manifest as the new desired state
// (§6.3: "apply the target manifest; default = previous"). Re-running it
// through Apply (rather than just swinging the pointer) guarantees the live
// system actually matches the target manifest, not just the bookkeeping.
func (e *Engine) Rollback(ctx context.Context, targetID constants.SnapshotID) (apply.Result, error) {
	id := targetID
	if id == "" {
		prev, err := e.previousSnapshotID(ctx)
		if err != nil {
			return apply.Result{}, err
		}
		id = prev
	}
	if id == "" {
		return apply.Result{}, fmt.Errorf("engine: no snapshot to roll back to")
	}

	snap, err := e.Snapshots.Load(id)
	if err != nil {
		return apply.Result{}, err
	}
	target := manifest.New()
	target.Builds = snap.Manifest.Builds
	target.Bindings = snap.Manifest.Bindings
	return e.Apply(ctx, target, snap.ConfigPath, false)
}

func (e *Engine) previousSnapshotID(ctx context.Context) (constants.SnapshotID, error) {
	ids, err := e.Snapshots.List()
	if err != nil {
		return "", err
	}
	_, current, hasCurrent, err := e.Snapshots.LoadCurrent()
	if err != nil {
		return "", err
	}
	if !hasCurrent {
		return "", fmt.Errorf("engine: no current snapshot; specify a target explicitly")
	}
	for i, sid := range ids {
		if sid == current && i > 0 {
			return ids[i-1], nil
		}
	}
	return "", fmt.Errorf("engine: no snapshot precedes %s", current)
}

// LockStatus inspects the store's lock file without acquiring it (the
// supplemented `lock-status` operation, §2.4).
func (e *Engine) LockStatus() (storelock.Metadata, bool, error) {
	return storelock.Inspect(e.Store.Root)
}
