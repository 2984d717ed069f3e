// Package apply implements the diff/DAG/wave execution engine: computing a
// StateDiff between the desired and current manifests, scheduling the
// affected entities into dependency-ordered waves, running them with bounded
// parallelism, and rolling back atomically on failure.
package apply

import (
	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/manifest"
)

// UpdatePair is a bind whose id carried over from current to desired but
// whose hash changed.
type UpdatePair struct {
	OldHash constants.ObjectHash
	NewHash constants.ObjectHash
}

// StateDiff is the result of comparing a desired manifest against the
// manifest currently applied (if any) and the realized contents of the
// store.
type StateDiff struct {
	BuildsToRealize []constants.ObjectHash
	BuildsCached    []constants.ObjectHash
	BuildsOrphaned  []constants.ObjectHash

	BindsToApply   []constants.ObjectHash
	BindsToUpdate  []UpdatePair
	BindsToDestroy []constants.ObjectHash
	BindsUnchanged []constants.ObjectHash
}

// BuildCompletionChecker reports whether a build hash is already realized
// and trustworthy on disk (store.Store.IsBuildComplete).
type BuildCompletionChecker func(hash constants.ObjectHash) (bool, error)

// Diff computes a StateDiff per §4.F.1. current may be nil (fresh install).
func Diff(desired, current *manifest.Manifest, isComplete BuildCompletionChecker) (StateDiff, error) {
	var diff StateDiff

	for hash := range desired.Builds {
		complete, err := isComplete(hash)
		if err != nil {
			return StateDiff{}, err
		}
		if complete {
			diff.BuildsCached = append(diff.BuildsCached, hash)
		} else {
			diff.BuildsToRealize = append(diff.BuildsToRealize, hash)
		}
	}

	currentBuilds := map[constants.ObjectHash]bool{}
	currentBinds := map[constants.ObjectHash]manifest.Bind{}
	if current != nil {
		for hash := range current.Builds {
			currentBuilds[hash] = true
			if _, ok := desired.Builds[hash]; !ok {
				diff.BuildsOrphaned = append(diff.BuildsOrphaned, hash)
			}
		}
		for hash, b := range current.Bindings {
			currentBinds[hash] = b
		}
	}
	_ = currentBuilds

	// Index current bindings by id for the update-pair match.
	currentByID := map[constants.EntityID]constants.ObjectHash{}
	for hash, b := range currentBinds {
		if b.ID != "" {
			currentByID[b.ID] = hash
		}
	}

	handledOld := map[constants.ObjectHash]bool{}
	handledNew := map[constants.ObjectHash]bool{}

	for hash, desiredBind := range desired.Bindings {
		if _, ok := currentBinds[hash]; ok {
			diff.BindsUnchanged = append(diff.BindsUnchanged, hash)
			handledOld[hash] = true
			handledNew[hash] = true
			continue
		}

		if desiredBind.ID != "" {
			if oldHash, ok := currentByID[desiredBind.ID]; ok && oldHash != hash {
				if len(desiredBind.UpdateActions) > 0 {
					diff.BindsToUpdate = append(diff.BindsToUpdate, UpdatePair{OldHash: oldHash, NewHash: hash})
					handledOld[oldHash] = true
					handledNew[hash] = true
					continue
				}
				// No update_actions declared: treat as destroy-then-apply.
				diff.BindsToDestroy = append(diff.BindsToDestroy, oldHash)
				diff.BindsToApply = append(diff.BindsToApply, hash)
				handledOld[oldHash] = true
				handledNew[hash] = true
				continue
			}
		}

		diff.BindsToApply = append(diff.BindsToApply, hash)
		handledNew[hash] = true
	}

	for hash := range currentBinds {
		if !handledOld[hash] {
			diff.BindsToDestroy = append(diff.BindsToDestroy, hash)
		}
	}

	return diff, nil
}
