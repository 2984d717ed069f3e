package apply

import (
	"encoding/json"

	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
	"github.com/syslua/syslua/pkg/manifest"
	"github.com/syslua/syslua/pkg/placeholder"
)

// NodeKind distinguishes a build realization node from a bind apply node.
type NodeKind string

const (
	NodeBuild NodeKind = "build"
	NodeBind  NodeKind = "bind"
)

// Node is a single unit of work scheduled into a wave.
type Node struct {
	Kind NodeKind
	Hash constants.ObjectHash
	// For a bind update node, OldHash names the bind being replaced.
	OldHash constants.ObjectHash
}

// BuildDAG constructs the dependency graph over the given nodes, scanning
// every action and output for $${build:hash:...}/$${bind:hash:...} references,
// and returns the execution waves: wave k holds every node whose
// dependencies are all satisfied by waves < k. Dependencies outside the node
// set (builds_cached, binds_unchanged) are treated as already satisfied.
func BuildDAG(nodes []Node, desired *manifest.Manifest) ([][]Node, error) {
	byHash := make(map[constants.ObjectHash]Node, len(nodes))
	for _, n := range nodes {
		byHash[n.Hash] = n
	}

	deps := make(map[constants.ObjectHash][]constants.ObjectHash, len(nodes))
	for _, n := range nodes {
		refs, err := referencesOf(n, desired)
		if err != nil {
			return nil, err
		}
		var filtered []constants.ObjectHash
		for _, ref := range refs {
			if ref == n.Hash {
				continue
			}
			if _, inSet := byHash[ref]; inSet {
				filtered = append(filtered, ref)
			}
		}
		deps[n.Hash] = filtered
	}

	return schedule(nodes, deps)
}

func referencesOf(n Node, desired *manifest.Manifest) ([]constants.ObjectHash, error) {
	var actions any
	switch n.Kind {
	case NodeBuild:
		b, ok := desired.Builds[n.Hash]
		if !ok {
			return nil, nil
		}
		actions = struct {
			Create  any
			Outputs any
		}{b.CreateActions, b.Outputs}
	case NodeBind:
		b, ok := desired.Bindings[n.Hash]
		if !ok {
			return nil, nil
		}
		actions = struct {
			Create  any
			Update  any
			Destroy any
			Check   any
			Outputs any
		}{b.CreateActions, b.UpdateActions, b.DestroyActions, b.CheckActions, b.Outputs}
	}
	raw, err := json.Marshal(actions)
	if err != nil {
		return nil, err
	}
	return placeholder.References(string(raw)), nil
}

// schedule performs a Kahn's-algorithm topological layering of nodes by
// deps, returning an error (a cycle error) if any node cannot be scheduled.
func schedule(nodes []Node, deps map[constants.ObjectHash][]constants.ObjectHash) ([][]Node, error) {
	byHash := make(map[constants.ObjectHash]Node, len(nodes))
	for _, n := range nodes {
		byHash[n.Hash] = n
	}

	remaining := make(map[constants.ObjectHash][]constants.ObjectHash, len(nodes))
	for hash, d := range deps {
		remaining[hash] = append([]constants.ObjectHash(nil), d...)
	}

	var waves [][]Node
	placed := make(map[constants.ObjectHash]bool, len(nodes))

	for len(placed) < len(nodes) {
		var wave []Node
		for _, n := range nodes {
			if placed[n.Hash] {
				continue
			}
			ready := true
			for _, dep := range remaining[n.Hash] {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, n)
			}
		}
		if len(wave) == 0 {
			return nil, cycleError(nodes, placed)
		}
		for _, n := range wave {
			placed[n.Hash] = true
		}
		waves = append(waves, wave)
	}
	return waves, nil
}

func cycleError(nodes []Node, placed map[constants.ObjectHash]bool) error {
	var chain []constants.ObjectHash
	for _, n := range nodes {
		if !placed[n.Hash] {
			chain = append(chain, n.Hash)
		}
	}
	return engineerr.NewCycleError(chain)
}
