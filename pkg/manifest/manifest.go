// Package manifest defines the desired-state data model (builds and binds,
// keyed by object hash) plus the registration semantics that let
// configuration modules call a setup primitive repeatedly without producing
// duplicate entries: identical hash is a no-op, same id with a different
// hash requires an explicit replace.
package manifest

import (
	"github.com/syslua/syslua/pkg/action"
	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
	"github.com/syslua/syslua/pkg/hashing"
)

// Build produces an immutable artifact realized at apply time.
type Build struct {
	ID            constants.EntityID         `json:"id,omitempty"`
	Inputs        map[string]any             `json:"inputs,omitempty"`
	CreateActions []action.Action            `json:"create_actions"`
	Outputs       map[string]string          `json:"outputs,omitempty"`
	Source        engineerr.SourceLocation   `json:"-"`
}

// buildHashView is the subset of Build that participates in its object hash:
// source locations and hash-dependent paths are intentionally excluded.
type buildHashView struct {
	ID            constants.EntityID `json:"id,omitempty"`
	Inputs        map[string]any     `json:"inputs,omitempty"`
	CreateActions []action.Action    `json:"create_actions"`
	Outputs       map[string]string  `json:"outputs,omitempty"`
}

// Hash computes the build's object hash for the given platform.
func (b Build) Hash(platform constants.Platform) (constants.ObjectHash, error) {
	return hashing.ObjectHash(buildHashView{
		ID:            b.ID,
		Inputs:        b.Inputs,
		CreateActions: b.CreateActions,
		Outputs:       b.Outputs,
	}, platform)
}

// Bind imposes state on the live system.
type Bind struct {
	ID             constants.EntityID       `json:"id,omitempty"`
	Inputs         map[string]any           `json:"inputs,omitempty"`
	CreateActions  []action.Action          `json:"create_actions"`
	UpdateActions  []action.Action          `json:"update_actions,omitempty"`
	DestroyActions []action.Action          `json:"destroy_actions"`
	CheckActions   []action.Action          `json:"check_actions,omitempty"`
	Outputs        map[string]any           `json:"outputs,omitempty"`
	Source         engineerr.SourceLocation `json:"-"`
}

type bindHashView struct {
	ID             constants.EntityID `json:"id,omitempty"`
	Inputs         map[string]any     `json:"inputs,omitempty"`
	CreateActions  []action.Action    `json:"create_actions"`
	UpdateActions  []action.Action    `json:"update_actions,omitempty"`
	DestroyActions []action.Action    `json:"destroy_actions"`
	CheckActions   []action.Action    `json:"check_actions,omitempty"`
	Outputs        map[string]any     `json:"outputs,omitempty"`
}

// Hash computes the bind's object hash for the given platform.
func (b Bind) Hash(platform constants.Platform) (constants.ObjectHash, error) {
	return hashing.ObjectHash(bindHashView{
		ID:             b.ID,
		Inputs:         b.Inputs,
		CreateActions:  b.CreateActions,
		UpdateActions:  b.UpdateActions,
		DestroyActions: b.DestroyActions,
		CheckActions:   b.CheckActions,
		Outputs:        b.Outputs,
	}, platform)
}

// Manifest is the desired state: every build and bind keyed by object hash.
type Manifest struct {
	Builds   map[constants.ObjectHash]Build `json:"builds"`
	Bindings map[constants.ObjectHash]Bind  `json:"bindings"`

	// ids tracks the current hash registered under each entity id, for
	// collision detection. Not serialized; rebuilt from Builds/Bindings.
	buildIDs map[constants.EntityID]constants.ObjectHash
	bindIDs  map[constants.EntityID]constants.ObjectHash
}

// New returns an empty manifest ready for registration.
func New() *Manifest {
	return &Manifest{
		Builds:   make(map[constants.ObjectHash]Build),
		Bindings: make(map[constants.ObjectHash]Bind),
		buildIDs: make(map[constants.EntityID]constants.ObjectHash),
		bindIDs:  make(map[constants.EntityID]constants.ObjectHash),
	}
}

// RegisterBuild inserts b (following the dedup/collision rules in the
// package doc) and returns the hash it is now keyed by.
func (m *Manifest) RegisterBuild(b Build, platform constants.Platform, replace bool) (constants.ObjectHash, error) {
	m.ensureIndexes()

	hash, err := b.Hash(platform)
	if err != nil {
		return "", err
	}
	if _, exists := m.Builds[hash]; exists {
		return hash, nil // identical definition already present: idempotent no-op
	}

	if b.ID != "" {
		if existingHash, ok := m.buildIDs[b.ID]; ok && existingHash != hash {
			if !replace {
				existing := m.Builds[existingHash]
				return "", engineerr.NewCollisionError(b.ID, existing.Source, b.Source)
			}
			delete(m.Builds, existingHash)
		}
		m.buildIDs[b.ID] = hash
	}

	m.Builds[hash] = b
	return hash, nil
}

// RegisterBind inserts bind following the same rules as RegisterBuild.
func (m *Manifest) RegisterBind(b Bind, platform constants.Platform, replace bool) (constants.ObjectHash, error) {
	m.ensureIndexes()

	if len(b.UpdateActions) > 0 && b.ID == "" {
		return "", &engineerr.ValidationError{
			Category: engineerr.CategoryValidation,
			Summary:  "bind declares update_actions but has no id",
			Sources:  []engineerr.SourceLocation{b.Source},
		}
	}

	hash, err := b.Hash(platform)
	if err != nil {
		return "", err
	}
	if _, exists := m.Bindings[hash]; exists {
		return hash, nil
	}

	if b.ID != "" {
		if existingHash, ok := m.bindIDs[b.ID]; ok && existingHash != hash {
			if !replace {
				existing := m.Bindings[existingHash]
				return "", engineerr.NewCollisionError(b.ID, existing.Source, b.Source)
			}
			delete(m.Bindings, existingHash)
		}
		m.bindIDs[b.ID] = hash
	}

	m.Bindings[hash] = b
	return hash, nil
}

// ensureIndexes rebuilds the id->hash indexes from Builds/Bindings. It is
// unconditional (not just a nil check) so a Manifest whose Builds/Bindings
// maps were replaced wholesale (e.g. after loading a snapshot) still gets
// correct collision detection on the next registration.
func (m *Manifest) ensureIndexes() {
	m.buildIDs = make(map[constants.EntityID]constants.ObjectHash, len(m.Builds))
	for hash, b := range m.Builds {
		if b.ID != "" {
			m.buildIDs[b.ID] = hash
		}
	}
	m.bindIDs = make(map[constants.EntityID]constants.ObjectHash, len(m.Bindings))
	for hash, b := range m.Bindings {
		if b.ID != "" {
			m.bindIDs[b.ID] = hash
		}
	}
}

// Metadata summarizes a manifest for snapshot persistence.
type Metadata struct {
	BuildCount int `json:"build_count"`
	BindCount  int `json:"bind_count"`
}

// Summary computes the manifest's Metadata.
func (m *Manifest) Summary() Metadata {
	return Metadata{BuildCount: len(m.Builds), BindCount: len(m.Bindings)}
}
