// Package luahost defines the narrow interface an embedded configuration
// runtime uses to build a manifest (§6.1: "core ← scripting"). It is a stub
// collaborator: the Go-side call shapes a real scripting host would drive,
// plus Collaborator, a trivial in-process implementation that lets the rest
// of the engine be driven and tested without one. It is not, and does not become, a language runtime.
package luahost

import (
	"fmt"

	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
	"github.com/syslua/syslua/pkg/manifest"
)

// BuildSpec is what register_build(spec) receives from the scripting side.
type BuildSpec struct {
	ID      constants.EntityID
	Inputs  map[string]any
	Actions manifest.Build // CreateActions/Outputs read from here; ID/Inputs ignored in favor of the fields above
	Replace bool
	Source  engineerr.SourceLocation
}

// BindSpec is what register_bind(spec) receives from the scripting side.
type BindSpec struct {
	ID      constants.EntityID
	Inputs  map[string]any
	Actions manifest.Bind // Create/Update/Destroy/Check actions and Outputs read from here
	Replace bool
	Source  engineerr.SourceLocation
}

// BuildRef is the handle returned to the scripting side: a name -> placeholder
// expression map, one entry per output the build declared.
type BuildRef struct {
	Hash    constants.ObjectHash
	Outputs map[string]string
}

// BindRef is the bind analogue of BuildRef.
type BindRef struct {
	Hash    constants.ObjectHash
	Outputs map[string]string
}

// Host is what an embedded configuration runtime is handed to build a
// manifest. Collaborator is the only production implementation; tests may
// substitute their own.
type Host interface {
	RegisterBuild(spec BuildSpec) (BuildRef, error)
	RegisterBind(spec BindSpec) (BindRef, error)
	Platform() constants.Platform
	Elevated() bool
}

// Collaborator implements Host over a manifest under construction. One
// Collaborator corresponds to one configuration evaluation.
type Collaborator struct {
	Manifest *manifest.Manifest
	platform constants.Platform
	elevated bool
}

// New returns a Collaborator that registers builds and binds into m for
// the given platform.
func New(m *manifest.Manifest, platform constants.Platform, elevated bool) *Collaborator {
	return &Collaborator{Manifest: m, platform: platform, elevated: elevated}
}

func (c *Collaborator) Platform() constants.Platform { return c.platform }
func (c *Collaborator) Elevated() bool               { return c.elevated }

// RegisterBuild hashes and inserts spec.Actions as a Build, returning a
// BuildRef whose Outputs are placeholder strings (§6.1: "a handle whose
// outputs field exposes placeholder strings, not live values").
func (c *Collaborator) RegisterBuild(spec BuildSpec) (BuildRef, error) {
	b := spec.Actions
	b.ID = spec.ID
	b.Inputs = spec.Inputs
	b.Source = spec.Source

	hash, err := c.Manifest.RegisterBuild(b, c.platform, spec.Replace)
	if err != nil {
		return BuildRef{}, err
	}

	outputs := make(map[string]string, len(b.Outputs))
	for name := range b.Outputs {
		outputs[name] = fmt.Sprintf("$${%s:%s:%s}", constants.PlaceholderBuild, hash, name)
	}
	return BuildRef{Hash: hash, Outputs: outputs}, nil
}

// RegisterBind hashes and inserts spec.Actions as a Bind, returning a
// BindRef the same way RegisterBuild does.
func (c *Collaborator) RegisterBind(spec BindSpec) (BindRef, error) {
	b := spec.Actions
	b.ID = spec.ID
	b.Inputs = spec.Inputs
	b.Source = spec.Source

	hash, err := c.Manifest.RegisterBind(b, c.platform, spec.Replace)
	if err != nil {
		return BindRef{}, err
	}

	outputs := make(map[string]string, len(b.Outputs))
	for name := range b.Outputs {
		outputs[name] = fmt.Sprintf("$${%s:%s:%s}", constants.PlaceholderBind, hash, name)
	}
	return BindRef{Hash: hash, Outputs: outputs}, nil
}
