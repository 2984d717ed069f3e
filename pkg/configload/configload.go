// Package configload reads a manifest's static, declarative definition from
// a TOML config entrypoint (§6.1's "config entrypoint") and drives it
// through pkg/luahost the same way an embedded scripting runtime would: one
// register_build/register_bind call per declared entity. It stands in for
// the scripting runtime §1's Non-goals explicitly keep out of this repo's
// scope.
package configload

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/syslua/syslua/pkg/action"
	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/luahost"
	"github.com/syslua/syslua/pkg/manifest"
)

// ActionDecl is one step of a build's or bind's action list.
type ActionDecl struct {
	Kind constants.ActionKind `toml:"kind"`

	// exec
	Bin  string            `toml:"bin"`
	Args []string          `toml:"args"`
	Env  map[string]string `toml:"env"`
	Cwd  string            `toml:"cwd"`

	// fetch_url
	URL    string `toml:"url"`
	SHA256 string `toml:"sha256"`
}

func (d ActionDecl) toAction() (action.Action, error) {
	switch d.Kind {
	case constants.ActionKindExec:
		return action.NewExec(d.Bin, d.Args, d.Env, d.Cwd), nil
	case constants.ActionKindFetchURL:
		return action.NewFetchURL(d.URL, d.SHA256), nil
	default:
		return action.Action{}, fmt.Errorf("configload: unknown action kind %q", d.Kind)
	}
}

func toActions(decls []ActionDecl) ([]action.Action, error) {
	actions := make([]action.Action, len(decls))
	for i, d := range decls {
		a, err := d.toAction()
		if err != nil {
			return nil, err
		}
		actions[i] = a
	}
	return actions, nil
}

// BuildDecl is the declarative shape of one register_build call.
type BuildDecl struct {
	ID            string            `toml:"id"`
	Inputs        map[string]any    `toml:"inputs"`
	CreateActions []ActionDecl      `toml:"create_actions"`
	Outputs       map[string]string `toml:"outputs"`
	Replace       bool              `toml:"replace"`
}

// BindDecl is the declarative shape of one register_bind call.
type BindDecl struct {
	ID             string         `toml:"id"`
	Inputs         map[string]any `toml:"inputs"`
	CreateActions  []ActionDecl   `toml:"create_actions"`
	UpdateActions  []ActionDecl   `toml:"update_actions"`
	DestroyActions []ActionDecl   `toml:"destroy_actions"`
	CheckActions   []ActionDecl   `toml:"check_actions"`
	Outputs        map[string]any `toml:"outputs"`
	Replace        bool           `toml:"replace"`
}

// File is the top-level shape of a config entrypoint.
type File struct {
	Builds []BuildDecl `toml:"builds"`
	Binds  []BindDecl  `toml:"binds"`
}

// Load parses path and registers every declared build and bind, in file
// order, into a fresh manifest via pkg/luahost.Collaborator.
func Load(path string, platform constants.Platform, elevated bool) (*manifest.Manifest, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("configload: parsing %s: %w", path, err)
	}

	m := manifest.New()
	host := luahost.New(m, platform, elevated)

	for _, b := range f.Builds {
		creates, err := toActions(b.CreateActions)
		if err != nil {
			return nil, fmt.Errorf("configload: build %q: %w", b.ID, err)
		}
		_, err = host.RegisterBuild(luahost.BuildSpec{
			ID:     constants.EntityID(b.ID),
			Inputs: b.Inputs,
			Actions: manifest.Build{
				CreateActions: creates,
				Outputs:       b.Outputs,
			},
			Replace: b.Replace,
		})
		if err != nil {
			return nil, fmt.Errorf("configload: build %q: %w", b.ID, err)
		}
	}

	for _, b := range f.Binds {
		creates, err := toActions(b.CreateActions)
		if err != nil {
			return nil, fmt.Errorf("configload: bind %q: %w", b.ID, err)
		}
		updates, err := toActions(b.UpdateActions)
		if err != nil {
			return nil, fmt.Errorf("configload: bind %q: %w", b.ID, err)
		}
		destroys, err := toActions(b.DestroyActions)
		if err != nil {
			return nil, fmt.Errorf("configload: bind %q: %w", b.ID, err)
		}
		checks, err := toActions(b.CheckActions)
		if err != nil {
			return nil, fmt.Errorf("configload: bind %q: %w", b.ID, err)
		}
		_, err = host.RegisterBind(luahost.BindSpec{
			ID:     constants.EntityID(b.ID),
			Inputs: b.Inputs,
			Actions: manifest.Bind{
				CreateActions:  creates,
				UpdateActions:  updates,
				DestroyActions: destroys,
				CheckActions:   checks,
				Outputs:        b.Outputs,
			},
			Replace: b.Replace,
		})
		if err != nil {
			return nil, fmt.Errorf("configload: bind %q: %w", b.ID, err)
		}
	}

	return m, nil
}
