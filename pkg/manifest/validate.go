package manifest

import (
	"encoding/json"

	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
	"github.com/syslua/syslua/pkg/placeholder"
)

// Validate checks that every $${build:hash:...} / $${bind:hash:...} reference
// reachable from an action's fields resolves to an entry present in the
// manifest. A dangling reference is a hard error at validation time, not
// apply time.
func (m *Manifest) Validate() error {
	for hash, b := range m.Builds {
		if err := m.checkRefs(b.CreateActions, hash, b.Source); err != nil {
			return err
		}
		if err := m.checkRefs(b.Outputs, hash, b.Source); err != nil {
			return err
		}
	}
	for hash, b := range m.Bindings {
		if err := m.checkRefs(b.CreateActions, hash, b.Source); err != nil {
			return err
		}
		if err := m.checkRefs(b.UpdateActions, hash, b.Source); err != nil {
			return err
		}
		if err := m.checkRefs(b.DestroyActions, hash, b.Source); err != nil {
			return err
		}
		if err := m.checkRefs(b.CheckActions, hash, b.Source); err != nil {
			return err
		}
		if err := m.checkRefs(b.Outputs, hash, b.Source); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manifest) checkRefs(actions any, owner constants.ObjectHash, src engineerr.SourceLocation) error {
	raw, err := json.Marshal(actions)
	if err != nil {
		return err
	}
	for _, ref := range placeholder.References(string(raw)) {
		if _, okBuild := m.Builds[ref]; okBuild {
			continue
		}
		if _, okBind := m.Bindings[ref]; okBind {
			continue
		}
		return engineerr.NewDanglingPlaceholderError(string(ref), owner, src)
	}
	return nil
}
