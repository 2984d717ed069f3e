package apply

import (
	"fmt"
	"sync"

	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/placeholder"
)

// ResultStore is the shared, concurrency-safe resolver backing for a wave
// execution: completed builds' store paths and output templates, and
// completed (or carried-over) binds' persisted outputs. Reads vastly
// dominate writes, so a RWMutex is used per §5's resource model.
type ResultStore struct {
	mu              sync.RWMutex
	buildDirs       map[constants.ObjectHash]string
	buildOutputsRaw map[constants.ObjectHash]map[string]string
	bindOutputs     map[constants.ObjectHash]map[string]any
}

// NewResultStore returns an empty ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{
		buildDirs:       make(map[constants.ObjectHash]string),
		buildOutputsRaw: make(map[constants.ObjectHash]map[string]string),
		bindOutputs:     make(map[constants.ObjectHash]map[string]any),
	}
}

// RecordBuild registers a completed build's realized directory and its
// (unresolved) output templates, making it available to downstream waves.
func (rs *ResultStore) RecordBuild(hash constants.ObjectHash, dir string, outputs map[string]string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.buildDirs[hash] = dir
	rs.buildOutputsRaw[hash] = outputs
}

// RecordBind registers a bind's resolved outputs, whether newly applied in
// this wave or carried over unchanged from persisted state.
func (rs *ResultStore) RecordBind(hash constants.ObjectHash, outputs map[string]any) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.bindOutputs[hash] = outputs
}

// BuildOutput resolves the named output of build hash to its absolute store
// path, recursively resolving any placeholders the output template itself
// contains.
func (rs *ResultStore) BuildOutput(hash constants.ObjectHash, name string) (string, error) {
	rs.mu.RLock()
	dir, dirOK := rs.buildDirs[hash]
	tmpl, tmplOK := rs.buildOutputsRaw[hash][name]
	rs.mu.RUnlock()
	if !dirOK {
		return "", fmt.Errorf("build %s is not available to resolve outputs from", hash)
	}
	if !tmplOK {
		return "", fmt.Errorf("build %s has no output named %q", hash, name)
	}
	return placeholder.Resolve(tmpl, hash, &buildOutputResolver{rs: rs, dir: dir})
}

// BindOutput returns a bind's named, already-resolved output value.
func (rs *ResultStore) BindOutput(hash constants.ObjectHash, name string) (string, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	outs, ok := rs.bindOutputs[hash]
	if !ok {
		return "", fmt.Errorf("bind %s is not available to resolve outputs from", hash)
	}
	v, ok := outs[name]
	if !ok {
		return "", fmt.Errorf("bind %s has no output named %q", hash, name)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", v), nil
}

// buildOutputResolver resolves a single build's output template, scoped so
// $${out} refers to that build's own directory.
type buildOutputResolver struct {
	rs  *ResultStore
	dir string
}

func (b *buildOutputResolver) OutDir() (string, error) { return b.dir, nil }
func (b *buildOutputResolver) BuildOutput(hash constants.ObjectHash, name string) (string, error) {
	return b.rs.BuildOutput(hash, name)
}
func (b *buildOutputResolver) BindOutput(hash constants.ObjectHash, name string) (string, error) {
	return b.rs.BindOutput(hash, name)
}
func (b *buildOutputResolver) ActionResult(int) (string, error) {
	return "", fmt.Errorf("action results are not available while resolving output templates")
}

// entityResolver is the per-node resolver used while running an entity's
// actions: $${out} is the entity's own working directory, $${action:i} reads
// back the stdout of an already-completed action within the same entity,
// and cross-entity references delegate to the shared ResultStore.
type entityResolver struct {
	rs            *ResultStore
	outDir        string
	actionResults []string
}

func (e *entityResolver) OutDir() (string, error) { return e.outDir, nil }

func (e *entityResolver) BuildOutput(hash constants.ObjectHash, name string) (string, error) {
	return e.rs.BuildOutput(hash, name)
}

func (e *entityResolver) BindOutput(hash constants.ObjectHash, name string) (string, error) {
	return e.rs.BindOutput(hash, name)
}

func (e *entityResolver) ActionResult(index int) (string, error) {
	if index < 0 || index >= len(e.actionResults) {
		return "", fmt.Errorf("action %d has not completed yet", index)
	}
	return e.actionResults[index], nil
}

func (e *entityResolver) recordActionResult(stdout string) {
	e.actionResults = append(e.actionResults, stdout)
}
