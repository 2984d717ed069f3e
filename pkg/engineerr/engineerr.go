// Package engineerr defines the error taxonomy shared across the store,
// manifest, and apply packages: validation errors, lock contention, action
// failures, rollback failures, and store corruption. Every exported error
// type carries enough structure (category, entity id/hash, source location,
// captured output) for the console package to render a complete failure
// report without re-deriving context from a bare string.
package engineerr

import (
	"fmt"
	"strings"

	"github.com/syslua/syslua/pkg/constants"
)

// Category classifies an error for reporting and for the retry/abort policy
// described by the apply engine.
type Category string

const (
	// CategoryValidation covers pre-execution manifest problems: dangling
	// placeholders, DAG cycles, id collisions, priority conflicts. Fatal,
	// no side effects.
	CategoryValidation Category = "validation"

	// CategoryLock covers store-lock contention or acquisition I/O failure.
	CategoryLock Category = "lock"

	// CategoryAction covers exec/fetch_url failures: non-zero exit,
	// checksum mismatch, unresolvable placeholder at execution time.
	CategoryAction Category = "action"

	// CategoryRollback covers a failure while restoring destroyed binds
	// after an apply abort. Triggers the self-healing protocol.
	CategoryRollback Category = "rollback"

	// CategoryStore covers corrupted snapshots, corrupted bind state, or an
	// unreadable completion marker.
	CategoryStore Category = "store"
)

// SourceLocation identifies where, in configuration source, an entity was
// declared. Populated by the scripting collaborator's debug facility.
type SourceLocation struct {
	File string
	Line int
}

func (s SourceLocation) String() string {
	if s.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

// ValidationError reports a fatal pre-execution manifest problem.
type ValidationError struct {
	Category Category // always CategoryValidation; kept for uniform rendering
	Summary  string
	EntityID constants.EntityID
	Hash     constants.ObjectHash
	Sources  []SourceLocation // one for a single-site error, two for a conflict/collision
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Summary)
	if e.EntityID != "" {
		fmt.Fprintf(&b, " (id=%s)", e.EntityID)
	}
	if e.Hash != "" {
		fmt.Fprintf(&b, " (hash=%s)", e.Hash)
	}
	for _, src := range e.Sources {
		fmt.Fprintf(&b, " [%s]", src)
	}
	return b.String()
}

// NewCollisionError reports two entity definitions sharing an id without
// replace=true.
func NewCollisionError(id constants.EntityID, existing, incoming SourceLocation) *ValidationError {
	return &ValidationError{
		Category: CategoryValidation,
		Summary:  fmt.Sprintf("id %q already registered with a different definition; pass replace=true to override", id),
		EntityID: id,
		Sources:  []SourceLocation{existing, incoming},
	}
}

// NewPriorityConflictError reports two tied, structurally unequal values at
// the same merge priority for the same key.
func NewPriorityConflictError(key string, a, b SourceLocation) *ValidationError {
	return &ValidationError{
		Category: CategoryValidation,
		Summary:  fmt.Sprintf("priority conflict on key %q: tied values are not structurally equal", key),
		Sources:  []SourceLocation{a, b},
	}
}

// NewCycleError reports a cycle in the placeholder dependency DAG.
func NewCycleError(chain []constants.ObjectHash) *ValidationError {
	names := make([]string, len(chain))
	for i, h := range chain {
		names[i] = h.String()
	}
	return &ValidationError{
		Category: CategoryValidation,
		Summary:  fmt.Sprintf("dependency cycle detected: %s", strings.Join(names, " -> ")),
	}
}

// NewDanglingPlaceholderError reports a placeholder that does not resolve to
// any manifest entry or known store path.
func NewDanglingPlaceholderError(placeholder string, owner constants.ObjectHash, src SourceLocation) *ValidationError {
	return &ValidationError{
		Category: CategoryValidation,
		Summary:  fmt.Sprintf("unresolvable placeholder %q", placeholder),
		Hash:     owner,
		Sources:  []SourceLocation{src},
	}
}

// LockError reports contention for, or failure to acquire, the store lock.
type LockError struct {
	Mode         constants.LockMode
	HolderPID    int
	HolderCmd    string
	HolderStart  string
	IOErr        error
	StorePath    string
}

func (e *LockError) Error() string {
	if e.IOErr != nil {
		return fmt.Sprintf("failed to acquire %s lock on %s: %v", e.Mode, e.StorePath, e.IOErr)
	}
	return fmt.Sprintf(
		"cannot acquire %s lock on %s: held by pid %d (%s), started %s; remove %s/%s if no such process is running",
		e.Mode, e.StorePath, e.HolderPID, e.HolderCmd, e.HolderStart, e.StorePath, constants.LockFileName,
	)
}

func (e *LockError) Unwrap() error { return e.IOErr }

// ActionError reports a failed exec or fetch_url action. Fatal for the
// owning entity.
type ActionError struct {
	Kind        constants.ActionKind
	EntityHash  constants.ObjectHash
	ActionIndex int
	ExitCode    int
	StdoutTail  string
	StderrTail  string
	Cause       error // set for checksum mismatch / I/O / unresolvable placeholder
}

func (e *ActionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s action %d failed for %s", e.Kind, e.ActionIndex, e.EntityHash)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	} else {
		fmt.Fprintf(&b, ": exit status %d", e.ExitCode)
	}
	if e.StderrTail != "" {
		fmt.Fprintf(&b, "\nstderr: %s", e.StderrTail)
	}
	return b.String()
}

func (e *ActionError) Unwrap() error { return e.Cause }

// RollbackError reports a failure while restoring destroyed binds after an
// apply abort. The original error that triggered rollback remains the
// user-visible cause; this wraps it with what went wrong during recovery.
type RollbackError struct {
	OriginalErr error
	RestoreErr  error
	SelfHealed  bool // true once the current pointer has been cleared
}

func (e *RollbackError) Error() string {
	status := "rollback failed"
	if e.SelfHealed {
		status = "rollback failed, cleared current snapshot pointer (self-healing)"
	}
	return fmt.Sprintf("%s: original error: %v; restore error: %v", status, e.OriginalErr, e.RestoreErr)
}

func (e *RollbackError) Unwrap() error { return e.OriginalErr }

// StoreError reports corrupted or unreadable on-disk state. Non-fatal in
// bulk operations like GC, which logs and skips the offending item rather
// than deleting it.
type StoreError struct {
	Category Category // always CategoryStore
	Path     string
	Cause    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("corrupted store state at %s: %v", e.Path, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// NewStoreError wraps a read/parse failure encountered while loading
// persisted state (a snapshot, bind state.json, or the lock file).
func NewStoreError(path string, cause error) *StoreError {
	return &StoreError{Category: CategoryStore, Path: path, Cause: cause}
}
