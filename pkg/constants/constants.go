package constants

import "time"

// ObjectHashLength is the fixed truncation length, in hex characters, of the
// SHA-256 object hash used as the primary key of builds and binds. The same
// length is used everywhere a hash is printed or parsed.
const ObjectHashLength = 20

// Semantic types for store identifiers and timing values.
//
// These named types give primitive types a name that documents intent at
// call sites and keeps values that should never be interchanged (an object
// hash and an arbitrary string, say) from drifting together by accident.

// ObjectHash is a truncated SHA-256 hash identifying a build or bind.
type ObjectHash string

// String returns the string representation of the object hash.
func (h ObjectHash) String() string {
	return string(h)
}

// IsValid reports whether the hash has the expected length and is lowercase hex.
func (h ObjectHash) IsValid() bool {
	if len(h) != ObjectHashLength {
		return false
	}
	for _, c := range h {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// EntityID is an author-declared identifier for a build or bind, used for
// collision detection and the accumulation/replace pattern.
type EntityID string

// String returns the string representation of the entity id.
func (e EntityID) String() string {
	return string(e)
}

// IsValid returns true if the entity id is non-empty.
func (e EntityID) IsValid() bool {
	return len(e) > 0
}

// SnapshotID identifies a persisted snapshot of a manifest.
type SnapshotID string

// String returns the string representation of the snapshot id.
func (s SnapshotID) String() string {
	return string(s)
}

// IsValid returns true if the snapshot id is non-empty.
func (s SnapshotID) IsValid() bool {
	return len(s) > 0
}

// Priority is a merge-algebra priority. Lower numbers win.
type Priority int

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityForce:
		return "force"
	case PriorityBefore:
		return "before"
	case PriorityDefault:
		return "default"
	case PriorityAfter:
		return "after"
	default:
		return "custom"
	}
}

// IsValid returns true for any representable priority; priorities are not
// bounded the way hashes or ids are, so this always returns true. Defined for
// parity with the other semantic types in this package.
func (p Priority) IsValid() bool {
	return true
}

// Named priority levels for the merge algebra. Lower wins; unwrapped values
// carry PriorityDefault.
const (
	PriorityForce   Priority = 50
	PriorityBefore  Priority = 500
	PriorityDefault Priority = 1000
	PriorityAfter   Priority = 1500
)

// Platform identifies an <arch>-<os> triple folded into every object hash so
// that the same logical package built on two platforms never collides.
type Platform string

// String returns the string representation of the platform triple.
func (p Platform) String() string {
	return string(p)
}

// IsValid returns true if the platform triple is non-empty.
func (p Platform) IsValid() bool {
	return len(p) > 0
}

// Store layout segment names, relative to the store root.
const (
	// LockFileName is the advisory lock file at the store root.
	LockFileName = ".lock"

	// BuildDirName is the directory holding realized build outputs, keyed by hash.
	BuildDirName = "build"

	// BindDirName is the directory holding last-observed bind state, keyed by hash.
	BindDirName = "bind"

	// SnapshotsDirName holds the snapshot index and individual snapshot files.
	SnapshotsDirName = "snapshots"

	// SnapshotIndexFileName is the ordered list of snapshots plus the current pointer.
	SnapshotIndexFileName = "index.json"

	// BindStateFileName holds a bind's last-observed outputs.
	BindStateFileName = "state.json"

	// CompletionMarkerName is written last, after all create_actions succeed
	// and after immutability is imposed. A build directory lacking this
	// marker is incomplete and must be rebuilt or reclaimed.
	CompletionMarkerName = ".syslua-complete"

	// InputsCacheDirName is the content-addressed cache for fetch_url results,
	// kept separate from the build/bind store proper.
	InputsCacheDirName = "inputs-cache"

	// InputsLockFileName is the external fragment-resolver's lock file, read
	// (never written) by GC to determine which inputs-cache entries are still
	// reachable.
	InputsLockFileName = "inputs.lock.json"
)

// SnapshotIndexVersion is the schema version written into snapshots/index.json.
const SnapshotIndexVersion = 1

// LockFileVersion is the schema version written into the lock file's metadata
// when held exclusively.
const LockFileVersion = 1

// BindStateVersion is the schema version written into bind/<hash>/state.json.
const BindStateVersion = 1

// Environment variable names recognized by storepath configuration resolution.
const (
	// EnvStoreRoot selects the primary store root.
	EnvStoreRoot = "SYSLUA_STORE"

	// EnvParentStore selects an optional read-only parent store for layering.
	EnvParentStore = "SYSLUA_PARENT_STORE"

	// EnvDebug enables verbose component tracing via pkg/logger.
	EnvDebug = "SYSLUA_DEBUG"

	// EnvMaxWorkers bounds wave parallelism; unset falls back to NumCPU clamped
	// to [MinWaveWorkers, MaxWaveWorkers].
	EnvMaxWorkers = "SYSLUA_MAX_WORKERS"

	// EnvInputsCacheDir overrides the content-addressed cache used by
	// fetch_url and swept by GC against the inputs lock file.
	EnvInputsCacheDir = "SYSLUA_INPUTS_CACHE"

	// EnvInputsLock points GC at the external fragment-resolver's lock file.
	// Unset disables inputs-cache sweeping entirely (GC still sweeps
	// build/bind).
	EnvInputsLock = "SYSLUA_INPUTS_LOCK"
)

// Wave-parallelism bounds applied when resolving SYSLUA_MAX_WORKERS or the
// runtime.NumCPU() default.
const (
	MinWaveWorkers = 1
	MaxWaveWorkers = 64
)

// HermeticPath is the PATH value given to exec actions whose caller supplies
// no PATH of their own, guaranteeing no accidental inheritance of the host's
// search path.
const HermeticPath = "/path-not-set"

// Default byte bound on the in-memory buffer used to capture an action's
// stdout for $${action:<index>} placeholder resolution.
const DefaultActionOutputCaptureLimit = 1 << 20 // 1 MiB

// DefaultStderrTailLength is the number of trailing bytes of stderr retained
// in a failure report.
const DefaultStderrTailLength = 4096

// DefaultLockWaitPollInterval is a poll interval for waiting on the store
// lock. Nothing in this module reads it: Acquire never blocks, and no
// command retries a failed acquire.
const DefaultLockWaitPollInterval = 200 * time.Millisecond

// FetchURL retry policy: transient failures (connection errors, any response
// status other than 200) are retried with exponential backoff before the action is
// reported as failed. A checksum mismatch is never retried — it indicates a
// wrong declared hash or tampered content, not a transient condition.
const (
	MaxFetchRetries     = 4
	FetchRetryBaseDelay = 250 * time.Millisecond
	FetchRetryMaxDelay  = 8 * time.Second
)

// Placeholder language prefixes recognized during resolution.
const (
	PlaceholderOut    = "out"
	PlaceholderBuild  = "build"
	PlaceholderBind   = "bind"
	PlaceholderAction = "action"
)

// MaxPlaceholderResolutionDepth bounds the recursive fixed-point resolution
// of nested placeholders; exceeding it is treated as a cycle.
const MaxPlaceholderResolutionDepth = 64

// CLIExtensionPrefix is the prefix used in user-facing output to refer to the CLI.
const CLIExtensionPrefix CommandPrefix = "syslua"

// CommandPrefix represents a CLI command prefix.
type CommandPrefix string

// String returns the string representation of the command prefix.
func (c CommandPrefix) String() string {
	return string(c)
}

// IsValid returns true if the command prefix is non-empty.
func (c CommandPrefix) IsValid() bool {
	return len(c) > 0
}

// ActionKind distinguishes the two action types an entity may declare.
type ActionKind string

// String returns the string representation of the action kind.
func (a ActionKind) String() string {
	return string(a)
}

// IsValid returns true if the action kind is one of the known kinds.
func (a ActionKind) IsValid() bool {
	return a == ActionKindExec || a == ActionKindFetchURL
}

const (
	// ActionKindExec runs a hermetic subprocess.
	ActionKindExec ActionKind = "exec"
	// ActionKindFetchURL downloads and checksum-verifies a URL into the inputs cache.
	ActionKindFetchURL ActionKind = "fetch_url"
)

// LockMode distinguishes shared (read-only) and exclusive (mutating) store locks.
type LockMode string

// String returns the string representation of the lock mode.
func (l LockMode) String() string {
	return string(l)
}

// IsValid returns true if the lock mode is one of the known modes.
func (l LockMode) IsValid() bool {
	return l == LockModeShared || l == LockModeExclusive
}

const (
	LockModeShared    LockMode = "shared"
	LockModeExclusive LockMode = "exclusive"
)
