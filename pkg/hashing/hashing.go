// Package hashing computes the object hash that keys every build and bind:
// a SHA-256 over a canonical encoding of the entity's semantic fields plus
// the platform triple, truncated to constants.ObjectHashLength hex
// characters. encoding/json already serializes map[string]T keys in sorted
// order, which is what "canonical encoding sorts mapping keys" requires; the
// non-semantic fields it excludes (source locations, hash-dependent file
// paths) are kept out of the hash input struct by the caller, not by this
// package.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/syslua/syslua/pkg/constants"
)

// CurrentPlatform returns the <arch>-<os> triple for the running process.
func CurrentPlatform() constants.Platform {
	return constants.Platform(fmt.Sprintf("%s-%s", runtime.GOARCH, runtime.GOOS))
}

// Canonical marshals v to its canonical JSON encoding. v must not contain
// non-semantic fields (source locations, output-relative paths derived from
// the hash itself) — the caller is responsible for presenting a view struct
// that excludes them.
func Canonical(v any) ([]byte, error) {
	return json.Marshal(v)
}

// ObjectHash computes the truncated SHA-256 object hash of v for the given
// platform. v is typically a hash-input view of a Build or Bind: the
// subset of fields that participate in identity.
func ObjectHash(v any, platform constants.Platform) (constants.ObjectHash, error) {
	canonical, err := Canonical(v)
	if err != nil {
		return "", fmt.Errorf("hashing: canonical encoding failed: %w", err)
	}

	h := sha256.New()
	h.Write(canonical)
	h.Write([]byte{0}) // separator so a definition can never forge a platform suffix
	h.Write([]byte(platform))

	sum := hex.EncodeToString(h.Sum(nil))
	return constants.ObjectHash(sum[:constants.ObjectHashLength]), nil
}
