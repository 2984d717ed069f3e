// Package placeholder implements the textual placeholder language embedded
// in action arguments, output values, and inputs: $${out}, $${build:hash:name},
// $${bind:hash:name}, and $${action:index}. Resolution is recursive to a fixed
// point, with a depth bound standing in for cycle detection.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
)

var token = regexp.MustCompile(`\$\$\{([a-z]+)(?::([^:}]+):([^}]+)|:([^}]+))?\}`)

// Resolver supplies the values a placeholder resolves to. Owner identifies
// the entity the string being resolved belongs to, for error reporting.
type Resolver interface {
	// OutDir returns the output directory of the enclosing build.
	OutDir() (string, error)
	// BuildOutput returns the named output of another build.
	BuildOutput(hash constants.ObjectHash, name string) (string, error)
	// BindOutput returns a named output from a bind's persisted state.
	BindOutput(hash constants.ObjectHash, name string) (string, error)
	// ActionResult returns the captured stdout of the i-th already-executed
	// action within the same entity.
	ActionResult(index int) (string, error)
}

// Resolve expands every placeholder in s using r, repeating until no
// placeholder remains (a fixed point) or constants.MaxPlaceholderResolutionDepth
// is reached, which is treated as a cycle.
func Resolve(s string, owner constants.ObjectHash, r Resolver) (string, error) {
	current := s
	seen := map[string]bool{current: true}

	for depth := 0; depth < constants.MaxPlaceholderResolutionDepth; depth++ {
		if !token.MatchString(current) {
			return current, nil
		}

		var resolveErr error
		next := token.ReplaceAllStringFunc(current, func(match string) string {
			if resolveErr != nil {
				return match
			}
			replacement, err := resolveOne(match, owner, r)
			if err != nil {
				resolveErr = err
				return match
			}
			return replacement
		})
		if resolveErr != nil {
			return "", resolveErr
		}
		if seen[next] {
			// The same intermediate string reappeared: expansion is cycling
			// rather than converging.
			return "", engineerr.NewDanglingPlaceholderError(s, owner, engineerr.SourceLocation{})
		}
		seen[next] = true
		current = next
	}
	return "", engineerr.NewDanglingPlaceholderError(s, owner, engineerr.SourceLocation{})
}

func resolveOne(match string, owner constants.ObjectHash, r Resolver) (string, error) {
	sub := token.FindStringSubmatch(match)
	if sub == nil {
		return match, nil
	}
	kind := sub[1]

	switch kind {
	case constants.PlaceholderOut:
		dir, err := r.OutDir()
		if err != nil {
			return "", wrapUnresolvable(match, owner, err)
		}
		return dir, nil

	case constants.PlaceholderBuild, constants.PlaceholderBind:
		hashPart, namePart := sub[2], sub[3]
		if hashPart == "" || namePart == "" {
			return "", wrapUnresolvable(match, owner, fmt.Errorf("malformed placeholder %q: expected %s:<hash>:<name>", match, kind))
		}
		hash := constants.ObjectHash(hashPart)
		var value string
		var err error
		if kind == constants.PlaceholderBuild {
			value, err = r.BuildOutput(hash, namePart)
		} else {
			value, err = r.BindOutput(hash, namePart)
		}
		if err != nil {
			return "", wrapUnresolvable(match, owner, err)
		}
		return value, nil

	case constants.PlaceholderAction:
		idxStr := sub[4]
		idx, err := strconv.Atoi(strings.TrimSpace(idxStr))
		if err != nil {
			return "", wrapUnresolvable(match, owner, fmt.Errorf("malformed action index %q", idxStr))
		}
		value, err := r.ActionResult(idx)
		if err != nil {
			return "", wrapUnresolvable(match, owner, err)
		}
		return value, nil

	default:
		return "", wrapUnresolvable(match, owner, fmt.Errorf("unknown placeholder kind %q", kind))
	}
}

func wrapUnresolvable(match string, owner constants.ObjectHash, cause error) error {
	return &engineerr.ActionError{
		EntityHash: owner,
		Cause:      fmt.Errorf("unresolvable placeholder %s: %w", match, cause),
	}
}

// References extracts the set of object hashes textually referenced by
// $${build:hash:...} or $${bind:hash:...} tokens in s. Used by the apply
// engine to build dependency edges via a substring scan, per the spec's
// closed-dependency-set requirement.
func References(s string) []constants.ObjectHash {
	var refs []constants.ObjectHash
	for _, sub := range token.FindAllStringSubmatch(s, -1) {
		kind := sub[1]
		if kind != constants.PlaceholderBuild && kind != constants.PlaceholderBind {
			continue
		}
		if sub[2] != "" {
			refs = append(refs, constants.ObjectHash(sub[2]))
		}
	}
	return refs
}
