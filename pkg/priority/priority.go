// Package priority implements the priority/merge algebra consumed by
// configuration modules to combine repeated calls into one accumulated
// table: force/before/default/after wrapping, mergeable list concatenation,
// recursive merge of nested tables, and priority-conflict detection between
// structurally unequal values tied at the same priority.
package priority

import (
	"reflect"
	"sort"
	"strings"

	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
)

// Value is a single contribution to a table key: a value tagged with its
// priority, whether it is mergeable (a list to be concatenated rather than
// compared), and where it was declared.
type Value struct {
	Value     any
	Priority  constants.Priority
	Mergeable bool
	// Separator joins mergeable list elements when flattened to a string
	// (e.g. ":" for PATH-like variables). Ignored for non-mergeable values.
	Separator string
	Source    engineerr.SourceLocation
}

// Wrap returns an unwrapped default-priority value, per "unwrapped values
// have priority 1000".
func Wrap(v any, src engineerr.SourceLocation) Value {
	return Value{Value: v, Priority: constants.PriorityDefault, Source: src}
}

// Force returns v at PriorityForce.
func Force(v any, src engineerr.SourceLocation) Value {
	return Value{Value: v, Priority: constants.PriorityForce, Source: src}
}

// Before returns v at PriorityBefore.
func Before(v any, src engineerr.SourceLocation) Value {
	return Value{Value: v, Priority: constants.PriorityBefore, Source: src}
}

// After returns v at PriorityAfter.
func After(v any, src engineerr.SourceLocation) Value {
	return Value{Value: v, Priority: constants.PriorityAfter, Source: src}
}

// Mergeable returns a mergeable list contribution. Mergeables never
// conflict with each other regardless of priority; they are concatenated in
// ascending-priority order.
func Mergeable(items []any, separator string, priority constants.Priority, src engineerr.SourceLocation) Value {
	return Value{Value: items, Priority: priority, Mergeable: true, Separator: separator, Source: src}
}

// Table maps keys to the set of contributions declared for them, preserved
// across merges so a mergeable key can keep accumulating.
type Table map[string][]Value

// Merge combines a and b into a new table following the merge rules: for
// each key, mergeable contributions from both sides concatenate regardless
// of priority; otherwise contributions are compared by priority and the
// unique lowest-priority value wins, a tie among structurally unequal
// values is a hard error, and nested Table values merge recursively.
func Merge(a, b Table) (Table, error) {
	out := make(Table, len(a)+len(b))
	keys := make(map[string]bool, len(a)+len(b))
	for k := range a {
		keys[k] = true
	}
	for k := range b {
		keys[k] = true
	}

	for key := range keys {
		merged, err := mergeKey(key, a[key], b[key])
		if err != nil {
			return nil, err
		}
		out[key] = merged
	}
	return out, nil
}

func mergeKey(key string, a, b []Value) ([]Value, error) {
	all := make([]Value, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)

	anyMergeable := false
	for _, v := range all {
		if v.Mergeable {
			anyMergeable = true
			break
		}
	}
	if anyMergeable {
		// Mergeables accumulate regardless of priority; non-mergeable
		// contributions at this key (if any) are folded in too, ordered by
		// priority alongside the mergeable entries.
		sorted := append([]Value(nil), all...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
		return sorted, nil
	}

	if len(all) == 0 {
		return nil, nil
	}
	if len(all) == 1 {
		return all, nil
	}

	// Check for nested Table values: merge recursively instead of comparing
	// for a priority winner.
	if nestedA, ok := asTable(a); ok {
		if nestedB, ok := asTable(b); ok {
			merged, err := Merge(nestedA, nestedB)
			if err != nil {
				return nil, err
			}
			return []Value{{Value: merged, Priority: constants.PriorityDefault}}, nil
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Priority < all[j].Priority })
	winningPriority := all[0].Priority

	var tied []Value
	for _, v := range all {
		if v.Priority == winningPriority {
			tied = append(tied, v)
		}
	}
	if len(tied) == 1 {
		return []Value{tied[0]}, nil
	}
	for i := 1; i < len(tied); i++ {
		if !structurallyEqual(tied[0].Value, tied[i].Value) {
			return nil, engineerr.NewPriorityConflictError(key, tied[0].Source, tied[i].Source)
		}
	}
	return []Value{tied[0]}, nil
}

func asTable(vs []Value) (Table, bool) {
	if len(vs) != 1 {
		return nil, false
	}
	t, ok := vs[0].Value.(Table)
	return t, ok
}

func structurallyEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// Flatten reduces a key's accumulated contributions to a single value: for
// a mergeable key, the ascending-priority concatenation (joined by the
// first non-empty separator seen, or unjoined into a slice if none is set);
// for a plain key, the sole surviving value after Merge resolved the
// conflict.
func (t Table) Flatten(key string) (any, bool) {
	vs, ok := t[key]
	if !ok || len(vs) == 0 {
		return nil, false
	}

	anyMergeable := false
	for _, v := range vs {
		if v.Mergeable {
			anyMergeable = true
			break
		}
	}
	if !anyMergeable {
		return vs[0].Value, true
	}

	sorted := append([]Value(nil), vs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	var items []any
	separator := ""
	for _, v := range sorted {
		if v.Separator != "" && separator == "" {
			separator = v.Separator
		}
		if list, ok := v.Value.([]any); ok {
			items = append(items, list...)
		} else {
			items = append(items, v.Value)
		}
	}

	if separator == "" {
		return items, true
	}
	parts := make([]string, len(items))
	for i, item := range items {
		if s, ok := item.(string); ok {
			parts[i] = s
		}
	}
	return strings.Join(parts, separator), true
}
