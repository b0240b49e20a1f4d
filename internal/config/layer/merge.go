package layer

import (
	"reflect"
	"sort"
	"strings"
)

// DeepMerge merges src into dst and returns dst. Tables merge recursively;
// any other value in src replaces the one in dst.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for key, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
			continue
		}
		dst[key] = cloneValue(srcVal)
	}
	return dst
}

// Clone returns a deep copy of m.
func Clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Clone(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// GetByPath returns the value at a dot-separated path.
func GetByPath(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}
	current := any(data)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

// SetByPath sets the value at a dot-separated path, creating tables as
// needed. A non-table value in the way is replaced.
func SetByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// Flatten maps every leaf of data to its dot-separated path.
func Flatten(data map[string]any) map[string]any {
	out := make(map[string]any)
	flatten(data, "", out)
	return out
}

func flatten(data map[string]any, prefix string, out map[string]any) {
	for key, val := range data {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flatten(nested, path, out)
			continue
		}
		out[path] = val
	}
}

// Diff returns the leaf paths added, modified and removed between old and
// new, each sorted.
func Diff(old, new map[string]any) (added, modified, removed []string) {
	oldFlat, newFlat := Flatten(old), Flatten(new)
	for path, newVal := range newFlat {
		oldVal, ok := oldFlat[path]
		switch {
		case !ok:
			added = append(added, path)
		case !reflect.DeepEqual(oldVal, newVal):
			modified = append(modified, path)
		}
	}
	for path := range oldFlat {
		if _, ok := newFlat[path]; !ok {
			removed = append(removed, path)
		}
	}
	sort.Strings(added)
	sort.Strings(modified)
	sort.Strings(removed)
	return added, modified, removed
}
