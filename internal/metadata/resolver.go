package metadata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidPathSpec = errors.New("invalid path spec")

// Resolve evaluates each dotted candidate path against the tree in order
// and returns the first present value. Missing paths are not errors; if no
// candidate resolves, def is returned. A malformed candidate (empty path or
// empty segment) fails the whole call.
func Resolve(tree map[string]any, candidates []string, def any) (any, error) {
	for _, path := range candidates {
		segments, err := splitPath(path)
		if err != nil {
			return nil, err
		}
		if v, ok := lookup(tree, segments); ok {
			return v, nil
		}
	}
	return def, nil
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPathSpec)
	}
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPathSpec, path)
		}
	}
	return segments, nil
}

func lookup(node any, segments []string) (any, bool) {
	current := node
	for _, seg := range segments {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Text unwraps a resolved value to a string. Element nodes that carry
// attributes keep their character data under a canonical text key; plain
// leaves are already strings.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		if s, ok := t["#text"].(string); ok {
			return s
		}
		if s, ok := t["text"].(string); ok {
			return s
		}
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// TextList flattens a resolved value into a list of strings, unwrapping
// element nodes and dropping blanks.
func TextList(v any) []string {
	var out []string
	switch t := v.(type) {
	case nil:
	case []any:
		for _, item := range t {
			if s := Text(item); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := Text(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}
