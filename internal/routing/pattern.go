package routing

import "strings"

// PathPattern is a templated allowlist path such as
// /api/v1/users/{email}. A {name} segment matches any single non-empty
// path segment; every other segment must match literally.
type PathPattern struct {
	raw      string
	segments []string
}

// parsePathPattern compiles a templated allowlist entry. Paths without
// a {name} placeholder are not patterns and stay in the exact-match
// set, so ok is false for them. Malformed templates (relative paths,
// empty segments, stray braces) also report false.
func parsePathPattern(raw string) (PathPattern, bool) {
	if !strings.Contains(raw, "{") {
		return PathPattern{}, false
	}
	if !strings.HasPrefix(raw, "/") {
		return PathPattern{}, false
	}

	segs := splitPathSegments(raw)
	for _, seg := range segs {
		switch {
		case seg == "":
			return PathPattern{}, false
		case strings.ContainsAny(seg, "{}") && !isParamSegment(seg):
			return PathPattern{}, false
		}
	}
	return PathPattern{raw: raw, segments: segs}, true
}

// Match reports whether path has the same shape as the pattern:
// equal segment count, literal segments equal, placeholders filled
// with something non-empty.
func (p PathPattern) Match(path string) bool {
	if p.raw == "" {
		return false
	}
	in := splitPathSegments(path)
	if len(in) != len(p.segments) {
		return false
	}
	for i, want := range p.segments {
		if in[i] == "" {
			return false
		}
		if !isParamSegment(want) && in[i] != want {
			return false
		}
	}
	return true
}

func splitPathSegments(path string) []string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// isParamSegment accepts {name} with a non-empty name.
func isParamSegment(s string) bool {
	return len(s) > 2 && strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}
