// Package matching provides the request-facet matching primitives used by
// the expectation engine: path patterns, method comparison, and wildcard
// value patterns.
package matching

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PathKind classifies a path pattern.
type PathKind int

const (
	// PathExact matches the path literally.
	PathExact PathKind = iota
	// PathNamedParams matches segment-wise with {name} placeholders.
	PathNamedParams
	// PathGlob matches with * and ** glob segments.
	PathGlob
)

// ClassifyPath reports how a path pattern will be interpreted.
func ClassifyPath(pattern string) PathKind {
	if strings.Contains(pattern, "*") {
		return PathGlob
	}
	if strings.Contains(pattern, "{") && strings.Contains(pattern, "}") {
		return PathNamedParams
	}
	return PathExact
}

// MatchPath reports whether the request path matches the pattern.
// Supported forms:
//   - exact: "/api/users"
//   - named segments: "/api/users/{id}"
//   - globs: "/api/users/*", "/api/**" (doublestar semantics)
func MatchPath(pattern, path string) bool {
	switch ClassifyPath(pattern) {
	case PathGlob:
		ok, err := doublestar.Match(pattern, path)
		return err == nil && ok
	case PathNamedParams:
		return matchNamedParams(pattern, path)
	default:
		return pattern == path
	}
}

// matchNamedParams checks segment-wise equality where {name} segments
// match any single non-empty segment.
func matchNamedParams(pattern, path string) bool {
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")

	if len(patternParts) != len(pathParts) {
		return false
	}

	for i, part := range patternParts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			if pathParts[i] == "" {
				return false
			}
			continue
		}
		if part != pathParts[i] {
			return false
		}
	}
	return true
}

// PathParams extracts {name} placeholder values from a matched path.
// Returns an empty map when the pattern has no placeholders.
func PathParams(pattern, path string) map[string]string {
	params := make(map[string]string)
	if ClassifyPath(pattern) != PathNamedParams {
		return params
	}

	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range patternParts {
		if i >= len(pathParts) {
			break
		}
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			params[part[1:len(part)-1]] = pathParts[i]
		}
	}
	return params
}

// MatchMethod compares HTTP methods case-insensitively. An empty or "any"
// expectation matches every method.
func MatchMethod(expected, actual string) bool {
	if expected == "" || strings.EqualFold(expected, "any") || expected == "*" {
		return true
	}
	return strings.EqualFold(expected, actual)
}
