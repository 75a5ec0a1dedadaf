// Package utils holds tiny helpers shared across layers, currently the
// query-parameter parsing used for pagination. Nothing here knows about
// chats, scopes, or storage.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 integer, returning def when s is empty
// or not a valid integer. Handlers use it to read optional numeric query
// parameters without per-call error handling.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ClampLimit bounds a page size to (0, max]. Non-positive values fall back
// to def; values above max are clipped to max. A max of zero or less
// disables the upper bound.
func ClampLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
