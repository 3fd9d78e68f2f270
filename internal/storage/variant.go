package storage

import "strings"

// NormalizeURL replaces the last path segment of base with variant.
// An empty variant keeps the service default. The URL is not validated.
func NormalizeURL(base, variant string) string {
	if variant == "" {
		return base
	}
	i := strings.LastIndex(base, "/")
	if i < 0 {
		return "/" + variant
	}
	return base[:i] + "/" + variant
}
