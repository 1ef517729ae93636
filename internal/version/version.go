// Package version exposes the build version stamped in at link time.
package version

import "strings"

var version = "dev"

// String returns the build version for the current binary.
func String() string {
	return version
}

// Format returns a display-friendly version string. Normal versions get a
// "v" prefix; special values like "dev" are returned as-is.
func Format(v string) string {
	if v == "" || v == "dev" {
		return v
	}
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
