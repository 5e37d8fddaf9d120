package utils

import "strings"

const vendorDir = "vendor/"

// Unvendor returns the import path a vendored package stands for, so that
// "example.com/app/vendor/golang.org/x/sync" resolves to "golang.org/x/sync".
// The innermost vendor directory wins.
func Unvendor(path string) string {
	if i := strings.LastIndex(path, "/"+vendorDir); i >= 0 {
		return path[i+len(vendorDir)+1:]
	}
	return strings.TrimPrefix(path, vendorDir)
}
