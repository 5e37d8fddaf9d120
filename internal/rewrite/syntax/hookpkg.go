package syntax

import (
	"path"
	"strings"

	"golang.org/x/mod/module"
)

// HookPackage splits a Go hook class written as importpath[=name] into the
// import path and the package name calls go through. Without an explicit
// name the usual conventions apply: a /vN or gopkg.in .vN major version, a
// go- prefix and anything from the first dot are not part of the name.
func HookPackage(class string) (importPath, name string, explicit bool) {
	if i := strings.LastIndex(class, "="); i > 0 {
		return class[:i], class[i+1:], true
	}
	importPath = class
	prefix := importPath
	if p, _, ok := module.SplitPathVersion(importPath); ok && p != "" {
		prefix = p
	}
	elem := path.Base(prefix)
	if i := strings.IndexByte(elem, '.'); i > 0 {
		elem = elem[:i]
	}
	elem = strings.TrimPrefix(elem, "go-")
	return importPath, strings.ReplaceAll(elem, "-", "_"), false
}
