package utils

import "github.com/pkg/errors"

// True panics when an invariant of the rewriter does not hold. The command
// boundary reports the panic as an exception.
func True(c bool, format string, args ...interface{}) {
	if !c {
		panic(errors.Errorf("assert: "+format, args...))
	}
}
