// Package project turns a command line input into a compilation, runs the
// parse, bind and rewrite phases over it and writes the results.
package project

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ListenOcean/hookinjector/internal/log"
	"github.com/ListenOcean/hookinjector/internal/rewrite/frontend/csharp"
	"github.com/ListenOcean/hookinjector/internal/rewrite/frontend/golang"
	"github.com/ListenOcean/hookinjector/internal/rewrite/rules"
	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"

	"github.com/pkg/errors"
)

type ExitCode int

const (
	Success ExitCode = iota
	SyntaxError
	SemanticError
	FileNotFound
	Exception
)

var exitCodeNames = [...]string{"Success", "SyntaxError", "SemanticError", "FileNotFound", "Exception"}

func (c ExitCode) String() string {
	if c >= 0 && int(c) < len(exitCodeNames) {
		return exitCodeNames[c]
	}
	return fmt.Sprintf("ExitCode(%d)", int(c))
}

var ErrNotFound = errors.New("input not found")

type Options struct {
	Input string
	// Relative to the input directory unless absolute.
	OutputDir string
	Defines   []string
	Undefines []string
	// name[=alias] and path[=alias]
	RefByName     []string
	RefByPath     []string
	SystemDllPath string
	// Directory source paths are resolved against, the input directory by
	// default.
	SourceRoot   string
	OutputResult bool
	Parallel     bool
	// Overrides the rule project id.
	Project string
	// csharp or go, detected from the input when empty.
	Lang string
	// Globs, matched against slash separated paths relative to the source
	// root.
	Excludes []string
	Rules    *rules.Table
	// Receives --outputresult text and the syntax error dump.
	Stdout io.Writer
}

func (o *Options) stdout() io.Writer {
	if o.Stdout == nil {
		return os.Stdout
	}
	return o.Stdout
}

// NewFrontend returns the front end of a language.
func NewFrontend(lang string) (syntax.Frontend, error) {
	switch lang {
	case csharp.Language:
		return csharp.New(), nil
	case golang.Language:
		return golang.New(), nil
	}
	return nil, errors.Errorf("unsupported language %q", lang)
}

// splitRef splits name[=alias]; the alias defaults to global.
func splitRef(s string) (string, string) {
	name, alias := s, syntax.GlobalAlias
	if i := strings.LastIndex(s, "="); i > 0 {
		name, alias = s[:i], s[i+1:]
		if alias == "" {
			alias = syntax.GlobalAlias
		}
	}
	return strings.TrimSpace(name), strings.TrimSpace(alias)
}

func warnDuplicates(what string, values []string) {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			log.Warn("duplicate "+what+" ignored", log.String(what, v))
		}
		seen[v] = true
	}
}

// normalizeDefines drops empty and repeated symbols and removes undefines.
func normalizeDefines(defines, undefines []string) []string {
	seen := make(map[string]bool, len(defines))
	removed := make(map[string]bool, len(undefines))
	for _, u := range undefines {
		removed[u] = true
	}
	var out []string
	for _, d := range defines {
		d = strings.TrimSpace(d)
		switch {
		case d == "", seen[d]:
		case removed[d]:
			seen[d] = true
		default:
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}
