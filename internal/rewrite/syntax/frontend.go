package syntax

import (
	"fmt"
	"sort"
)

type Severity uint8

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

type Diagnostic struct {
	Severity Severity
	Path     string
	// 1-based.
	Line, Column int
	Code         string
	Message      string
}

func (d Diagnostic) String() string {
	code := ""
	if d.Code != "" {
		code = " " + d.Code
	}
	return fmt.Sprintf("%s(%d,%d): %s%s: %s", d.Path, d.Line, d.Column, d.Severity, code, d.Message)
}

// Position converts a byte offset into a 1-based line and column.
func Position(src []byte, off int) (line, col int) {
	line, col = 1, 1
	if off > len(src) {
		off = len(src)
	}
	for _, c := range src[:off] {
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// Reference is an external assembly (C#) the compilation can call into.
type Reference struct {
	Name string
	// Alias is "global" unless the reference is only reachable through an
	// extern alias.
	Alias string
	Path  string
}

const GlobalAlias = "global"

// Compilation is the cross-file unit a front end binds together.
type Compilation struct {
	// Name selects the rule project.
	Name string
	// Assembly is the identity of the code being compiled; calls into other
	// assemblies are external.
	Assembly   string
	Trees      []*Tree
	References []Reference
	Defines    []string
}

// SortTrees orders the trees by path so every phase after parsing is
// deterministic.
func (c *Compilation) SortTrees() {
	sort.Slice(c.Trees, func(i, j int) bool { return c.Trees[i].Path < c.Trees[j].Path })
}

// WrapStyle selects how the body rewriter brackets a body with hook calls.
type WrapStyle uint8

const (
	WrapTryFinally WrapStyle = iota
	WrapDefer
)

type ParseOptions struct {
	Defines []string
	// Import path of the package the file belongs to (Go only).
	PackagePath string
}

// Frontend parses one language into span trees and resolves symbols across
// a compilation. ParseFile must be safe for concurrent use; Bind is called
// once, after every file is parsed.
type Frontend interface {
	Language() string
	WrapStyle() WrapStyle
	ParseFile(path string, src []byte, opts ParseOptions) (*Tree, []Diagnostic, error)
	Bind(c *Compilation) []Diagnostic
	// ParseBlock re-parses synthesized body text. The returned tree's root
	// holds a single Block spanning the braces.
	ParseBlock(text string) (*Tree, error)
}

// HookNames is a hook class and its begin/end entry points.
type HookNames struct {
	Class, Begin, End string
}

// HookDefaulter is implemented by front ends whose targets call other
// default hooks than the C# runtime ones.
type HookDefaulter interface {
	DefaultMemoryLog() HookNames
	DefaultProfilerSample() HookNames
}

// ImportFixer is implemented by front ends whose hook classes may need an
// import added to the rewritten file.
type ImportFixer interface {
	FixImports(path string, src []byte, classes []string) ([]byte, error)
}
