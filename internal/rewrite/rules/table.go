package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ListenOcean/hookinjector/configs"

	"github.com/pkg/errors"
)

// Hook names a class and its begin/end entry points.
type Hook struct {
	Class string
	Begin string
	End   string
	// Default is set when the configuration named no hook. A front end
	// may then substitute its own default triple.
	Default bool
}

func DefaultMemoryLog() *Hook {
	return &Hook{Class: configs.DefaultMemoryLogClass, Begin: configs.DefaultMemoryLogBegin, End: configs.DefaultMemoryLogEnd, Default: true}
}

func DefaultProfilerSample() *Hook {
	return &Hook{Class: configs.DefaultProfilerClass, Begin: configs.DefaultProfilerBegin, End: configs.DefaultProfilerEnd, Default: true}
}

func (h *Hook) String() string {
	return fmt.Sprintf("%s.%s/%s", h.Class, h.Begin, h.End)
}

// Rule is one group of directives of a project.
type Rule struct {
	Project        string
	MemoryLog      *Hook
	ProfilerSample *Hook

	ExcludeAssemblies []*Pattern
	IncludeAssemblies []*Pattern
	DontInject        []*Pattern
	Inject            []*Pattern
	// Names whose memory log does not wait for an allocation.
	AlwaysInject []*Pattern
}

// Excludes reports whether name matches one of the rule's DontInject patterns.
func (r *Rule) Excludes(name string) bool {
	return matchAny(r.DontInject, name)
}

// Includes reports whether name is selected by the rule. A rule without
// Inject patterns selects every name.
func (r *Rule) Includes(name string) bool {
	return len(r.Inject) == 0 || matchAny(r.Inject, name)
}

func (r *Rule) AlwaysInjects(name string) bool {
	return matchAny(r.AlwaysInject, name)
}

func (r *Rule) ExcludesAssembly(asm string) bool {
	return matchAny(r.ExcludeAssemblies, asm)
}

func (r *Rule) IncludesAssembly(asm string) bool {
	return matchAny(r.IncludeAssemblies, asm)
}

func (r *Rule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "project(%s){", r.Project)
	if r.MemoryLog != nil {
		fmt.Fprintf(&b, " InjectMemoryLog(%s, %s, %s);", r.MemoryLog.Class, r.MemoryLog.Begin, r.MemoryLog.End)
	}
	if r.ProfilerSample != nil {
		fmt.Fprintf(&b, " InjectProfilerSample(%s, %s, %s);", r.ProfilerSample.Class, r.ProfilerSample.Begin, r.ProfilerSample.End)
	}
	writePatterns(&b, "ExcludeAssembly", r.ExcludeAssemblies)
	writePatterns(&b, "IncludeAssembly", r.IncludeAssemblies)
	writePatterns(&b, "DontInject", r.DontInject)
	writePatterns(&b, "Inject", r.Inject)
	writePatterns(&b, "AlwaysInject", r.AlwaysInject)
	b.WriteString(" }")
	return b.String()
}

func writePatterns(b *strings.Builder, directive string, ps []*Pattern) {
	for _, p := range ps {
		fmt.Fprintf(b, " %s(%q);", directive, p.String())
	}
}

// Table maps a project id to its rules in configuration order. It is
// filled once by a loader and only read afterwards.
type Table struct {
	projects map[string][]*Rule
	order    []string
}

func NewTable() *Table {
	return &Table{projects: make(map[string][]*Rule)}
}

func (t *Table) Add(r *Rule) {
	if _, ok := t.projects[r.Project]; !ok {
		t.order = append(t.order, r.Project)
	}
	t.projects[r.Project] = append(t.projects[r.Project], r)
}

// Rules returns the ordered rules of a project, nil when it has none.
func (t *Table) Rules(project string) []*Rule {
	if t == nil {
		return nil
	}
	return t.projects[project]
}

// Projects returns the project ids in the order they first appeared.
func (t *Table) Projects() []string {
	if t == nil {
		return nil
	}
	return t.order
}

func (t *Table) Len() int {
	n := 0
	if t != nil {
		for _, rs := range t.projects {
			n += len(rs)
		}
	}
	return n
}

func (t *Table) String() string {
	var b strings.Builder
	for _, p := range t.Projects() {
		for _, r := range t.projects[p] {
			b.WriteString(r.String())
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Load reads a rule file. YAML files are recognised by extension, anything
// else is read as the rule DSL.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read rule file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		t, err := ParseYAML(data)
		return t, errors.Wrapf(err, "load %s", path)
	default:
		t, err := ParseDSL(data)
		return t, errors.Wrapf(err, "load %s", path)
	}
}
