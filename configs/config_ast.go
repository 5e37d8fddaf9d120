package configs

const (
	IgnoreDirective  = `//autoinject:ignore`
	NoSplitDirective = `//go:nosplit`

	DefaultMemoryLogClass = `MemoryAndCallHook`
	DefaultMemoryLogBegin = `MemoryLogBegin`
	DefaultMemoryLogEnd   = `MemoryLogEnd`

	DefaultProfilerClass = `UnityEngine.Profiling.Profiler`
	DefaultProfilerBegin = `BeginSample`
	DefaultProfilerEnd   = `EndSample`

	// Go targets call the hooks of this module's hooklib package.
	DefaultGoHookPackage    = `github.com/ListenOcean/hookinjector/hooklib`
	DefaultGoMemoryLogBegin = `MemoryLogBegin`
	DefaultGoMemoryLogEnd   = `MemoryLogEnd`
	DefaultGoProfilerBegin  = `ProfilerBegin`
	DefaultGoProfilerEnd    = `ProfilerEnd`

	// 规则配置
	TagCustomConfig   = `AUTOINJECT_CONFIG`
	DefaultConfigName = `inject.dsl`

	DefaultOutputDir = `../rewrite`
	LogDirName       = `log`
	RunLogName       = `autoinject.log`

	SyntaxErrorLog     = `SyntaxError.log`
	SyntaxWarningLog   = `SyntaxWarning.log`
	SemanticErrorLog   = `SemanticError.log`
	SemanticWarningLog = `SemanticWarning.log`
	RewriteErrorLog    = `RewriteError.log`

	Version = "0.1.0"
)

// References every C# compilation gets, whatever the project declares.
var DefaultReferences = []string{"mscorlib", "System", "System.Core"}

// Directories never walked when collecting Go sources.
var IgnoredDirs = []string{
	"vendor",
	"testdata",
}

// FragmentTemplate wraps a synthesized C# body so that it can be parsed as
// a compilation unit.
const FragmentTemplate = `class __Fragment
{
	void __Body()
	%s
}
`

// GoFragmentTemplate is the Go equivalent of FragmentTemplate.
const GoFragmentTemplate = `package a

func _() %s
`
