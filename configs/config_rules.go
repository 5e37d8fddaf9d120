package configs

// RuleConfig is the YAML form of the rule file.
type RuleConfig struct {
	Projects []ProjectRule `yaml:"projects"`
}

// ProjectRule is one rule of a project; a project id may appear several
// times and its rules keep file order.
type ProjectRule struct {
	ID                string      `yaml:"id"`
	MemoryLog         *HookConfig `yaml:"memoryLog"`
	ProfilerSample    *HookConfig `yaml:"profilerSample"`
	ExcludeAssemblies []string    `yaml:"excludeAssemblies"`
	IncludeAssemblies []string    `yaml:"includeAssemblies"`
	DontInject        []string    `yaml:"dontInject"`
	Inject            []string    `yaml:"inject"`
	AlwaysInject      []string    `yaml:"alwaysInject"`
}

// HookConfig left empty (or partially filled) selects the default hook.
type HookConfig struct {
	Class string `yaml:"class"`
	Begin string `yaml:"begin"`
	End   string `yaml:"end"`
}

func (h *HookConfig) Complete() bool {
	return h != nil && h.Class != "" && h.Begin != "" && h.End != ""
}
