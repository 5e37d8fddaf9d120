package rules

import (
	"github.com/ListenOcean/hookinjector/configs"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ParseYAML builds a rule table from the YAML rule form.
func ParseYAML(data []byte) (*Table, error) {
	var cfg configs.RuleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "decode yaml rules")
	}
	t := NewTable()
	for i, pr := range cfg.Projects {
		if pr.ID == "" {
			return nil, errors.Errorf("rule %d: project without id", i)
		}
		r, err := ruleFromConfig(pr)
		if err != nil {
			return nil, errors.Wrapf(err, "rule %d of project %s", i, pr.ID)
		}
		t.Add(r)
	}
	return t, nil
}

func ruleFromConfig(pr configs.ProjectRule) (*Rule, error) {
	r := &Rule{Project: pr.ID}
	if pr.MemoryLog != nil {
		r.MemoryLog = hookFromConfig(pr.MemoryLog, DefaultMemoryLog)
	}
	if pr.ProfilerSample != nil {
		r.ProfilerSample = hookFromConfig(pr.ProfilerSample, DefaultProfilerSample)
	}
	lists := []struct {
		target *[]*Pattern
		exprs  []string
	}{
		{&r.ExcludeAssemblies, pr.ExcludeAssemblies},
		{&r.IncludeAssemblies, pr.IncludeAssemblies},
		{&r.DontInject, pr.DontInject},
		{&r.Inject, pr.Inject},
		{&r.AlwaysInject, pr.AlwaysInject},
	}
	for _, l := range lists {
		ps, err := compileAll(l.exprs)
		if err != nil {
			return nil, err
		}
		if len(ps) > 0 {
			*l.target = ps
		}
	}
	return r, nil
}

func hookFromConfig(h *configs.HookConfig, def func() *Hook) *Hook {
	if h.Complete() {
		return &Hook{Class: h.Class, Begin: h.Begin, End: h.End}
	}
	return def()
}
