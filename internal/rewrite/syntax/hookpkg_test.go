package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHookPackage(t *testing.T) {
	cases := []struct {
		class, path, name string
		explicit          bool
	}{
		{"github.com/ListenOcean/hookinjector/hooklib", "github.com/ListenOcean/hookinjector/hooklib", "hooklib", false},
		{"gopkg.in/yaml.v3", "gopkg.in/yaml.v3", "yaml", false},
		{"github.com/jackc/pgx/v5", "github.com/jackc/pgx/v5", "pgx", false},
		{"github.com/google/go-cmp/cmp", "github.com/google/go-cmp/cmp", "cmp", false},
		{"example.com/prof/v2", "example.com/prof/v2", "prof", false},
		{"example.com/metrics.v1", "example.com/metrics.v1", "metrics", false},
		{"github.com/acme/go-hooks", "github.com/acme/go-hooks", "hooks", false},
		{"example.com/trace-hooks=hooks", "example.com/trace-hooks", "hooks", true},
	}
	for _, c := range cases {
		p, name, explicit := HookPackage(c.class)
		assert.Equal(t, c.path, p, c.class)
		assert.Equal(t, c.name, name, c.class)
		assert.Equal(t, c.explicit, explicit, c.class)
	}
}
