package rules

import (
	"time"

	"github.com/ListenOcean/hookinjector/internal/log"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
)

const matchTimeout = time.Second

// Pattern is a rule regular expression. Rule files are shared with .NET
// tooling, so the syntax is .NET's and matching is an unanchored search.
type Pattern struct {
	expr string
	re   *regexp2.Regexp
}

func CompilePattern(expr string) (*Pattern, error) {
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pattern %q", expr)
	}
	re.MatchTimeout = matchTimeout
	return &Pattern{expr: expr, re: re}, nil
}

func MustCompilePattern(expr string) *Pattern {
	p, err := CompilePattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether the pattern occurs in s. A failed match, a timeout
// included, counts as no match and is logged.
func (p *Pattern) Match(s string) bool {
	ok, err := p.re.MatchString(s)
	if err != nil {
		log.Warn("pattern match failed, treated as no match",
			log.String("pattern", p.expr), log.String("subject", s), log.Err(err))
		return false
	}
	return ok
}

func (p *Pattern) String() string {
	return p.expr
}

func compileAll(exprs []string) ([]*Pattern, error) {
	out := make([]*Pattern, 0, len(exprs))
	for _, e := range exprs {
		p, err := CompilePattern(e)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func matchAny(ps []*Pattern, s string) bool {
	for _, p := range ps {
		if p.Match(s) {
			return true
		}
	}
	return false
}
