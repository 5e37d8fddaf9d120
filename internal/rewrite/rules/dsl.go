package rules

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ListenOcean/hookinjector/internal/log"

	"github.com/pkg/errors"
)

// Rule file syntax:
//
//	project(Game){
//		InjectMemoryLog(MemoryAndCallHook, MemoryLogBegin, MemoryLogEnd);
//		DontInject("Game\.Util\..*");
//	};
//
// Statements are calls with an optional brace body; `;` separators are
// optional. Arguments are identifiers (dots allowed), numbers or quoted
// strings. Inside quotes a backslash only escapes the quote character, so
// patterns are written unescaped.

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of file"
	}
	return fmt.Sprintf("%q", t.text)
}

type lexer struct {
	src  []rune
	pos  int
	line int
	col  int
}

func newLexer(data []byte) *lexer {
	return &lexer{src: []rune(string(data)), line: 1, col: 1}
}

func (l *lexer) errorf(format string, args ...interface{}) error {
	return errors.Errorf("%d:%d: %s", l.line, l.col, fmt.Sprintf(format, args...))
}

func (l *lexer) peek(off int) rune {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		r := l.peek(0)
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '/' && l.peek(1) == '/':
			for l.pos < len(l.src) && l.peek(0) != '\n' {
				l.advance()
			}
		case r == '/' && l.peek(1) == '*':
			l.advance()
			l.advance()
			for {
				if l.pos >= len(l.src) {
					return l.errorf("unterminated comment")
				}
				if l.peek(0) == '*' && l.peek(1) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '@' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || r == '.' || unicode.IsDigit(r)
}

func (l *lexer) next() (token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	tok := token{line: l.line, col: l.col}
	if l.pos >= len(l.src) {
		tok.kind = tokEOF
		return tok, nil
	}
	r := l.peek(0)
	switch {
	case isIdentStart(r):
		start := l.pos
		for l.pos < len(l.src) && isIdentPart(l.peek(0)) {
			l.advance()
		}
		tok.kind, tok.text = tokIdent, string(l.src[start:l.pos])
	case unicode.IsDigit(r) || (r == '-' && unicode.IsDigit(l.peek(1))):
		start := l.pos
		l.advance()
		for l.pos < len(l.src) && (unicode.IsDigit(l.peek(0)) || l.peek(0) == '.') {
			l.advance()
		}
		tok.kind, tok.text = tokNumber, string(l.src[start:l.pos])
	case r == '"' || r == '\'':
		quote := l.advance()
		var b strings.Builder
		for {
			if l.pos >= len(l.src) {
				return token{}, errors.Errorf("%d:%d: unterminated string", tok.line, tok.col)
			}
			c := l.advance()
			if c == quote {
				break
			}
			if c == '\\' && l.peek(0) == quote {
				c = l.advance()
			}
			b.WriteRune(c)
		}
		tok.kind, tok.text = tokString, b.String()
	case strings.ContainsRune("(){},;", r):
		l.advance()
		tok.kind, tok.text = tokPunct, string(r)
	default:
		return token{}, l.errorf("unexpected character %q", r)
	}
	return tok, nil
}

// statement is a parsed call such as `Inject("x")` or `project(P){...}`.
type statement struct {
	name string
	args []string
	body []*statement
	line int
}

type dslParser struct {
	lex *lexer
	tok token
}

func (p *dslParser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *dslParser) is(punct string) bool {
	return p.tok.kind == tokPunct && p.tok.text == punct
}

func (p *dslParser) expect(punct string) error {
	if !p.is(punct) {
		return errors.Errorf("%d:%d: expected %q, found %s", p.tok.line, p.tok.col, punct, p.tok)
	}
	return p.advance()
}

func (p *dslParser) statements(nested bool) ([]*statement, error) {
	var out []*statement
	for {
		for p.is(";") {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		switch {
		case p.tok.kind == tokEOF:
			if nested {
				return nil, errors.Errorf("%d:%d: missing '}'", p.tok.line, p.tok.col)
			}
			return out, nil
		case p.is("}"):
			if !nested {
				return nil, errors.Errorf("%d:%d: unexpected '}'", p.tok.line, p.tok.col)
			}
			return out, nil
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
}

func (p *dslParser) statement() (*statement, error) {
	if p.tok.kind != tokIdent {
		return nil, errors.Errorf("%d:%d: expected identifier, found %s", p.tok.line, p.tok.col, p.tok)
	}
	st := &statement{name: p.tok.text, line: p.tok.line}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.is("(") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for !p.is(")") {
			switch p.tok.kind {
			case tokIdent, tokString, tokNumber:
				st.args = append(st.args, p.tok.text)
			default:
				return nil, errors.Errorf("%d:%d: unexpected %s in argument list", p.tok.line, p.tok.col, p.tok)
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.is(",") {
				if err := p.advance(); err != nil {
					return nil, err
				}
			} else if !p.is(")") {
				return nil, errors.Errorf("%d:%d: expected ',' or ')', found %s", p.tok.line, p.tok.col, p.tok)
			}
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.is("{") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		body, err := p.statements(true)
		if err != nil {
			return nil, err
		}
		st.body = body
		if err := p.expect("}"); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// ParseDSL builds a rule table from the rule DSL.
func ParseDSL(data []byte) (*Table, error) {
	p := &dslParser{lex: newLexer(data)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	stmts, err := p.statements(false)
	if err != nil {
		return nil, err
	}

	t := NewTable()
	for _, st := range stmts {
		if st.name != "project" {
			log.Warn("unknown rule statement ignored", log.String("name", st.name), log.Int("line", st.line))
			continue
		}
		if len(st.args) == 0 || st.args[0] == "" {
			return nil, errors.Errorf("line %d: project without id", st.line)
		}
		r, err := buildRule(st.args[0], st.body)
		if err != nil {
			return nil, errors.Wrapf(err, "project %s (line %d)", st.args[0], st.line)
		}
		t.Add(r)
	}
	return t, nil
}

func buildRule(project string, body []*statement) (*Rule, error) {
	r := &Rule{Project: project}
	for _, d := range body {
		var target *[]*Pattern
		switch d.name {
		case "InjectMemoryLog":
			r.MemoryLog = hookFromArgs(d.args, DefaultMemoryLog)
			continue
		case "InjectProfilerSample":
			r.ProfilerSample = hookFromArgs(d.args, DefaultProfilerSample)
			continue
		case "ExcludeAssembly":
			target = &r.ExcludeAssemblies
		case "IncludeAssembly":
			target = &r.IncludeAssemblies
		case "DontInject":
			target = &r.DontInject
		case "Inject":
			target = &r.Inject
		case "AlwaysInject":
			target = &r.AlwaysInject
		default:
			log.Warn("unknown rule directive ignored", log.String("project", project),
				log.String("directive", d.name), log.Int("line", d.line))
			continue
		}
		if len(d.args) == 0 {
			return nil, errors.Errorf("line %d: %s needs a pattern", d.line, d.name)
		}
		ps, err := compileAll(d.args)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", d.line)
		}
		*target = append(*target, ps...)
	}
	return r, nil
}

func hookFromArgs(args []string, def func() *Hook) *Hook {
	if len(args) >= 3 {
		return &Hook{Class: args[0], Begin: args[1], End: args[2]}
	}
	return def()
}
