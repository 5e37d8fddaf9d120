package csharp

import (
	"bytes"
	"sort"
	"strings"
	"unicode"
)

type span struct {
	start, end int
}

// regions is a sorted list of disjoint byte ranges.
type regions []span

func (r regions) contains(off int) bool {
	i := sort.Search(len(r), func(i int) bool { return r[i].end > off })
	return i < len(r) && r[i].start <= off
}

func (r regions) add(start, end int) regions {
	if n := len(r); n > 0 && r[n-1].end == start {
		r[n-1].end = end
		return r
	}
	return append(r, span{start, end})
}

type condFrame struct {
	parentActive bool
	taken        bool
}

// inactiveRegions returns the content lines excluded by #if/#elif/#else for
// the given symbols. Directive lines themselves are never included.
// #define and #undef in active code update the symbol set.
func inactiveRegions(src []byte, defines []string) regions {
	defined := make(map[string]bool, len(defines))
	for _, d := range defines {
		defined[d] = true
	}
	var (
		out    regions
		stack  []condFrame
		active = true
	)
	for pos := 0; pos < len(src); {
		lineEnd := len(src)
		if i := bytes.IndexByte(src[pos:], '\n'); i >= 0 {
			lineEnd = pos + i + 1
		}
		line := strings.TrimSpace(string(src[pos:lineEnd]))
		if strings.HasPrefix(line, "#") {
			word, rest := splitDirective(line)
			switch word {
			case "if":
				cond := active && evalCondition(rest, defined)
				stack = append(stack, condFrame{parentActive: active, taken: cond})
				active = cond
			case "elif":
				if n := len(stack); n > 0 {
					f := &stack[n-1]
					cond := f.parentActive && !f.taken && evalCondition(rest, defined)
					f.taken = f.taken || cond
					active = cond
				}
			case "else":
				if n := len(stack); n > 0 {
					f := &stack[n-1]
					active = f.parentActive && !f.taken
					f.taken = true
				}
			case "endif":
				if n := len(stack); n > 0 {
					active = stack[n-1].parentActive
					stack = stack[:n-1]
				}
			case "define":
				if active && rest != "" {
					defined[rest] = true
				}
			case "undef":
				if active {
					delete(defined, rest)
				}
			}
			// directive lines stay active: the directive nodes span the
			// branches and are walked into
			pos = lineEnd
			continue
		}
		if !active {
			out = out.add(pos, lineEnd)
		}
		pos = lineEnd
	}
	return out
}

func splitDirective(line string) (word, rest string) {
	line = strings.TrimLeft(line[1:], " \t")
	i := 0
	for i < len(line) && unicode.IsLetter(rune(line[i])) {
		i++
	}
	rest = line[i:]
	if c := strings.Index(rest, "//"); c >= 0 {
		rest = rest[:c]
	}
	return line[:i], strings.TrimSpace(rest)
}

// condition expression: || && == != ! ( ) true false and symbols
type condParser struct {
	toks    []string
	pos     int
	defined map[string]bool
}

func evalCondition(expr string, defined map[string]bool) bool {
	p := &condParser{toks: tokenizeCondition(expr), defined: defined}
	return p.or()
}

func tokenizeCondition(s string) []string {
	var toks []string
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case strings.HasPrefix(s[i:], "||"), strings.HasPrefix(s[i:], "&&"),
			strings.HasPrefix(s[i:], "=="), strings.HasPrefix(s[i:], "!="):
			toks = append(toks, s[i:i+2])
			i += 2
		case c == '!' || c == '(' || c == ')':
			toks = append(toks, string(c))
			i++
		default:
			j := i
			for j < len(s) && (s[j] == '_' || unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j]))) {
				j++
			}
			if j == i {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks
}

func (p *condParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *condParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *condParser) or() bool {
	v := p.and()
	for p.peek() == "||" {
		p.next()
		r := p.and()
		v = v || r
	}
	return v
}

func (p *condParser) and() bool {
	v := p.equality()
	for p.peek() == "&&" {
		p.next()
		r := p.equality()
		v = v && r
	}
	return v
}

func (p *condParser) equality() bool {
	v := p.unary()
	for op := p.peek(); op == "==" || op == "!="; op = p.peek() {
		p.next()
		r := p.unary()
		if op == "==" {
			v = v == r
		} else {
			v = v != r
		}
	}
	return v
}

func (p *condParser) unary() bool {
	switch t := p.next(); t {
	case "!":
		return !p.unary()
	case "(":
		v := p.or()
		if p.peek() == ")" {
			p.next()
		}
		return v
	case "true":
		return true
	case "false", "":
		return false
	default:
		return p.defined[t]
	}
}
