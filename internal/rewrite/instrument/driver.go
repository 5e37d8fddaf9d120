package instrument

import (
	"bytes"
	"sort"

	"github.com/ListenOcean/hookinjector/internal/log"
	"github.com/ListenOcean/hookinjector/internal/rewrite/rules"
	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"
	"github.com/ListenOcean/hookinjector/utils"

	"github.com/pkg/errors"
)

// Context is everything a rewrite needs, built once per run.
type Context struct {
	Table       *rules.Table
	Compilation *syntax.Compilation
	Frontend    syntax.Frontend
}

// Injection records one rewritten body.
type Injection struct {
	Name           string
	MemoryLog      *rules.Hook
	ProfilerSample *rules.Hook
}

type Result struct {
	Text       []byte
	Injections []Injection
}

func (r *Result) Changed() bool {
	return len(r.Injections) > 0
}

// Classes returns the distinct hook classes the rewritten text calls.
func (r *Result) Classes() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, in := range r.Injections {
		for _, h := range []*rules.Hook{in.MemoryLog, in.ProfilerSample} {
			if h == nil {
				continue
			}
			if _, ok := seen[h.Class]; !ok {
				seen[h.Class] = struct{}{}
				out = append(out, h.Class)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Rewriter rewrites the trees of one compilation, one at a time.
type Rewriter struct {
	ctx   *Context
	rules []*rules.Rule
	style syntax.WrapStyle
}

func NewRewriter(ctx *Context) *Rewriter {
	utils.True(ctx != nil && ctx.Frontend != nil && ctx.Compilation != nil, "incomplete rewrite context")
	return &Rewriter{
		ctx:   ctx,
		rules: withFrontendDefaults(ctx.Table.Rules(ctx.Compilation.Name), ctx.Frontend),
		style: ctx.Frontend.WrapStyle(),
	}
}

// withFrontendDefaults replaces the default hooks of rs with the front
// end's own defaults. The table is shared, so changed rules are copies.
func withFrontendDefaults(rs []*rules.Rule, fe syntax.Frontend) []*rules.Rule {
	d, ok := fe.(syntax.HookDefaulter)
	if !ok {
		return rs
	}
	swap := func(h *rules.Hook, n syntax.HookNames) *rules.Hook {
		if h == nil || !h.Default {
			return h
		}
		return &rules.Hook{Class: n.Class, Begin: n.Begin, End: n.End, Default: true}
	}
	out := make([]*rules.Rule, len(rs))
	for i, r := range rs {
		c := *r
		c.MemoryLog = swap(r.MemoryLog, d.DefaultMemoryLog())
		c.ProfilerSample = swap(r.ProfilerSample, d.DefaultProfilerSample())
		out[i] = &c
	}
	return out
}

// Rewrite returns the tree's source with every selected body replaced.
// Text outside replaced bodies is copied byte for byte.
func (r *Rewriter) Rewrite(tree *syntax.Tree) (*Result, error) {
	res := &Result{}
	if len(r.rules) == 0 {
		res.Text = tree.Source
		return res, nil
	}
	var buf bytes.Buffer
	buf.Grow(len(tree.Source))
	if err := r.visit(&buf, tree, tree.Root, syntax.Newline(tree.Source), res); err != nil {
		return nil, errors.Wrap(err, tree.Path)
	}
	res.Text = buf.Bytes()
	return res, nil
}

func (r *Rewriter) visit(w *bytes.Buffer, tree *syntax.Tree, n *syntax.Node, nl string, res *Result) error {
	if n.Kind == syntax.KindBlock && n.Parent != nil && n.Parent.Kind.MethodLike() {
		replaced, err := r.visitBody(w, tree, n, nl, res)
		if err != nil || replaced {
			return err
		}
	}
	pos := n.Pos
	for _, c := range n.Children {
		w.Write(tree.Source[pos:c.Pos])
		if err := r.visit(w, tree, c, nl, res); err != nil {
			return err
		}
		pos = c.End
	}
	w.Write(tree.Source[pos:n.End])
	return nil
}

func (r *Rewriter) visitBody(w *bytes.Buffer, tree *syntax.Tree, body *syntax.Node, nl string, res *Result) (bool, error) {
	sym := body.Parent.Symbol
	if sym == nil {
		return false, nil
	}
	mc := NewMethodContext(sym, r.ctx.Compilation.Assembly)
	sel := Select(body, mc, r.rules)
	if sel.Empty() {
		return false, nil
	}
	text, err := r.synthesize(tree.Source, body, mc, sel, nl)
	if err != nil {
		return false, err
	}
	w.WriteString(text)
	res.Injections = append(res.Injections, Injection{Name: mc.QualifiedName, MemoryLog: sel.MemoryLog, ProfilerSample: sel.ProfilerSample})
	log.Debug("Will hook", log.String("name", mc.QualifiedName),
		log.Bool("memoryLog", sel.MemoryLog != nil), log.Bool("profilerSample", sel.ProfilerSample != nil))
	return true, nil
}
