package instrument

import (
	"strings"

	"github.com/ListenOcean/hookinjector/internal/rewrite/rules"
	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"

	"github.com/pkg/errors"
)

// hookQualifier returns the expression a hook class is called through.
// With the defer style a class containing '/' is an import path, see
// syntax.HookPackage.
func hookQualifier(style syntax.WrapStyle, class string) string {
	if style == syntax.WrapDefer && strings.Contains(class, "/") {
		_, name, _ := syntax.HookPackage(class)
		return name
	}
	return class
}

type wrapSpec struct {
	hook  *rules.Hook
	label string
	// profiler samples end without an argument
	labelOnEnd bool
	base       string
	nl         string
	inner      string
}

func (r *Rewriter) wrap(s wrapSpec) string {
	q := hookQualifier(r.style, s.hook.Class)
	begin := q + "." + s.hook.Begin + `("` + s.label + `")`
	end := q + "." + s.hook.End + "()"
	if s.labelOnEnd {
		end = q + "." + s.hook.End + `("` + s.label + `")`
	}
	ind := func(n int) string { return s.base + strings.Repeat("\t", n) }

	var b strings.Builder
	// the base indentation already precedes the body in the output
	b.WriteString("{" + s.nl)
	switch r.style {
	case syntax.WrapDefer:
		b.WriteString(ind(1) + begin + s.nl)
		b.WriteString(ind(1) + "defer " + end + s.nl)
		b.WriteString(s.inner)
	default:
		b.WriteString(ind(1) + "try{" + s.nl)
		b.WriteString(ind(2) + begin + ";" + s.nl)
		b.WriteString(s.inner)
		b.WriteString(ind(1) + "}finally{" + s.nl)
		b.WriteString(ind(2) + end + ";" + s.nl)
		b.WriteString(ind(1) + "}" + s.nl)
	}
	b.WriteString(ind(0) + "}")
	return b.String()
}

// synthesize builds the replacement text of body. The memory log wraps the
// original block, the profiler sample then wraps the statements of
// whatever the body is at that point, so it ends up outermost.
func (r *Rewriter) synthesize(src []byte, body *syntax.Node, mc *MethodContext, sel Selection, nl string) (string, error) {
	base := syntax.Indent(src, body.Pos)
	curSrc, cur := src, body

	if sel.MemoryLog != nil {
		text := r.wrap(wrapSpec{
			hook:       sel.MemoryLog,
			label:      mc.QualifiedName,
			labelOnEnd: true,
			base:       base,
			nl:         nl,
			inner:      base + string(src[body.Pos:body.End]) + nl,
		})
		tree, err := r.reparse(text, mc)
		if err != nil {
			return "", err
		}
		curSrc, cur = tree.Source, tree.Root.Children[0]
	}

	if sel.ProfilerSample != nil {
		text := r.wrap(wrapSpec{
			hook:  sel.ProfilerSample,
			label: mc.QualifiedName,
			base:  base,
			nl:    nl,
			inner: syntax.StatementsText(curSrc, cur, nl),
		})
		tree, err := r.reparse(text, mc)
		if err != nil {
			return "", err
		}
		curSrc, cur = tree.Source, tree.Root.Children[0]
	}
	return string(curSrc[cur.Pos:cur.End]), nil
}

func (r *Rewriter) reparse(text string, mc *MethodContext) (*syntax.Tree, error) {
	tree, err := r.ctx.Frontend.ParseBlock(text)
	if err != nil {
		return nil, errors.Wrapf(err, "synthesized body of %s does not parse", mc.QualifiedName)
	}
	if len(tree.Root.Children) != 1 || tree.Root.Children[0].Kind != syntax.KindBlock {
		return nil, errors.Errorf("synthesized body of %s is not a single block", mc.QualifiedName)
	}
	return tree, nil
}
