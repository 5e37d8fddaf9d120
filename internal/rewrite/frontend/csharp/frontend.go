// Package csharp parses C# sources with tree-sitter into rewrite trees.
package csharp

import (
	"context"
	"fmt"
	"sync"

	"github.com/ListenOcean/hookinjector/configs"
	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"

	"github.com/pkg/errors"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
)

const Language = "csharp"

type Frontend struct {
	mu    sync.Mutex
	files map[*syntax.Tree]*fileInfo
}

func New() *Frontend {
	return &Frontend{files: make(map[*syntax.Tree]*fileInfo)}
}

func (f *Frontend) Language() string { return Language }

func (f *Frontend) WrapStyle() syntax.WrapStyle { return syntax.WrapTryFinally }

func parse(src []byte) (*sitter.Tree, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(csharp.GetLanguage())
	tree, err := p.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, errors.Wrap(err, "tree-sitter parse")
	}
	return tree, nil
}

// ParseFile builds the rewrite tree of one file. Syntax errors are
// returned as diagnostics with a nil error.
func (f *Frontend) ParseFile(path string, src []byte, opts syntax.ParseOptions) (*syntax.Tree, []syntax.Diagnostic, error) {
	ts, err := parse(src)
	if err != nil {
		return nil, nil, errors.Wrap(err, path)
	}
	defer ts.Close()

	b := &builder{
		src:      src,
		tree:     syntax.NewTree(path, src),
		inactive: inactiveRegions(src, opts.Defines),
		file:     newFileInfo(path),
	}
	root := ts.RootNode()
	diags := b.syntaxErrors(root, nil)
	b.children(root, b.tree.Root, nil)

	f.mu.Lock()
	f.files[b.tree] = b.file
	f.mu.Unlock()
	return b.tree, diags, nil
}

func (f *Frontend) info(t *syntax.Tree) *fileInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[t]
}

// ParseBlock checks that text is a valid method body.
func (f *Frontend) ParseBlock(text string) (*syntax.Tree, error) {
	ts, err := parse([]byte(fmt.Sprintf(configs.FragmentTemplate, text)))
	if err != nil {
		return nil, err
	}
	defer ts.Close()
	if root := ts.RootNode(); root.HasError() {
		b := &builder{src: []byte(fmt.Sprintf(configs.FragmentTemplate, text)), file: newFileInfo("fragment")}
		if diags := b.syntaxErrors(root, nil); len(diags) > 0 {
			return nil, errors.Errorf("invalid block: %s", diags[0].Message)
		}
		return nil, errors.New("invalid block")
	}
	return syntax.NewFragment(text)
}
