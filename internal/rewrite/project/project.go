package project

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/ListenOcean/hookinjector/configs"
	"github.com/ListenOcean/hookinjector/internal/log"
	"github.com/ListenOcean/hookinjector/internal/rewrite/instrument"
	"github.com/ListenOcean/hookinjector/internal/rewrite/rules"
	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"
	"github.com/ListenOcean/hookinjector/utils"

	"github.com/panjf2000/ants"
	"github.com/pkg/errors"
)

// Run loads the input of opts and rewrites it.
func Run(ctx context.Context, opts *Options) (ExitCode, error) {
	p, err := Load(opts)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return FileNotFound, err
		}
		return Exception, err
	}
	return p.Rewrite(ctx, opts)
}

func (p *Project) abs(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

func (p *Project) rel(tree *syntax.Tree) string {
	rel, err := filepath.Rel(p.Root, tree.Path)
	if err != nil {
		return filepath.Base(tree.Path)
	}
	return filepath.ToSlash(rel)
}

func (p *Project) outputDir(opts *Options) string {
	out := opts.OutputDir
	if out == "" {
		out = configs.DefaultOutputDir
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(p.Dir, out)
	}
	return filepath.Clean(out)
}

// Rewrite runs the parse, bind and rewrite phases and writes one output
// file per source.
func (p *Project) Rewrite(ctx context.Context, opts *Options) (ExitCode, error) {
	fe, err := NewFrontend(p.Lang)
	if err != nil {
		return Exception, err
	}
	table := opts.Rules
	if table == nil {
		table = rules.NewTable()
	}
	outDir := p.outputDir(opts)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return Exception, errors.Wrap(err, "create output directory")
	}
	sink, err := NewSink(filepath.Join(p.Dir, configs.LogDirName))
	if err != nil {
		return Exception, err
	}
	defer sink.Close()

	trees, haveError, err := p.parse(ctx, fe, sink, opts.Parallel)
	if err != nil {
		return Exception, err
	}
	if haveError {
		if err := sink.Close(); err != nil {
			return Exception, err
		}
		dump, err := os.ReadFile(sink.Path(configs.SyntaxErrorLog))
		if err != nil {
			return Exception, errors.Wrap(err, "read syntax error log")
		}
		_, _ = opts.stdout().Write(dump)
		return SyntaxError, nil
	}

	name := p.Name
	if opts.Project != "" {
		name = opts.Project
	}
	c := &syntax.Compilation{
		Name:       name,
		Assembly:   p.Name,
		Trees:      trees,
		References: p.References,
		Defines:    p.Defines,
	}
	c.SortTrees()

	haveSemanticError := p.bind(fe, c, sink)

	rw := instrument.NewRewriter(&instrument.Context{Table: table, Compilation: c, Frontend: fe})
	var combined bytes.Buffer
	injected := 0
	for _, tree := range c.Trees {
		if err := ctx.Err(); err != nil {
			return Exception, errors.Wrap(err, "rewrite")
		}
		res, err := rw.Rewrite(tree)
		if err != nil {
			sink.Post(Message{Log: configs.RewriteErrorLog, Lines: []string{err.Error()}})
			return Exception, err
		}
		out := res.Text
		if fixer, ok := fe.(syntax.ImportFixer); ok && res.Changed() {
			if out, err = fixer.FixImports(tree.Path, out, res.Classes()); err != nil {
				sink.Post(Message{Log: configs.RewriteErrorLog, Lines: []string{err.Error()}})
				return Exception, err
			}
		}
		dest := filepath.Join(outDir, filepath.FromSlash(p.rel(tree)))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return Exception, errors.Wrap(err, "create output directory")
		}
		if err := os.WriteFile(dest, out, 0644); err != nil {
			return Exception, errors.Wrap(err, "write output")
		}
		combined.Write(out)
		combined.WriteString(syntax.Newline(out))
		injected += len(res.Injections)
	}
	if err := sink.Close(); err != nil {
		return Exception, err
	}
	log.Info("rewrite finished", log.Int("files", len(c.Trees)), log.Int("injections", injected),
		log.String("output", outDir))

	if opts.OutputResult {
		_, _ = opts.stdout().Write(combined.Bytes())
	}
	if haveSemanticError {
		return SemanticError, nil
	}
	return Success, nil
}

// parse parses every file of the project, on an ants pool when parallel
// is set. It reports whether any file has a syntax error.
func (p *Project) parse(ctx context.Context, fe syntax.Frontend, sink *Sink, parallel bool) ([]*syntax.Tree, bool, error) {
	var (
		mu        sync.Mutex
		trees     = make(map[string]*syntax.Tree, len(p.Files))
		haveError bool
		firstErr  error
	)
	handler := func(rel string) {
		tree, diags, err := p.parseFile(fe, rel)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			return
		}
		name := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
		bad := postDiagnostics(sink, "Syntax", name, diags)
		mu.Lock()
		defer mu.Unlock()
		trees[rel] = tree
		haveError = haveError || bad
	}

	if parallel && len(p.Files) > 1 {
		pool, err := ants.NewPool(runtime.NumCPU())
		if err != nil {
			return nil, false, errors.Wrap(err, "create parse pool")
		}
		defer pool.Release()
		var wg sync.WaitGroup
		for _, rel := range p.Files {
			if ctx.Err() != nil {
				break
			}
			rel := rel
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				handler(rel)
			}); err != nil {
				wg.Done()
				wg.Wait()
				return nil, false, errors.Wrap(err, "submit parse task")
			}
		}
		wg.Wait()
	} else {
		for _, rel := range p.Files {
			if ctx.Err() != nil {
				break
			}
			handler(rel)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, false, errors.Wrap(err, "parse")
	}
	if firstErr != nil {
		return nil, false, firstErr
	}

	out := make([]*syntax.Tree, 0, len(trees))
	for _, rel := range p.Files {
		if t, ok := trees[rel]; ok {
			out = append(out, t)
		}
	}
	utils.True(len(out) == len(p.Files), "%d trees for %d files", len(out), len(p.Files))
	return out, haveError, nil
}

func (p *Project) parseFile(fe syntax.Frontend, rel string) (*syntax.Tree, []syntax.Diagnostic, error) {
	file := p.abs(rel)
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read source")
	}
	log.Debug("parsing file", log.String("file", rel))
	return fe.ParseFile(file, src, syntax.ParseOptions{Defines: p.Defines, PackagePath: p.Packages[rel]})
}

// bind runs the front end binder and posts its diagnostics per file. It
// reports whether any was an error.
func (p *Project) bind(fe syntax.Frontend, c *syntax.Compilation, sink *Sink) bool {
	byFile := make(map[string][]syntax.Diagnostic)
	for _, d := range fe.Bind(c) {
		byFile[d.Path] = append(byFile[d.Path], d)
	}
	haveError := false
	for _, t := range c.Trees {
		if postDiagnostics(sink, "Semantic", t.Path, byFile[t.Path]) {
			haveError = true
		}
	}
	return haveError
}
