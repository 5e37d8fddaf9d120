package project

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ListenOcean/hookinjector/configs"
	"github.com/ListenOcean/hookinjector/internal/log"
	"github.com/ListenOcean/hookinjector/internal/rewrite/frontend/csharp"
	"github.com/ListenOcean/hookinjector/internal/rewrite/frontend/golang"
	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"golang.org/x/mod/modfile"
)

// Project is one rewrite unit: the sources of a compilation and the
// settings they are parsed and bound with.
type Project struct {
	// Name is the compilation and own assembly name: the file or project
	// name for C#, the module path for Go.
	Name string
	Lang string
	// Dir holds the input; the log directory and the default output
	// directory are relative to it.
	Dir string
	// Root is the directory Files are relative to.
	Root       string
	Files      []string
	Defines    []string
	References []syntax.Reference
	// Import path per file (Go).
	Packages map[string]string
}

// refSet keeps references in insertion order, first one wins.
type refSet struct {
	names map[string]bool
	paths map[string]bool
	refs  []syntax.Reference
}

func newRefSet() *refSet {
	return &refSet{names: make(map[string]bool), paths: make(map[string]bool)}
}

func (s *refSet) addName(name, alias string, warn bool) {
	if alias == "" {
		alias = syntax.GlobalAlias
	}
	if s.names[name] {
		if warn {
			log.Warn("refbyname duplicate, ignored", log.String("name", name), log.String("alias", alias))
		}
		return
	}
	s.names[name] = true
	s.refs = append(s.refs, syntax.Reference{Name: name, Alias: alias})
}

func (s *refSet) addPath(p, alias string, warn bool) {
	if alias == "" {
		alias = syntax.GlobalAlias
	}
	if s.paths[p] {
		if warn {
			log.Warn("refbypath duplicate, ignored", log.String("path", p), log.String("alias", alias))
		}
		return
	}
	s.paths[p] = true
	name := path.Base(slashPath(p))
	name = strings.TrimSuffix(name, path.Ext(name))
	s.refs = append(s.refs, syntax.Reference{Name: name, Alias: alias, Path: p})
}

// Load resolves the input of opts into a project.
func Load(opts *Options) (*Project, error) {
	abs, err := filepath.Abs(opts.Input)
	if err != nil {
		return nil, errors.Wrap(err, "input path")
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, opts.Input)
		}
		return nil, errors.Wrap(err, "stat input")
	}
	excludes, err := compileGlobs(opts.Excludes)
	if err != nil {
		return nil, err
	}

	lang := opts.Lang
	if lang == "" {
		lang = detectLanguage(abs, info)
	}
	p := &Project{Lang: lang}
	switch lang {
	case csharp.Language:
		err = p.loadCSharp(abs, info, opts, excludes)
	case golang.Language:
		err = p.loadGo(abs, info, opts, excludes)
	default:
		err = errors.Errorf("unsupported language %q", lang)
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(p.Files)
	log.Info("project loaded", log.String("name", p.Name), log.String("lang", p.Lang),
		log.Int("files", len(p.Files)), log.Strings("defines", p.Defines))
	return p, nil
}

func detectLanguage(abs string, info fs.FileInfo) string {
	if info.IsDir() {
		if _, err := os.Stat(filepath.Join(abs, "go.mod")); err == nil {
			return golang.Language
		}
		return csharp.Language
	}
	switch {
	case strings.HasSuffix(abs, ".go"), filepath.Base(abs) == "go.mod":
		return golang.Language
	}
	return csharp.Language
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "exclude pattern %q", p)
		}
		out = append(out, g)
	}
	return out, nil
}

func excluded(globs []glob.Glob, rel string) bool {
	for _, g := range globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return true
	}
	for _, d := range configs.IgnoredDirs {
		if name == d {
			return true
		}
	}
	return false
}

// walkSources lists the files under root accepted by keep, as slash paths
// relative to root. Directories holding their own module file are skipped.
func walkSources(root string, globs []glob.Glob, keep func(rel string) bool, modFile string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if p == root {
				return nil
			}
			if skipDir(d.Name()) || excluded(globs, rel) {
				return filepath.SkipDir
			}
			if modFile != "" {
				if _, err := os.Stat(filepath.Join(p, modFile)); err == nil {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if keep(rel) && !excluded(globs, rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", root)
	}
	return files, nil
}

func (p *Project) loadCSharp(abs string, info fs.FileInfo, opts *Options, globs []glob.Glob) error {
	refs := newRefSet()
	for _, r := range opts.RefByName {
		name, alias := splitRef(r)
		refs.addName(name, alias, true)
	}
	for _, r := range opts.RefByPath {
		file, alias := splitRef(r)
		if _, err := os.Stat(file); err != nil {
			log.Warn("refbypath path not found", log.String("path", file), log.String("alias", alias))
			continue
		}
		refs.addPath(file, alias, true)
	}

	warnDuplicates("define", opts.Defines)
	defines := append([]string(nil), opts.Defines...)
	switch {
	case info.IsDir():
		p.Dir = abs
		p.Name = filepath.Base(abs)
	default:
		p.Dir = filepath.Dir(abs)
		p.Name = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	}
	p.Root = p.Dir
	if opts.SourceRoot != "" {
		root, err := filepath.Abs(opts.SourceRoot)
		if err != nil {
			return errors.Wrap(err, "source root")
		}
		p.Root = root
	}

	switch {
	case info.IsDir():
		files, err := walkSources(p.Root, globs, func(rel string) bool {
			return strings.HasSuffix(rel, ".cs")
		}, "")
		if err != nil {
			return err
		}
		p.Files = files
	case strings.EqualFold(filepath.Ext(abs), ".csproj"):
		s, err := loadCsproj(abs, refs)
		if err != nil {
			return err
		}
		defines = append(defines, s.defines...)
		for _, f := range s.files {
			if !excluded(globs, f) {
				p.Files = append(p.Files, f)
			}
		}
	default:
		rel, err := filepath.Rel(p.Root, abs)
		if err != nil {
			return errors.Wrap(err, "source root")
		}
		p.Files = []string{filepath.ToSlash(rel)}
	}

	for _, name := range configs.DefaultReferences {
		refs.addName(name, "", false)
	}
	p.References = refs.refs
	for i, r := range p.References {
		switch {
		case r.Path == "" && opts.SystemDllPath != "":
			p.References[i].Path = filepath.Join(opts.SystemDllPath, r.Name+".dll")
		case r.Path != "" && !filepath.IsAbs(r.Path):
			p.References[i].Path = filepath.Join(p.Dir, filepath.FromSlash(r.Path))
		}
	}
	p.Defines = normalizeDefines(defines, opts.Undefines)
	return nil
}

// findModule looks for go.mod in dir and its parents.
func findModule(dir string) (modDir, modPath string, err error) {
	for d := dir; ; {
		data, err := os.ReadFile(filepath.Join(d, "go.mod"))
		if err == nil {
			modPath = modfile.ModulePath(data)
			if modPath == "" {
				return "", "", errors.Errorf("%s: no module directive", filepath.Join(d, "go.mod"))
			}
			return d, modPath, nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			return "", "", nil
		}
		d = parent
	}
}

func (p *Project) loadGo(abs string, info fs.FileInfo, opts *Options, globs []glob.Glob) error {
	if len(opts.RefByName) > 0 || len(opts.RefByPath) > 0 {
		log.Warn("assembly references are ignored for Go sources")
	}
	warnDuplicates("define", opts.Defines)
	p.Defines = normalizeDefines(opts.Defines, opts.Undefines)

	single := ""
	switch {
	case info.IsDir():
		p.Dir = abs
	default:
		p.Dir = filepath.Dir(abs)
		if filepath.Base(abs) != "go.mod" {
			single = filepath.Base(abs)
		}
	}
	p.Root = p.Dir

	modDir, modPath, err := findModule(p.Dir)
	if err != nil {
		return err
	}
	p.Name = modPath
	if p.Name == "" {
		p.Name = filepath.Base(p.Dir)
	}

	if single != "" {
		p.Files = []string{single}
	} else {
		files, err := walkSources(p.Root, globs, func(rel string) bool {
			return strings.HasSuffix(rel, ".go") && !strings.HasSuffix(rel, "_test.go")
		}, "go.mod")
		if err != nil {
			return err
		}
		p.Files = files
	}

	p.Packages = make(map[string]string, len(p.Files))
	for _, f := range p.Files {
		p.Packages[f] = packagePath(modDir, modPath, filepath.Join(p.Root, filepath.FromSlash(path.Dir(f))))
	}
	return nil
}

// packagePath returns the import path of the package in dir, empty outside
// of a module.
func packagePath(modDir, modPath, dir string) string {
	if modPath == "" {
		return ""
	}
	rel, err := filepath.Rel(modDir, dir)
	if err != nil || rel == "." {
		return modPath
	}
	return modPath + "/" + filepath.ToSlash(rel)
}
