package project

import (
	"encoding/xml"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ListenOcean/hookinjector/internal/log"

	"github.com/pkg/errors"
)

type csproj struct {
	PropertyGroups []propertyGroup `xml:"PropertyGroup"`
	ItemGroups     []itemGroup     `xml:"ItemGroup"`
}

type propertyGroup struct {
	Condition       string  `xml:"Condition,attr"`
	DefineConstants *string `xml:"DefineConstants"`
	OutputPath      *string `xml:"OutputPath"`
	OutputType      *string `xml:"OutputType"`
	AssemblyName    *string `xml:"AssemblyName"`
}

type itemGroup struct {
	References        []csprojReference  `xml:"Reference"`
	ProjectReferences []projectReference `xml:"ProjectReference"`
	Compiles          []compileItem      `xml:"Compile"`
}

type csprojReference struct {
	Include  string  `xml:"Include,attr"`
	HintPath *string `xml:"HintPath"`
	Aliases  *string `xml:"Aliases"`
}

type projectReference struct {
	Include string  `xml:"Include,attr"`
	Name    *string `xml:"Name"`
}

type compileItem struct {
	Include string `xml:"Include,attr"`
}

func readCsproj(file string) (*csproj, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "read project")
	}
	var p csproj
	if err := xml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrapf(err, "parse project %s", file)
	}
	return &p, nil
}

// csprojSettings is what a project file contributes to the compilation.
type csprojSettings struct {
	refs    *refSet
	defines []string
	files   []string
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func slashPath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// debugDefines reports whether a property group configures the Debug build:
// its condition names Debug, or it names no Release configuration and
// defines DEBUG.
func debugDefines(condition, defines string) bool {
	return strings.Index(condition, "Debug") > 0 ||
		!strings.Contains(condition, "Release") &&
			(defines == "DEBUG" || strings.Contains(defines, ";DEBUG;") ||
				strings.HasPrefix(defines, "DEBUG;") || strings.HasSuffix(defines, ";DEBUG"))
}

func loadCsproj(file string, refs *refSet) (*csprojSettings, error) {
	p, err := readCsproj(file)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(file)
	s := &csprojSettings{refs: refs}

	for _, g := range p.ItemGroups {
		for _, r := range g.References {
			alias := text(r.Aliases)
			if hint := text(r.HintPath); hint != "" {
				refs.addPath(slashPath(hint), alias, false)
				continue
			}
			// Include is an assembly display name: "System.Xml, Version=..."
			name := r.Include
			if i := strings.IndexByte(name, ','); i >= 0 {
				name = name[:i]
			}
			if name = strings.TrimSpace(name); name != "" {
				refs.addName(name, alias, false)
			}
		}
	}

	outputDir := "bin/Debug/"
	for _, g := range p.PropertyGroups {
		if g.DefineConstants == nil || g.OutputPath == nil {
			continue
		}
		defines := text(g.DefineConstants)
		if debugDefines(g.Condition, defines) {
			for _, d := range strings.Split(defines, ";") {
				if d = strings.TrimSpace(d); d != "" {
					s.defines = append(s.defines, d)
				}
			}
			outputDir = slashPath(text(g.OutputPath))
			break
		}
	}

	for _, g := range p.ItemGroups {
		for _, r := range g.ProjectReferences {
			if r.Name == nil {
				continue
			}
			ref := filepath.Join(dir, filepath.FromSlash(slashPath(strings.TrimSpace(r.Include))))
			out := projectOutputFile(ref, text(r.Name))
			refs.addPath(path.Join(outputDir, out), "", false)
		}
	}

	seen := make(map[string]bool)
	for _, g := range p.ItemGroups {
		for _, c := range g.Compiles {
			f := slashPath(c.Include)
			if strings.HasSuffix(f, ".cs") && !seen[f] {
				seen[f] = true
				s.files = append(s.files, f)
			}
		}
	}
	return s, nil
}

// projectOutputFile returns the file name a referenced project builds to.
func projectOutputFile(file, name string) string {
	out := name + ".dll"
	p, err := readCsproj(file)
	if err != nil {
		log.Warn("referenced project not readable", log.String("project", file), log.Err(err))
		return out
	}
	for _, g := range p.PropertyGroups {
		typ, asm := text(g.OutputType), text(g.AssemblyName)
		if g.OutputType == nil || g.AssemblyName == nil {
			continue
		}
		if typ == "Library" {
			out = asm + ".dll"
		} else {
			out = asm + ".exe"
		}
	}
	return out
}
