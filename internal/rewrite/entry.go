// Package rewrite holds the command line surface of the injector.
package rewrite

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ListenOcean/hookinjector/configs"
	"github.com/ListenOcean/hookinjector/internal/log"
	"github.com/ListenOcean/hookinjector/internal/rewrite/project"
	"github.com/ListenOcean/hookinjector/internal/rewrite/rules"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type rewriteFlags struct {
	out           string
	config        string
	project       string
	lang          string
	systemDllPath string
	src           string
	defines       []string
	undefines     []string
	refByName     []string
	refByPath     []string
	excludes      []string
	outputResult  bool
	parallel      bool
	verbose       bool
}

var globalFlags rewriteFlags

// ExitCode is the exit code of the last command, read by main.
var ExitCode = project.Success

var RewriteCmd = &cobra.Command{
	Use:          "rewrite [flags] <file|project|dir>",
	Short:        "Inject hook calls into the method bodies of a C# or Go project.",
	Args:         cobra.ExactArgs(1),
	RunE:         RewriteEntry,
	SilenceUsage: true,
}

var RulesCmd = &cobra.Command{
	Use:          "rules [config]",
	Short:        "Load a rule configuration and print it.",
	Args:         cobra.MaximumNArgs(1),
	RunE:         RulesEntry,
	SilenceUsage: true,
}

func init() {
	f := RewriteCmd.Flags()
	f.StringVar(&globalFlags.out, "out", "", "output directory, relative to the input directory (default \""+configs.DefaultOutputDir+"\")")
	f.StringArrayVarP(&globalFlags.defines, "define", "d", nil, "preprocessor symbol or build tag")
	f.StringArrayVarP(&globalFlags.undefines, "undef", "u", nil, "remove a symbol defined by the project")
	f.StringArrayVar(&globalFlags.refByName, "refbyname", nil, "assembly reference, name[=alias]")
	f.StringArrayVar(&globalFlags.refByPath, "refbypath", nil, "assembly reference, path[=alias]")
	f.StringVar(&globalFlags.systemDllPath, "systemdllpath", "", "directory of the framework assemblies")
	f.StringVar(&globalFlags.src, "src", "", "directory source paths are resolved against")
	f.BoolVar(&globalFlags.outputResult, "outputresult", false, "print the rewritten sources")
	f.BoolVar(&globalFlags.parallel, "parallel", false, "parse files concurrently")
	f.StringVar(&globalFlags.config, "config", "", "rule configuration, DSL or YAML")
	f.StringVar(&globalFlags.project, "project", "", "rule project id, the project name by default")
	f.StringVar(&globalFlags.lang, "lang", "", "source language, csharp or go")
	f.StringArrayVar(&globalFlags.excludes, "exclude", nil, "glob of source paths to skip")
	f.BoolVarP(&globalFlags.verbose, "verbose", "v", false, "debug logging")
}

func RewriteEntry(cmd *cobra.Command, args []string) error {
	start := time.Now()
	w := cmd.OutOrStdout()
	initLog(args[0], globalFlags.verbose)
	log.Debug("Program Args.", log.String("args", strings.Join(os.Args, ", ")))

	ExitCode = guard(w, func() (project.ExitCode, error) {
		return runRewrite(cmd.Context(), args[0], &globalFlags, w)
	})
	fmt.Fprintf(w, "RunningTime: %vs\n", time.Since(start).Seconds())
	log.Info("rewrite exit", log.Stringer("code", ExitCode))
	return nil
}

func RulesEntry(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	ExitCode = guard(w, func() (project.ExitCode, error) {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		table, err := loadRules(resolveConfig(path))
		if err != nil {
			return project.Exception, err
		}
		fmt.Fprint(w, table.String())
		return project.Success, nil
	})
	return nil
}

// initLog puts the run log next to the other logs of the input. A missing
// input logs to the console only.
func initLog(input string, verbose bool) {
	abs, err := filepath.Abs(input)
	if err != nil {
		log.InitConsole(verbose)
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		log.InitConsole(verbose)
		return
	}
	dir := abs
	if !info.IsDir() {
		dir = filepath.Dir(abs)
	}
	log.Init(filepath.Join(dir, configs.LogDirName), verbose)
}

func runRewrite(ctx context.Context, input string, f *rewriteFlags, stdout io.Writer) (project.ExitCode, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	table, err := loadRules(resolveConfig(f.config))
	if err != nil {
		return project.Exception, err
	}
	return project.Run(ctx, f.options(input, table, stdout))
}

func (f *rewriteFlags) options(input string, table *rules.Table, stdout io.Writer) *project.Options {
	return &project.Options{
		Input:         input,
		OutputDir:     f.out,
		Defines:       f.defines,
		Undefines:     f.undefines,
		RefByName:     f.refByName,
		RefByPath:     f.refByPath,
		SystemDllPath: f.systemDllPath,
		SourceRoot:    f.src,
		OutputResult:  f.outputResult,
		Parallel:      f.parallel,
		Project:       f.project,
		Lang:          f.lang,
		Excludes:      f.excludes,
		Rules:         table,
		Stdout:        stdout,
	}
}

// resolveConfig returns the rule file to load: the flag value, then the
// environment, then the default file beside the executable. Empty when
// none applies.
func resolveConfig(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(configs.TagCustomConfig); env != "" {
		return env
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	p := filepath.Join(filepath.Dir(exe), configs.DefaultConfigName)
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func loadRules(path string) (*rules.Table, error) {
	if path == "" {
		log.Warn("Found no config, nothing will be instrumented.")
		return rules.NewTable(), nil
	}
	table, err := rules.Load(path)
	if err != nil {
		return nil, err
	}
	log.Info("rules loaded", log.String("config", path), log.Int("rules", table.Len()))
	return table, nil
}

// guard runs fn and turns its error, or a panic, into an exit code. Errors
// other than a missing input are reported as an exception.
func guard(w io.Writer, fn func() (project.ExitCode, error)) (code project.ExitCode) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = errors.Errorf("%v", r)
			}
			code = reportException(w, errors.WithStack(err))
		}
	}()

	code, err := fn()
	if err == nil {
		return code
	}
	if code == project.FileNotFound {
		fmt.Fprintf(w, "file not found: %s\n", err)
		log.Error("input not found", log.Err(err))
		return code
	}
	return reportException(w, err)
}

func reportException(w io.Writer, err error) project.ExitCode {
	fmt.Fprintln(w, "exception:")
	seen := make(map[string]bool)
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if seen[msg] {
			continue
		}
		seen[msg] = true
		fmt.Fprintf(w, "\t%s\n", msg)
	}
	log.Debug("exception", log.String("stack", fmt.Sprintf("%+v", err)))
	return project.Exception
}
