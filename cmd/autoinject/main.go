package main

import (
	"os"

	"github.com/ListenOcean/hookinjector/configs"
	"github.com/ListenOcean/hookinjector/internal/log"
	"github.com/ListenOcean/hookinjector/internal/rewrite"
	"github.com/ListenOcean/hookinjector/internal/rewrite/project"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:               "autoinject",
	Short:             "Inject memory and profiler hooks into source code.",
	Version:           configs.Version,
	TraverseChildren:  true,
	DisableAutoGenTag: true,
}

func init() {
	rootCmd.AddCommand(rewrite.RewriteCmd)
	rootCmd.AddCommand(rewrite.RulesCmd)
}

func main() {
	log.InitConsole(false)

	if err := rootCmd.Execute(); err != nil {
		rewrite.ExitCode = project.Exception
	}
	// 同步日志
	_ = log.Sync()
	os.Exit(int(rewrite.ExitCode))
}
