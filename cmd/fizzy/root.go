package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/fizzy"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	rootDir string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "fizzy",
	Short:         "fizzy - a micro CMS driven by XML files",
	Long:          `fizzy serves pages stored in pages.xml through plush templates, with routes, layouts and the backend path declared in config.xml.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fizzy version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fizzy %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", fizzy.EnvOr("FIZZY_ROOT", "."), "site root directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// logInject builds the process logger and installs it as zap's global.
// The returned func flushes it.
func logInject() (*zap.Logger, func()) {
	atom := zap.NewAtomicLevel()
	if debug {
		atom.SetLevel(zap.DebugLevel)
	} else {
		atom.SetLevel(zap.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = atom

	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	zap.ReplaceGlobals(logger)
	zap.L().Debug("debug enabled")
	return logger, func() {
		_ = logger.Sync()
	}
}
