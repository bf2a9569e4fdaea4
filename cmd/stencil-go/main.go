package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"stencil-go/packages/compiler/src/config"
	"stencil-go/packages/compiler/src/engine"
)

var (
	flagRoot     string
	flagConfig   string
	flagCacheDir string
	flagDebug    bool
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "stencil-go",
	Short: "Compile and render stencil templates",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagRoot, "root", "r", ".", "template root directory")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "persist compiled units and fragments under this directory")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug mode (freshness checks)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(compileCmd, renderCmd, watchCmd, benchCmd)
}

// newLogger builds the process logger from the verbosity flags
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadOptions loads compile options from the config file, or defaults
func loadOptions() (*config.Options, error) {
	var opts *config.Options
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
		opts = loaded
	} else {
		opts = config.Default()
	}
	if flagDebug {
		opts.Debug = true
	}
	return opts, nil
}

// newEngine builds an engine from the command-line flags
func newEngine() (*engine.Engine, *config.Options, error) {
	opts, err := loadOptions()
	if err != nil {
		return nil, nil, err
	}
	engineOpts := []engine.Option{engine.WithLogger(newLogger())}
	if flagCacheDir != "" {
		engineOpts = append(engineOpts, engine.WithCacheDir(flagCacheDir))
	}
	eng, err := engine.New(flagRoot, opts, engineOpts...)
	if err != nil {
		return nil, nil, err
	}
	return eng, opts, nil
}
