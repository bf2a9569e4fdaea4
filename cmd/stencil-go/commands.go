package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"stencil-go/packages/compiler/src/engine"
)

var (
	flagBindings string
	flagOutput   string
	flagCount    int
)

var compileCmd = &cobra.Command{
	Use:   "compile <template>",
	Short: "Compile a template and report its dependencies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()
		start := time.Now()
		unit, err := eng.Compile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("compiled %s in %s\n", unit.Path(), time.Since(start).Round(time.Microsecond))
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Render a template with a JSON bindings map",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()
		bindings, err := parseBindings(flagBindings)
		if err != nil {
			return err
		}
		rendered, err := eng.Render(cmd.Context(), args[0], bindings)
		if err != nil {
			return err
		}
		if flagOutput != "" {
			return os.WriteFile(flagOutput, []byte(rendered), 0644)
		}
		fmt.Print(rendered)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the template root and recompile on change",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, opts, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()
		logger := newLogger()
		watcher, err := engine.NewWatcher(flagRoot, opts, logger)
		if err != nil {
			return err
		}
		defer watcher.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		logger.Info("watching templates", "root", flagRoot)
		err = watcher.Run(ctx, func(path string) {
			if _, err := eng.Compile(ctx, path); err != nil {
				logger.Error("recompile failed", "template", path, "error", err.Error())
				return
			}
			logger.Info("recompiled", "template", path)
		})
		if err == context.Canceled {
			return nil
		}
		return err
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench <template>",
	Short: "Render a template repeatedly and report timing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()
		bindings, err := parseBindings(flagBindings)
		if err != nil {
			return err
		}
		unit, err := eng.Compile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		start := time.Now()
		for i := 0; i < flagCount; i++ {
			if _, err := unit.Render(cmd.Context(), bindings); err != nil {
				return err
			}
		}
		elapsed := time.Since(start)
		fmt.Printf("%d renders in %s (%s/render)\n", flagCount, elapsed.Round(time.Millisecond), (elapsed / time.Duration(flagCount)).Round(time.Microsecond))
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&flagBindings, "bindings", "b", "", "JSON bindings map, or @file")
	renderCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write the rendered output to a file")
	benchCmd.Flags().StringVarP(&flagBindings, "bindings", "b", "", "JSON bindings map, or @file")
	benchCmd.Flags().IntVarP(&flagCount, "count", "n", 1000, "number of renders")
}

// parseBindings decodes the bindings flag: inline JSON, or @path to a JSON
// file.
func parseBindings(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	data := []byte(raw)
	if raw[0] == '@' {
		loaded, err := os.ReadFile(raw[1:])
		if err != nil {
			return nil, err
		}
		data = loaded
	}
	var bindings map[string]interface{}
	if err := json.Unmarshal(data, &bindings); err != nil {
		return nil, fmt.Errorf("parse bindings: %w", err)
	}
	return bindings, nil
}
