package main

import (
	"fmt"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/eringen/fizzy"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load config.xml and pages.xml and print the route table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := fizzy.LoadConfig(filepath.Join(rootDir, "config.xml"))
		if err != nil {
			return err
		}
		store, err := fizzy.LoadStore(filepath.Join(rootDir, "pages.xml"))
		if err != nil {
			return err
		}

		noop := func(c echo.Context) error { return nil }
		actions := make(map[string]echo.HandlerFunc)
		for _, name := range fizzy.ActionNames {
			actions[name] = noop
		}
		regs, err := fizzy.BuildRoutes(cfg, echo.New(), actions)
		if err != nil {
			return err
		}

		fmt.Printf("env:     %s\n", cfg.Env())
		fmt.Printf("backend: /%s\n", cfg.BackendSwitch())
		fmt.Printf("pages:   %d\n\n", len(store.All()))
		for _, r := range regs {
			scope := "frontend"
			if r.Backend {
				scope = "backend"
			}
			fmt.Printf("  %-5s %-30s %-15s %s\n", r.Method, r.Path, r.Destination, scope)
		}
		if _, err := store.Homepage(); err != nil {
			fmt.Printf("\nwarning: %v\n", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
