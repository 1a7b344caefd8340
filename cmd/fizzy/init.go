package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/eringen/fizzy"
	"github.com/eringen/fizzy/scaffold"
)

var initCmd = &cobra.Command{
	Use:   "init <dir>",
	Short: "Create a new site with config.xml, pages.xml, views and public assets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, _ := cmd.Flags().GetString("backend")
		return runInit(args[0], backend)
	},
}

func init() {
	initCmd.Flags().String("backend", "fizzy", "backend switch (URL segment of the admin area)")
	rootCmd.AddCommand(initCmd)
}

func runInit(dir, backend string) error {
	if _, err := os.Stat(dir); err == nil {
		return errors.Errorf("directory %q already exists", dir)
	}

	data := scaffold.Data{
		SiteName:      toTitle(filepath.Base(dir)),
		BackendSwitch: strings.Trim(backend, "/"),
		HomeUID:       fizzy.NewUID(),
	}

	fmt.Printf("Creating new fizzy site: %s\n\n", dir)

	root := "templates"
	err := fs.WalkDir(scaffold.Templates, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		outPath := strings.TrimSuffix(filepath.Join(dir, relPath), ".tmpl")

		if d.IsDir() {
			return os.MkdirAll(outPath, 0o755)
		}

		content, err := scaffold.Templates.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		tmpl, err := template.New(filepath.Base(path)).Parse(string(content))
		if err != nil {
			return errors.Wrapf(err, "parse template %s", path)
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}
		f, err := os.Create(outPath)
		if err != nil {
			return errors.Wrapf(err, "create %s", outPath)
		}
		defer f.Close()
		if err := tmpl.Execute(f, data); err != nil {
			return errors.Wrapf(err, "execute template %s", path)
		}

		fmt.Printf("  created %s\n", outPath)
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Done! Next steps:")
	fmt.Println()
	fmt.Println("  export FIZZY_ADMIN_PASSWORD=... FIZZY_SESSION_SECRET=...")
	fmt.Printf("  fizzy serve --root %s\n", dir)
	fmt.Printf("  open http://localhost:3000/%s/login\n", data.BackendSwitch)
	return nil
}

// toTitle converts a hyphenated or lowercase name to a title-case string.
// e.g. "my-site" -> "My Site"
func toTitle(s string) string {
	parts := strings.Split(s, "-")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
