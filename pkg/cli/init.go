package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jointcomp/jointcomp/pkg/config"
	"github.com/jointcomp/jointcomp/pkg/template"
)

const starterScript = `// Targets, one declaration per type:
//   Type { "source", "source" : "dependency", "dependency" };
// "$" in a path is replaced by the target architecture.
// Sources live in src/, dependencies are relative to the project root.
//
// A dependency list runs until the next entry with its own ":", so list
// targets without dependencies first:
//   GccAsm { "plain.S", "a.S" : "a.h", "b.S" : "b.h" };
// In GccAsm { "a.S" : "a.h", "plain.S" } plain.S is a dependency of a.S.

GccAsm { "entry.S" };
LinkerScript { "link-$.lds" };
`

func (c *CLI) newInitCmd() *cobra.Command {
	var force bool
	var withTemplate bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter configuration and targets script",
		Long: `Create ` + config.FileName + ` and a starter targets script in the project
root. With --template the built-in build template is written too, so it can
be customized.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(force, withTemplate)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing files")
	cmd.Flags().BoolVar(&withTemplate, "template", false, "also write the build template")
	return cmd
}

func (c *CLI) runInit(force, withTemplate bool) error {
	manager := config.NewManager()
	cfg := manager.GetDefaultConfig()

	configPath := c.config.ConfigFile
	if configPath == "" {
		configPath = filepath.Join(c.config.ProjectRoot, config.FileName)
	}
	// relative paths in the config are resolved against its directory
	root := filepath.Dir(configPath)
	if withTemplate {
		cfg.Template = "build.jct"
	}

	files := map[string]string{
		filepath.Join(root, cfg.Script): starterScript,
	}
	if withTemplate {
		files[filepath.Join(root, cfg.Template)] = template.Default()
	}

	if !force {
		for _, path := range append([]string{configPath}, keys(files)...) {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists. Use --force to overwrite", path)
			}
		}
	}

	if err := manager.SaveConfig(configPath, cfg); err != nil {
		return err
	}
	for path, body := range files {
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	c.printSuccess(fmt.Sprintf("Created configuration at %s", configPath))
	c.printInfo(fmt.Sprintf("Declare your targets in %s", cfg.Script))
	return nil
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
