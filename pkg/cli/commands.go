package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jointcomp/jointcomp/internal/engine"
	"github.com/jointcomp/jointcomp/internal/state"
	"github.com/jointcomp/jointcomp/pkg/builders"
	"github.com/jointcomp/jointcomp/pkg/tree"
)

func (c *CLI) newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse",
		Short: "Parse the targets script and print it as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			s, err := p.Script()
			if err != nil {
				return err
			}
			return c.printYAML(s)
		},
	}
}

func (c *CLI) newExpandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expand",
		Short: "Print the build template expanded over the targets script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			nodes, err := p.Expand()
			if err != nil {
				return err
			}
			c.printf("%s\n", tree.Render(nodes))
			return nil
		},
	}
}

func (c *CLI) newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the resolved build steps for the configured arch and OS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			compiled, err := p.Plan()
			if err != nil {
				return err
			}
			return c.printYAML(compiled)
		},
	}
}

func (c *CLI) newBuildCmd() *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every target once and print link directives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("jobs") {
				p.Config.Parallelism = jobs
			}
			compiled, err := p.Plan()
			if err != nil {
				return err
			}
			_, err = p.Engine(c.output, c.runner).Run(cmd.Context(), compiled)
			return err
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "maximum concurrent builders (0: one per target)")
	return cmd
}

func (c *CLI) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check configuration, script, template and sources without building",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			compiled, err := p.Plan()
			if err != nil {
				return err
			}
			if err := p.Engine(nil, c.runner).Validate(compiled); err != nil {
				return err
			}
			c.printSuccess(fmt.Sprintf("%s is valid: %d target(s)", filepath.Base(p.ScriptPath()), len(compiled.Steps)))
			return nil
		},
	}
}

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last build of every target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			states, err := p.State().DiscoverStates()
			if err != nil {
				return fmt.Errorf("failed to discover states: %w", err)
			}
			if len(states) == 0 {
				c.printWarning("No builds recorded. Run 'jointcomp build' first.")
				return nil
			}
			c.printStatus(states)
			return nil
		},
	}
}

func (c *CLI) printStatus(states []*state.TargetState) {
	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tTYPE\tSTATUS\tLAST BUILD\tDURATION\tBUILDS\tFAILURES")
	fmt.Fprintln(w, "------\t----\t------\t----------\t--------\t------\t--------")

	for _, s := range states {
		lastBuild := "-"
		if !s.LastBuildTime.IsZero() {
			lastBuild = s.LastBuildTime.Format("15:04:05")
		}

		status := string(s.BuildStatus)
		statusColor := color.WhiteString(status)
		switch s.BuildStatus {
		case state.BuildStatusSucceeded:
			statusColor = color.GreenString(status)
		case state.BuildStatusFailed:
			statusColor = color.RedString(status)
		case state.BuildStatusBuilding:
			statusColor = color.YellowString(status)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			s.TargetName,
			s.Type,
			statusColor,
			lastBuild,
			s.BuildDuration.Round(time.Millisecond),
			s.BuildCount,
			s.FailureCount,
		)
	}
	w.Flush()

	for _, s := range states {
		if s.BuildStatus == state.BuildStatusFailed && s.LastError != "" {
			fmt.Fprintf(c.output, "\n%s: %s\n", color.RedString(s.TargetName), s.LastError)
		}
	}
}

func (c *CLI) newLogsCmd() *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "logs [target]",
		Short: "Show build logs",
		Long:  `Show the tail of a target's build log, or of every target's log.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			target := ""
			if len(args) > 0 {
				target = args[0]
			}
			return c.runLogs(p.Env().OutDir, target, lines)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")
	return cmd
}

func (c *CLI) runLogs(outDir, target string, lines int) error {
	logDir := filepath.Join(outDir, builders.LogDir)
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		c.printWarning("No logs found. Run 'jointcomp build' to start logging.")
		return nil
	}

	var logFiles []string
	if target != "" {
		logFile := builders.LogPath(outDir, target)
		if _, err := os.Stat(logFile); os.IsNotExist(err) {
			return fmt.Errorf("no logs found for target: %s", target)
		}
		logFiles = []string{logFile}
	} else {
		entries, err := os.ReadDir(logDir)
		if err != nil {
			return fmt.Errorf("failed to read log directory: %w", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".log" {
				logFiles = append(logFiles, filepath.Join(logDir, entry.Name()))
			}
		}
		if len(logFiles) == 0 {
			c.printWarning("No log files found")
			return nil
		}
	}

	for _, logFile := range logFiles {
		content, err := readLastNLines(logFile, lines)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", filepath.Base(logFile), err)
		}
		c.printf("=== %s ===\n%s", strings.TrimSuffix(filepath.Base(logFile), ".log"), content)
	}
	return nil
}

func readLastNLines(filename string, n int) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", nil
	}
	return strings.Join(lines, "\n") + "\n", nil
}

func (c *CLI) newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove recorded artifacts, logs and state",
		Long: `Remove every artifact recorded by previous builds, the generated link
file, and the logs and state kept in the output directory. Other files in
the output directory are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			return c.runClean(p.Env().OutDir, p.State())
		},
	}
}

func (c *CLI) runClean(outDir string, sm *state.StateManager) error {
	states, err := sm.DiscoverStates()
	if err != nil {
		return fmt.Errorf("failed to discover states: %w", err)
	}

	removed := 0
	remove := func(path string) error {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
		return nil
	}

	for _, s := range states {
		for _, artifact := range s.Artifacts {
			if _, err := os.Stat(artifact); err != nil {
				continue
			}
			if err := remove(artifact); err != nil {
				return err
			}
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, engine.LinkFileName)); err == nil {
		if err := remove(filepath.Join(outDir, engine.LinkFileName)); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(filepath.Join(outDir, ".jointcomp")); err != nil {
		return fmt.Errorf("failed to remove build records: %w", err)
	}

	c.printSuccess(fmt.Sprintf("Removed %d file(s) and build records from %s", removed, outDir))
	return nil
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			c.printf("jointcomp v%s\n", c.config.Version)
		},
	}
}

func (c *CLI) printYAML(v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = c.output.Write(data)
	return err
}
