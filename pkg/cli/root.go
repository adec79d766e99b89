// Package cli provides the command-line interface for jointcomp
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jointcomp/jointcomp/internal/project"
	"github.com/jointcomp/jointcomp/pkg/builders"
	"github.com/jointcomp/jointcomp/pkg/config"
	"github.com/jointcomp/jointcomp/pkg/logger"
)

// CLI holds the command tree and its outputs so tests can run commands
// without global state
type CLI struct {
	config   *Config
	rootCmd  *cobra.Command
	logger   logger.Logger
	console  *logger.ConsoleLogger
	output   io.Writer
	errorOut io.Writer
	// runner replaces real tool execution when set
	runner builders.CommandRunner
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	cli := &CLI{
		config:   cfg,
		output:   os.Stdout,
		errorOut: os.Stderr,
		logger:   logger.Discard(),
	}
	cli.console = logger.NewConsoleLogger(cli.output, cli.errorOut)

	cli.setupCommands()
	return cli
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	cli := NewCLI(cfg)
	cli.output = output
	cli.errorOut = errorOut
	cli.console = logger.NewConsoleLogger(output, errorOut)
	cli.rootCmd.SetOut(output)
	cli.rootCmd.SetErr(errorOut)
	return cli
}

// SetRunner replaces the command runner used by builders
func (c *CLI) SetRunner(r builders.CommandRunner) {
	c.runner = r
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.Execute()
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "jointcomp",
		Short: "Build native assembly and linker targets from a declarative script",
		Long: `jointcomp reads a targets script, expands it through a build template
and builds every declared target: assembly sources become static
libraries, linker scripts and maps become link arguments.

Link directives are printed to stdout, one "jointcomp:<directive>" per line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("jointcomp v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newParseCmd())
	c.rootCmd.AddCommand(c.newExpandCmd())
	c.rootCmd.AddCommand(c.newPlanCmd())
	c.rootCmd.AddCommand(c.newBuildCmd())
	c.rootCmd.AddCommand(c.newWatchCmd())
	c.rootCmd.AddCommand(c.newValidateCmd())
	c.rootCmd.AddCommand(c.newStatusCmd())
	c.rootCmd.AddCommand(c.newLogsCmd())
	c.rootCmd.AddCommand(c.newCleanCmd())
	c.rootCmd.AddCommand(c.newInitCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", "", "config file (default: "+config.FileName+" in the project root)")
	flags.StringVar(&c.config.ProjectRoot, "root", c.config.ProjectRoot, "project root directory")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", "", "log level (debug, info, warn, error)")
}

// openProject loads configuration with JOINTCOMP_* overrides and creates
// the logger it asks for
func (c *CLI) openProject() (*project.Project, error) {
	p, err := project.Open(c.config.ProjectRoot, c.config.ConfigFile, config.NewEnvViper(), nil)
	if err != nil {
		return nil, err
	}

	level := p.Config.Logging.Level
	if c.config.Verbosity != "" {
		level = c.config.Verbosity
	}
	logFile := p.Config.Logging.File
	if logFile != "" && !filepath.IsAbs(logFile) {
		logFile = filepath.Join(p.Root, logFile)
	}

	if c.errorOut == os.Stderr {
		c.logger = logger.CreateLogger(logFile, level)
	} else {
		c.logger = logger.CreateLoggerWithOutput(logFile, level, c.errorOut)
	}
	p.Logger = c.logger
	return p, nil
}

func (c *CLI) printSuccess(message string) {
	c.console.Success(message)
}

func (c *CLI) printInfo(message string) {
	c.console.Info(message)
}

func (c *CLI) printWarning(message string) {
	c.console.Warn(message)
}

func (c *CLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.output, format, args...)
}
