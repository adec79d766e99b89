// Package project ties configuration, targets script, template and plan
// together for the CLI
package project

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/jointcomp/jointcomp/internal/engine"
	"github.com/jointcomp/jointcomp/internal/state"
	"github.com/jointcomp/jointcomp/pkg/builders"
	"github.com/jointcomp/jointcomp/pkg/config"
	"github.com/jointcomp/jointcomp/pkg/expand"
	"github.com/jointcomp/jointcomp/pkg/logger"
	"github.com/jointcomp/jointcomp/pkg/plan"
	"github.com/jointcomp/jointcomp/pkg/script"
	"github.com/jointcomp/jointcomp/pkg/template"
	"github.com/jointcomp/jointcomp/pkg/tree"
	"github.com/jointcomp/jointcomp/pkg/types"
)

// Project is a loaded configuration anchored at its directory
type Project struct {
	Config *config.Config
	// Root is the directory relative paths in Config are resolved against
	Root string
	// ConfigFile is the file Config came from, empty for defaults
	ConfigFile string
	Logger     logger.Logger
}

// Open loads the configuration. An explicit configFile must exist; without
// one, root/jointcomp.yaml is used when present and defaults otherwise.
// Keys set in v override the file.
func Open(root, configFile string, v *viper.Viper, log logger.Logger) (*Project, error) {
	if log == nil {
		log = logger.Discard()
	}
	manager := config.NewManager()

	path := configFile
	if path == "" {
		candidate := filepath.Join(root, config.FileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	var cfg *config.Config
	base := root
	if path != "" {
		loaded, err := manager.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		cfg = loaded
		base = filepath.Dir(path)
		log.Debug("Using config file", logger.WithField("file", path))
	} else {
		cfg = manager.GetDefaultConfig()
	}

	if v != nil {
		manager.ApplyOverrides(cfg, v)
		if err := manager.ValidateConfig(cfg); err != nil {
			return nil, err
		}
	}

	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	return &Project{Config: cfg, Root: abs, ConfigFile: path, Logger: log}, nil
}

// Env returns the plan environment
func (p *Project) Env() plan.Env {
	return p.Config.Env(p.Root)
}

// ScriptPath returns the targets file
func (p *Project) ScriptPath() string {
	return p.Config.ScriptPath(p.Root)
}

// Script reads and parses the targets file
func (p *Project) Script() (types.Script, error) {
	path := p.ScriptPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets script: %w", err)
	}
	s, err := script.ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Expand renders the template over the targets script
func (p *Project) Expand() ([]tree.Node, error) {
	s, err := p.Script()
	if err != nil {
		return nil, err
	}
	tpl, err := template.Load(p.Config.TemplatePath(p.Root))
	if err != nil {
		return nil, err
	}
	return expand.Expand(tpl, s), nil
}

// Plan expands and compiles the build plan
func (p *Project) Plan() (*plan.Plan, error) {
	nodes, err := p.Expand()
	if err != nil {
		return nil, err
	}
	compiled, err := plan.Compile(nodes, p.Env())
	if err != nil {
		return nil, fmt.Errorf("failed to compile build plan: %w", err)
	}
	return compiled, nil
}

// WatchPaths lists every file whose change calls for a rebuild
func (p *Project) WatchPaths(compiled *plan.Plan) []string {
	paths := []string{p.ScriptPath()}
	if tpl := p.Config.TemplatePath(p.Root); tpl != "" {
		paths = append(paths, tpl)
	}
	if p.ConfigFile != "" {
		paths = append(paths, p.ConfigFile)
	}
	if compiled != nil {
		paths = append(paths, compiled.WatchPaths()...)
	}
	return paths
}

// State returns the state manager of the output directory
func (p *Project) State() *state.StateManager {
	return state.NewStateManager(p.Env().OutDir, p.Logger)
}

// Engine creates a build engine writing directives to out
func (p *Project) Engine(out io.Writer, runner builders.CommandRunner) *engine.Engine {
	return engine.New(engine.Options{
		Env:         p.Env(),
		Tools:       p.Config.Tools,
		Parallelism: p.Config.Parallelism,
		Logger:      p.Logger,
		Runner:      runner,
		Output:      out,
		LinkPackage: p.Config.LinkPackage,
		State:       p.State(),
	})
}
