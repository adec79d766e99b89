// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jointcomp/jointcomp/pkg/builders"
	"github.com/jointcomp/jointcomp/pkg/plan"
)

// Version is the only configuration version understood
const Version = "1.0"

// FileName is the configuration looked up in the project root
const FileName = "jointcomp.yaml"

// EnvPrefix prefixes environment overrides, e.g. JOINTCOMP_OUTDIR
const EnvPrefix = "JOINTCOMP"

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the project configuration
type Config struct {
	Version string `json:"version" yaml:"version"`
	// Script is the targets file
	Script string `json:"script" yaml:"script"`
	// Template overrides the built-in build template
	Template    string `json:"template,omitempty" yaml:"template,omitempty"`
	OutDir      string `json:"outDir" yaml:"outDir"`
	ManifestDir string `json:"manifestDir" yaml:"manifestDir"`
	// Arch and OS default to the running machine
	Arch        string `json:"arch,omitempty" yaml:"arch,omitempty"`
	OS          string `json:"os,omitempty" yaml:"os,omitempty"`
	Parallelism int    `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`
	// LinkPackage names the package of the generated cgo link file
	LinkPackage   string             `json:"linkPackage,omitempty" yaml:"linkPackage,omitempty"`
	Tools         builders.Tools     `json:"tools" yaml:"tools"`
	Logging       LoggingConfig      `json:"logging" yaml:"logging"`
	Notifications NotificationConfig `json:"notifications" yaml:"notifications"`
	Watch         WatchConfig        `json:"watch" yaml:"watch"`
}

// LoggingConfig selects level and optional log file
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

// NotificationConfig toggles desktop notifications in watch mode
type NotificationConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// WatchConfig tunes watch mode
type WatchConfig struct {
	// SettlingDelay in milliseconds
	SettlingDelay int `json:"settlingDelay" yaml:"settlingDelay"`
}

// SettlingDuration returns the settling delay as a duration
func (w WatchConfig) SettlingDuration() time.Duration {
	return time.Duration(w.SettlingDelay) * time.Millisecond
}

// Env resolves the configuration into a plan environment. Relative
// directories are taken relative to baseDir.
func (c *Config) Env(baseDir string) plan.Env {
	env := plan.Env{
		OutDir:      resolve(baseDir, c.OutDir),
		ManifestDir: resolve(baseDir, c.ManifestDir),
		Arch:        plan.ArchName(c.Arch),
		OS:          c.OS,
	}
	if env.Arch == "" {
		env.Arch = plan.HostArch()
	}
	if env.OS == "" {
		env.OS = plan.HostOS()
	}
	return env
}

// ScriptPath returns the targets file relative to baseDir
func (c *Config) ScriptPath(baseDir string) string {
	return resolve(baseDir, c.Script)
}

// TemplatePath returns the template file, or "" for the built-in one
func (c *Config) TemplatePath(baseDir string) string {
	if c.Template == "" {
		return ""
	}
	return resolve(baseDir, c.Template)
}

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// LoadConfig loads configuration from a file, JSON first, then YAML
func (m *Manager) LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := m.GetDefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		cfg = m.GetDefaultConfig()
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config as JSON or YAML: %w", err)
		}
	}

	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML
func (m *Manager) SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(cfg *Config) error {
	if cfg.Version != Version {
		return fmt.Errorf("%w: unsupported config version: %s", ErrInvalidConfig, cfg.Version)
	}
	if cfg.Script == "" {
		return fmt.Errorf("%w: no targets script", ErrInvalidConfig)
	}
	if cfg.OutDir == "" {
		return fmt.Errorf("%w: no output directory", ErrInvalidConfig)
	}
	if cfg.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism must not be negative", ErrInvalidConfig)
	}
	if cfg.Watch.SettlingDelay < 0 {
		return fmt.Errorf("%w: settling delay must not be negative", ErrInvalidConfig)
	}
	if cfg.Tools.CC == "" || cfg.Tools.AR == "" || cfg.Tools.Objcopy == "" {
		return fmt.Errorf("%w: tools.cc, tools.ar and tools.objcopy must be set", ErrInvalidConfig)
	}
	return nil
}

// GetDefaultConfig returns the configuration written by init
func (m *Manager) GetDefaultConfig() *Config {
	return &Config{
		Version:     Version,
		Script:      "targets.jc",
		OutDir:      "build",
		ManifestDir: ".",
		LinkPackage: "main",
		Tools:       builders.DefaultTools(),
		Logging: LoggingConfig{
			Level: "info",
		},
		Notifications: NotificationConfig{
			Enabled: true,
		},
		Watch: WatchConfig{
			SettlingDelay: 200,
		},
	}
}

// NewEnvViper returns a viper instance reading JOINTCOMP_* variables,
// with nested keys separated by "_" (JOINTCOMP_TOOLS_CC)
func NewEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides copies every key set in v over cfg
func (m *Manager) ApplyOverrides(cfg *Config, v *viper.Viper) {
	strs := map[string]*string{
		"script":        &cfg.Script,
		"template":      &cfg.Template,
		"outdir":        &cfg.OutDir,
		"manifestdir":   &cfg.ManifestDir,
		"arch":          &cfg.Arch,
		"os":            &cfg.OS,
		"linkpackage":   &cfg.LinkPackage,
		"tools.cc":      &cfg.Tools.CC,
		"tools.ar":      &cfg.Tools.AR,
		"tools.objcopy": &cfg.Tools.Objcopy,
		"logging.level": &cfg.Logging.Level,
		"logging.file":  &cfg.Logging.File,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	if v.IsSet("parallelism") {
		cfg.Parallelism = v.GetInt("parallelism")
	}
	if v.IsSet("notifications.enabled") {
		cfg.Notifications.Enabled = v.GetBool("notifications.enabled")
	}
	if v.IsSet("watch.settlingdelay") {
		cfg.Watch.SettlingDelay = v.GetInt("watch.settlingdelay")
	}
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
