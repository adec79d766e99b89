package cli

// Config holds the global flags of one CLI instance
type Config struct {
	ConfigFile  string
	ProjectRoot string
	// Verbosity overrides logging.level when set
	Verbosity string
	Version   string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		ProjectRoot: ".",
		Version:     "dev",
	}
}
