package config

const (
	defaultUserConfigPath = "~/.config/conceptid/config.toml"
	legacyConfigName      = "config.json"
	projectConfigName     = "conceptid.toml"
	defaultTimeoutSeconds = 30
	defaultOutputDir      = "."
	defaultOutputPrefix   = "updated_concepts"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Output: Output{
			Dir:    defaultOutputDir,
			Prefix: defaultOutputPrefix,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
