package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/llm-d/llm-d-edge-placement/internal/logging"
)

// EnvPrefix is the prefix of the environment variables overriding configuration keys.
// Nested keys use underscores, e.g. EDGE_PLACER_SERVER_ADDRESS.
const EnvPrefix = "EDGE_PLACER"

const (
	DefaultAppsPath         = "data/apps.json"
	DefaultScenariosPath    = "data/scenarios.json"
	DefaultQueriesPath      = "data/test-queries-with-solutions.json"
	DefaultReportPath       = "results.json"
	DefaultServerAddress    = ":8080"
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultScenarioSelector = "1"
)

// DatasetsConfig locates the dataset files.
type DatasetsConfig struct {
	Apps      string `mapstructure:"apps"`
	Scenarios string `mapstructure:"scenarios"`
	Queries   string `mapstructure:"queries"`
}

// ReportConfig locates the results report.
type ReportConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP front-end.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Config is the process configuration of edge-placer.
type Config struct {
	Datasets DatasetsConfig `mapstructure:"datasets"`

	// Profiles is an optional KPI profile file. The built-in profiles are used when empty.
	Profiles string `mapstructure:"profiles"`

	Report ReportConfig `mapstructure:"report"`
	Server ServerConfig `mapstructure:"server"`

	// Scenario selects the node list served by the HTTP front-end.
	Scenario string `mapstructure:"scenario"`

	Log LogConfig `mapstructure:"log"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("datasets.apps", DefaultAppsPath)
	v.SetDefault("datasets.scenarios", DefaultScenariosPath)
	v.SetDefault("datasets.queries", DefaultQueriesPath)
	v.SetDefault("profiles", "")
	v.SetDefault("report.path", DefaultReportPath)
	v.SetDefault("server.address", DefaultServerAddress)
	v.SetDefault("server.shutdownTimeout", DefaultShutdownTimeout)
	v.SetDefault("scenario", DefaultScenarioSelector)
	v.SetDefault("log.level", logging.LevelInfo)
	v.SetDefault("log.development", false)
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"apps":             "datasets.apps",
	"scenarios":        "datasets.scenarios",
	"queries":          "datasets.queries",
	"profiles":         "profiles",
	"report":           "report.path",
	"address":          "server.address",
	"shutdown-timeout": "server.shutdownTimeout",
	"scenario":         "scenario",
	"log-level":        "log.level",
	"log-development":  "log.development",
}

// AddFlags registers the configuration flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a configuration file (yaml, json or toml)")
	fs.String("apps", DefaultAppsPath, "Path to the application table")
	fs.String("scenarios", DefaultScenariosPath, "Path to the scenario node lists")
	fs.String("queries", DefaultQueriesPath, "Path to the queries with expected solutions")
	fs.String("profiles", "", "Path to a KPI profile file; built-in profiles when empty")
	fs.String("report", DefaultReportPath, "Path of the results report")
	fs.String("address", DefaultServerAddress, "Address the HTTP server listens on")
	fs.Duration("shutdown-timeout", DefaultShutdownTimeout, "Grace period for in-flight requests on shutdown")
	fs.String("scenario", DefaultScenarioSelector, "Scenario whose nodes back the live inventory")
	fs.String("log-level", logging.LevelInfo, "Log level: error, info, debug or trace")
	fs.Bool("log-development", false, "Use the development log encoder")
}

// Load resolves the configuration from defaults, an optional file, the
// environment and the flags in fs, in increasing order of precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for invalid configuration values.
func (c *Config) Validate() error {
	var errs []error
	if c.Datasets.Apps == "" {
		errs = append(errs, fmt.Errorf("datasets.apps must not be empty"))
	}
	if c.Datasets.Scenarios == "" {
		errs = append(errs, fmt.Errorf("datasets.scenarios must not be empty"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdownTimeout must be positive, got %v", c.Server.ShutdownTimeout))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// LoggingOptions returns the logger options derived from the configuration.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Development: c.Log.Development}
}
