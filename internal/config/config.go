package config

import (
	"github.com/creasty/defaults"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-go-library/redis"
	"github.com/icinga/icingad/pkg/command"
	"github.com/icinga/icingad/pkg/maintenance"
	"github.com/pkg/errors"
)

// DefaultConfigPath specifies the default location of icingad's config.yml for package installations.
const DefaultConfigPath = "/etc/icingad/config.yml"

// EnvPrefix prefixes the environment variables which override settings from the config file.
const EnvPrefix = "ICINGAD_"

// Config defines icingad config.
type Config struct {
	Logging logging.Config `yaml:"logging" envPrefix:"LOGGING_"`
	// Objects is the path to the host and service definitions.
	Objects   string              `yaml:"objects" env:"OBJECTS" default:"/etc/icingad/objects.yml"`
	Command   CommandConfig       `yaml:"command" envPrefix:"COMMAND_"`
	Downtimes maintenance.Options `yaml:"downtimes" envPrefix:"DOWNTIMES_"`
	History   HistoryConfig       `yaml:"history" envPrefix:"HISTORY_"`
	HTTP      HTTPConfig          `yaml:"http" envPrefix:"HTTP_"`
	Redis     redis.Config        `yaml:"redis" envPrefix:"REDIS_"`
}

func (c *Config) SetDefaults() {
	// The Redis config struct provides no defaults of its own,
	// so they can only be set here after its fields have been evaluated.
	if defaults.CanUpdate(c.Redis.Host) {
		c.Redis.Host = "localhost"
	}
	if defaults.CanUpdate(c.Redis.Port) {
		c.Redis.Port = 6379
	}
}

// Validate checks constraints in the supplied configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	if c.Objects == "" {
		return errors.New("objects file missing")
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Command.Validate(); err != nil {
		return err
	}
	if err := c.Downtimes.Validate(); err != nil {
		return err
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	if c.Command.Redis.Enabled {
		if err := c.Redis.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// CommandConfig defines where external commands are read from.
type CommandConfig struct {
	// Pipe is the path of the command FIFO. Empty disables it.
	Pipe  string             `yaml:"pipe" env:"PIPE" default:"/run/icingad/cmd/icingad.cmd"`
	Redis CommandRedisConfig `yaml:"redis" envPrefix:"REDIS_"`
}

// CommandRedisConfig defines the Redis stream external commands are read from.
type CommandRedisConfig struct {
	Enabled bool                 `yaml:"enabled" env:"ENABLED"`
	Options command.RedisOptions `yaml:"options" envPrefix:"OPTIONS_"`
}

// Validate checks constraints in the supplied command configuration and returns an error if they are violated.
func (c *CommandConfig) Validate() error {
	if c.Pipe == "" && !c.Redis.Enabled {
		return errors.New("neither command pipe nor Redis stream configured")
	}

	if c.Redis.Enabled {
		return c.Redis.Options.Validate()
	}

	return nil
}

// HistoryConfig defines the history database.
type HistoryConfig struct {
	Driver string `yaml:"driver" env:"DRIVER" default:"sqlite3"`
	// DSN of the history database. Empty disables history.
	DSN string `yaml:"dsn" env:"DSN"`
	// Buffer is the number of events queued before new ones are dropped.
	Buffer int `yaml:"buffer" env:"BUFFER" default:"1024"`
}

// Validate checks constraints in the supplied history configuration and returns an error if they are violated.
func (h *HistoryConfig) Validate() error {
	if h.Driver != "sqlite3" {
		return errors.Errorf("unsupported history driver %q", h.Driver)
	}

	if h.Buffer < 1 {
		return errors.New("history buffer must be at least 1")
	}

	return nil
}

// HTTPConfig defines the metrics and health check listener.
type HTTPConfig struct {
	// Listen address. Empty disables the listener.
	Listen string `yaml:"listen" env:"LISTEN" default:"localhost:9638"`
}

// Flags defines CLI flags.
//
// Flags implements the [github.com/icinga/icinga-go-library/config.Flags] interface.
type Flags struct {
	// Version decides whether to just print the version and exit.
	Version bool `long:"version" description:"print version and exit"`

	// Config is the path to the config file. If not provided, it defaults to DefaultConfigPath.
	Config string `short:"c" long:"config" description:"path to config file (default: /etc/icingad/config.yml)"`
	// default must be kept in sync with DefaultConfigPath.
}

// GetConfigPath retrieves the path to the configuration file.
// It returns the path specified via the command line, or DefaultConfigPath if none is provided.
//
// GetConfigPath implements parts of the [github.com/icinga/icinga-go-library/config.Flags] interface.
func (f Flags) GetConfigPath() string {
	if f.Config == "" {
		return DefaultConfigPath
	}

	return f.Config
}

// IsExplicitConfigPath indicates whether the configuration file path was explicitly set.
//
// IsExplicitConfigPath implements parts of the [github.com/icinga/icinga-go-library/config.Flags] interface.
func (f Flags) IsExplicitConfigPath() bool {
	return f.Config != ""
}
