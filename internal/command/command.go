package command

import (
	"github.com/icinga/icinga-go-library/config"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-go-library/redis"
	"github.com/icinga/icinga-go-library/utils"
	"github.com/icinga/icingad/internal"
	icingadconfig "github.com/icinga/icingad/internal/config"
	"github.com/icinga/icingad/pkg/checkable"
	"github.com/icinga/icingad/pkg/history"
	"github.com/pkg/errors"
	"os"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Command provides factories for creating the Redis client, history writer and object definitions from Config.
type Command struct {
	Flags   icingadconfig.Flags
	Config  icingadconfig.Config
	Logging *logging.Logging
	Logger  *logging.Logger
}

// New creates and returns a new Command, parses CLI flags, loads the config from the YAML file
// and the environment and initializes logging.
// It exits the process if any of that fails and after printing the version if requested.
func New() *Command {
	var flags icingadconfig.Flags
	if err := config.ParseFlags(&flags); err != nil {
		if errors.Is(err, config.ErrInvalidArgument) {
			panic(err)
		}

		utils.PrintErrorThenExit(err, ExitFailure)
	}

	if flags.Version {
		internal.Version.Print(os.Stdout, utils.AppName())
		os.Exit(0)
	}

	var cfg icingadconfig.Config
	err := config.Load(&cfg, config.LoadOptions{
		Flags:      flags,
		EnvOptions: config.EnvOptions{Prefix: icingadconfig.EnvPrefix},
	})
	if err != nil {
		if errors.Is(err, config.ErrInvalidArgument) {
			panic(err)
		}

		utils.PrintErrorThenExit(err, ExitFailure)
	}

	logs, err := logging.NewLoggingFromConfig(utils.AppName(), cfg.Logging)
	if err != nil {
		utils.PrintErrorThenExit(errors.Wrap(err, "can't configure logging"), ExitFailure)
	}

	return &Command{
		Flags:   flags,
		Config:  cfg,
		Logging: logs,
		Logger:  logs.GetLogger(),
	}
}

// Definitions loads the configured object definitions.
func (c Command) Definitions() (*checkable.Definitions, error) {
	return checkable.LoadDefinitions(c.Config.Objects)
}

// Redis creates and returns a new Redis client from config.Config.
func (c Command) Redis() *redis.Client {
	rc, err := redis.NewClientFromConfig(&c.Config.Redis, c.Logging.GetChildLogger("redis"))
	if err != nil {
		c.Logger.Fatalf("%+v", errors.Wrap(err, "can't create Redis client from config"))
	}

	return rc
}

// History opens the configured history database. It returns nil if history is disabled.
func (c Command) History() *history.Writer {
	if c.Config.History.DSN == "" {
		return nil
	}

	w, err := history.Open(
		c.Config.History.Driver, c.Config.History.DSN, c.Config.History.Buffer, c.Logging.GetChildLogger("history"),
	)
	if err != nil {
		c.Logger.Fatalf("%+v", errors.Wrap(err, "can't open history database"))
	}

	return w
}
