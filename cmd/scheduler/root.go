package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/resource-scheduler/internal/config"
	"github.com/example/resource-scheduler/internal/logging"
)

// cli holds what every command shares once flags and settings are parsed.
type cli struct {
	in         io.Reader
	out        io.Writer
	errOut     io.Writer
	configFile string
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	c := &cli{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "scheduler",
		Short:         "Resource availability and critical path scheduling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (yaml, json or toml)")
	flags.String("dsn", "", `SQLite database path, or "memory"`)
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "json or text")

	root.AddCommand(
		newServeCommand(c),
		newMigrateCommand(c),
		newPlanCommand(c),
		newCalendarCommand(c),
		newHashTokenCommand(c),
	)
	return root
}

// init loads settings. Flags win over the environment, which wins over the
// config file.
func (c *cli) init(cmd *cobra.Command) error {
	v, err := config.NewViper(c.configFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd, map[string]string{
		"dsn":        config.KeySQLiteDSN,
		"log-level":  config.KeyLogLevel,
		"log-format": config.KeyLogFormat,
	}); err != nil {
		return err
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	logger, err := logging.New(c.errOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = logger
	return nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			f = cmd.InheritedFlags().Lookup(flag)
		}
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}
