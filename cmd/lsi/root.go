package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"lsi/internal/config"
	"lsi/internal/logger"
)

// app holds what the persistent pre-run resolves for the subcommands.
type app struct {
	out        io.Writer
	configPath string
	logLevel   string
	logFormat  string

	cfg config.Config
	log logger.Logger
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out}

	cmd := &cobra.Command{
		Use:           "lsi",
		Short:         "process-wide string interner",
		Long:          `lsi interns newline-separated text corpora and reports on the resulting table.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			cmd.SetContext(logger.WithLogger(cmd.Context(), a.log))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	cmd.SetOut(out)

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a yaml config file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "log format (json or console)")

	cmd.AddCommand(
		newLoadCommand(a),
		newServeCommand(a),
		newVersionCommand(a),
	)
	return cmd
}

// setup resolves configuration in order: defaults, file, environment, flags.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.NewLoggerWithComponent(cfg.Log, "cli")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.cfg = cfg
	a.log = log
	return nil
}
