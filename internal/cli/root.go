package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Config is resolved before any subcommand runs. Commands built on
	// their own, as in tests, fall back to DefaultConfig.
	Config *Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func (o *RootOptions) config() Config {
	if o.Config == nil {
		return DefaultConfig()
	}
	return *o.Config
}

// logger returns the logger handed to the type layer: debug events when
// verbose, warnings otherwise, always on stderr.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// NewRootCommand creates the root command for the lockdown CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "lockdown",
		Short: "lockdown - structural runtime types",
		Long: `Check type and function signatures of a gradually and structurally
typed runtime, record the verdicts, and run manager scenarios.

Configuration is read from lockdown.yaml (or --config) and LOCKDOWN_*
environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := loadConfig(opts.ConfigFile, v)
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeConfig, err)
			}
			opts.Config = &cfg
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default: ./lockdown.yaml)")
	cmd.PersistentFlags().String("db", "", "verdict store path (empty disables recording)")
	_ = v.BindPFlag(cfgKeyDB, cmd.PersistentFlags().Lookup("db"))

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewSubtypeCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}
