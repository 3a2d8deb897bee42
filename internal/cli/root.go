package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/convoscript/internal/config"
)

// RootOptions holds global flags and the state resolved from them.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DB         string

	// Config and Logger are set by the root command before any subcommand
	// runs. Subcommands built on their own (tests) fall back to defaults
	// with history disabled.
	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the convoscript CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "convoscript",
		Short: "Golden transcript tests for conversational bots",
		Long: `Record a bot conversation once as a golden transcript, then replay the
same inputs on every run and fail on any difference in its replies.

A failed verification writes a fresh transcript next to the golden one
(<name>-new.script) for diffing; the golden file is never touched.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./"+config.DefaultFile+" if present)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "run history database (overrides history_db)")

	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// resolve validates flags, loads configuration and installs the logger.
func (o *RootOptions) resolve(stderr io.Writer) error {
	if !slices.Contains(ValidFormats, o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.ConfigPath, "")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.DB != "" {
		cfg.HistoryDB = o.DB
	}
	o.Config = &cfg

	level, err := cfg.Level()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		o.Logger = slog.New(slog.NewJSONHandler(stderr, handlerOpts))
	} else {
		o.Logger = slog.New(slog.NewTextHandler(stderr, handlerOpts))
	}
	return nil
}

func (o *RootOptions) config() config.Config {
	if o.Config != nil {
		return *o.Config
	}
	cfg := config.Default()
	cfg.HistoryDB = o.DB
	return cfg
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:  o.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: o.Verbose,
	}
}
