package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/timeremap/internal/codec"
	"github.com/roach88/timeremap/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the timeremap CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "timeremap",
		Short: "Time remap keyframe engine",
		Long: `Edit, inspect and verify clip time remap keyframes.

A time remap maps source frames of a clip onto output frames of the
timeline. The map is persisted as the engine's time_map text:
clock(output)=seconds(source) tokens joined by ";".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.init(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (YAML)")

	cmd.AddCommand(NewEncodeCommand(opts))
	cmd.AddCommand(NewDecodeCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewClipCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// init loads the config file and sets up logging on stderr. --verbose
// lowers the level to debug.
func (o *RootOptions) init(stderr io.Writer) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.cfg = &cfg

	level := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(o.logger)
	return nil
}

// settings returns the loaded config, or the defaults when a command runs
// without the root command.
func (o *RootOptions) settings() config.Config {
	if o.cfg == nil {
		return config.Default()
	}
	return *o.cfg
}

func (o *RootOptions) log() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// codecFlags are the frame rate flags shared by commands that encode or
// decode time_map text. Unset flags fall back to the config.
type codecFlags struct {
	fps float64
	pad bool
}

func (f *codecFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.fps, "fps", 0, "frame rate (default from config)")
	cmd.Flags().BoolVar(&f.pad, "pad-last-frame", true, "write the last keyframe one frame late")
}

func (f *codecFlags) codec(cmd *cobra.Command, cfg config.Config) (*codec.Codec, error) {
	fps := cfg.FPS
	if cmd.Flags().Changed("fps") {
		fps = f.fps
	}
	pad := cfg.PadLastFrame
	if cmd.Flags().Changed("pad-last-frame") {
		pad = f.pad
	}
	return codec.New(fps, codec.WithPadLastFrame(pad))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
