// Package config loads the timeremap configuration file.
//
// A config is YAML with strict field checking. Defaults are applied first,
// the file overrides them, and the result is validated against the embedded
// CUE schema:
//
//	fps: 29.97
//	debounce_ms: 500
//	cascade: true
//	pad_last_frame: true
//	database: remap.db
//	log_level: info
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config holds engine and CLI settings.
type Config struct {
	// FPS is the project frame rate used by the codec.
	FPS float64 `yaml:"fps" json:"fps"`

	// DebounceMs is the quiet window before an apply notification.
	DebounceMs int64 `yaml:"debounce_ms" json:"debounce_ms"`

	// Cascade shifts later keyframes along with an output move.
	Cascade bool `yaml:"cascade" json:"cascade"`

	// PadLastFrame writes the last keyframe one frame late.
	PadLastFrame bool `yaml:"pad_last_frame" json:"pad_last_frame"`

	// Database is the SQLite path for clip state. Empty disables storage.
	Database string `yaml:"database" json:"database"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		FPS:          25,
		DebounceMs:   500,
		Cascade:      true,
		PadLastFrame: true,
		LogLevel:     "info",
	}
}

// Error is a config validation failure. Field is the dotted path of the
// offending value, empty when the failure is not tied to one field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
	}
	return "config: " + e.Message
}

// Load reads a config file. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate unifies the config with the schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// Level is the slog level named by LogLevel. Unknown names mean info.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// formatCUEError reduces a CUE error list to its first entry.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	path := first.Path()
	if len(path) == 0 {
		return &Error{Message: first.Error()}
	}
	format, args := first.Msg()
	return &Error{
		Field:   strings.Join(path, "."),
		Message: fmt.Sprintf(format, args...),
	}
}
