// Package logging provides structured logging using zerolog.
//
// A process logs through the package-level Logger. Components take a
// child logger from Component at construction time and tag their events
// with the shared field names below, so a session's history can be
// followed across the manager, the option store and the tool catalog by
// filtering on one field.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level represents log levels.
type Level = zerolog.Level

// Log levels exposed for convenience.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Field names shared across components.
const (
	FieldComponent = "component"
	FieldSession   = "session"
	FieldStep      = "step"
	FieldServer    = "server"
)

var levelNames = map[string]Level{
	"DEBUG":   DebugLevel,
	"INFO":    InfoLevel,
	"WARN":    WarnLevel,
	"WARNING": WarnLevel,
	"ERROR":   ErrorLevel,
	"FATAL":   FatalLevel,
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Pretty enables human-readable console output.
	Pretty bool
	// TimeFormat specifies the time format. Defaults to RFC3339.
	TimeFormat string
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// New builds a logger from cfg without touching the global one.
func New(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	output := cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: cfg.TimeFormat}
	}
	return zerolog.New(output).Level(cfg.Level).With().Timestamp().Logger()
}

// Init replaces the global logger. Component loggers created earlier keep
// the previous output but follow the level, which is process-wide.
func Init(cfg Config) {
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}
	SetLevel(cfg.Level)
	cfg.Level = zerolog.TraceLevel
	Logger = New(cfg)
}

// SetLevel changes the minimum level of every logger in the process,
// including component loggers that already exist.
func SetLevel(level Level) {
	zerolog.SetGlobalLevel(level)
}

// Configure initialises the global logger from the string level and pretty
// flag found in configuration files.
func Configure(level string, pretty bool, w io.Writer) {
	Init(Config{Level: ParseLevel(level), Output: w, Pretty: pretty})
}

// ParseLevel parses a log level string (case-insensitive).
// Returns InfoLevel if the string is not recognized.
func ParseLevel(level string) Level {
	if l, ok := levelNames[strings.ToUpper(strings.TrimSpace(level))]; ok {
		return l
	}
	return InfoLevel
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	_, ok := levelNames[strings.ToUpper(strings.TrimSpace(level))]
	return ok
}

// Component returns a child of the global logger tagged with a component name.
// The child is captured at call time; call it after Init.
func Component(name string) zerolog.Logger {
	return Logger.With().Str(FieldComponent, name).Logger()
}

// Debug starts a new debug level log message.
func Debug() *zerolog.Event { return Logger.Debug() }

// Info starts a new info level log message.
func Info() *zerolog.Event { return Logger.Info() }

// Warn starts a new warn level log message.
func Warn() *zerolog.Event { return Logger.Warn() }

// Error starts a new error level log message.
func Error() *zerolog.Event { return Logger.Error() }

func init() {
	Init(DefaultConfig())
}
