package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ekisa-team/scribepod/internal/env"
)

const (
	defaultLogFile    = "logs/scribepod.log"
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 5
	defaultMaxAgeDays = 28
)

// Options configures the logger built by New.
type Options struct {
	Level     slog.Level
	LogToFile bool
	LogFile   string
	Console   io.Writer
}

// Option mutates Options.
type Option func(*Options)

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(o *Options) {
		o.Level = level
	}
}

// WithLogToFile enables the rotating file sink.
func WithLogToFile(enabled bool) Option {
	return func(o *Options) {
		o.LogToFile = enabled
	}
}

// WithLogFile sets the path of the rotating log file.
func WithLogFile(path string) Option {
	return func(o *Options) {
		o.LogFile = path
	}
}

// WithConsole replaces stderr as the console sink.
func WithConsole(w io.Writer) Option {
	return func(o *Options) {
		o.Console = w
	}
}

// New builds a slog.Logger for the given environment.
// Development logs are colored text, production logs are JSON.
// When file logging is enabled, JSON records are also written to a rotating file.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := &Options{
		Level:   slog.LevelDebug,
		LogFile: defaultLogFile,
		Console: os.Stderr,
	}
	if environment.IsProduction() {
		o.Level = slog.LevelInfo
	}

	for _, opt := range opts {
		opt(o)
	}

	handlers := []slog.Handler{consoleHandler(environment, o)}

	if o.LogToFile {
		handlers = append(handlers, slog.NewJSONHandler(&lumberjack.Logger{
			Filename:   o.LogFile,
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
			Compress:   true,
		}, &slog.HandlerOptions{Level: o.Level}))
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}

	return slog.New(slogmulti.Fanout(handlers...))
}

func consoleHandler(environment env.Environment, o *Options) slog.Handler {
	if environment.IsProduction() {
		return slog.NewJSONHandler(o.Console, &slog.HandlerOptions{
			Level:     o.Level,
			AddSource: true,
		})
	}

	return tint.NewHandler(o.Console, &tint.Options{
		Level:      o.Level,
		TimeFormat: time.Kitchen,
		AddSource:  environment != env.Test,
	})
}
