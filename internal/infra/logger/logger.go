// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Output string // "stdout", "stderr", or a file path
	Format string // "console" or "json"; files default to json
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init configures the global zerolog logger. The returned closer releases
// the log file, if any.
func Init(cfg Config) (io.Closer, error) {
	level := ParseLevel(cfg.Level)

	writer, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.CallerMarshalFunc = shortCaller

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "json"
		if isConsole(cfg.Output) {
			format = "console"
		}
	}

	var ctx zerolog.Context
	if format == "console" {
		ctx = zerolog.New(zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.TimeOnly,
		}).With().Timestamp()
	} else {
		ctx = zerolog.New(writer).With().Timestamp()
	}
	// Caller only for DEBUG level
	if level == zerolog.DebugLevel {
		ctx = ctx.Caller()
	}

	logger := ctx.Logger()
	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger
	return closer, nil
}

func isConsole(output string) bool {
	switch strings.ToLower(output) {
	case "", "stdout", "stderr":
		return true
	}
	return false
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "stdout", "":
		return os.Stdout, nopCloser{}, nil
	case "stderr":
		return os.Stderr, nopCloser{}, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open log file %s", output)
	}
	return f, f, nil
}

// shortCaller renders the caller as dir/file.go:line.
func shortCaller(_ uintptr, file string, line int) string {
	parts := strings.Split(file, string(filepath.Separator))
	if len(parts) > 1 {
		return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// ParseLevel parses the log level string, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
