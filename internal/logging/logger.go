// Package logging builds the process-wide zap logger: a human-readable
// console sink on stderr, plus an optional JSON file sink.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the level and sinks of the logger.
type Options struct {
	// Level is one of debug, info, warn or error.
	Level string

	// File, when set, receives every entry as JSON in addition to stderr.
	File string

	// Output receives the console entries. Nil means os.Stderr.
	Output io.Writer

	// Color forces colored level names on (true) or off (false). When nil
	// colors are used only if stderr is a terminal and NO_COLOR is unset.
	Color *bool
}

// New returns a logger and a cleanup function that flushes and closes the
// sinks. The cleanup function is never nil.
func New(opts Options) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		return nil, func() {}, fmt.Errorf("invalid log level: %w", err)
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	console := zapcore.Lock(os.Stderr)
	if opts.Output != nil {
		console = zapcore.Lock(zapcore.AddSync(opts.Output))
	}
	if useColor(opts.Color, opts.Output) {
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), console, level),
	}

	var file *os.File
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, func() {}, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err = os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to open log file: %w", err)
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(file), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	cleanup := func() {
		_ = logger.Sync()
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, cleanup, nil
}

func useColor(force *bool, out io.Writer) bool {
	if force != nil {
		return *force
	}
	if os.Getenv("NO_COLOR") != "" || strings.ToLower(os.Getenv("TERM")) == "dumb" {
		return false
	}
	if out == nil {
		out = os.Stderr
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
