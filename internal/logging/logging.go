package logging

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RedactedText replaces secrets in logged values
const RedactedText = "[REDACTED]"

var bearerPattern = regexp.MustCompile(`(?i)bearer\s+[^\s"',]+`)

// Options configures the run logger
type Options struct {
	Verbose bool
	// File receives a copy of every log entry. Empty disables the file sink.
	File string
	// Console defaults to os.Stdout
	Console io.Writer
}

// New builds a logger writing to the console and, when configured, to a log file.
// The returned close function syncs the logger and closes the file.
func New(opts Options) (*zap.Logger, func(), error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Verbose {
		level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(console), level),
	}

	var file *os.File
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))

	closeFn := func() {
		_ = logger.Sync()
		if file != nil {
			_ = file.Close()
		}
	}

	return logger, closeFn, nil
}

// Redact removes bearer tokens from s
func Redact(s string) string {
	return bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
}

// RedactError returns the redacted error message, or "" for nil
func RedactError(err error) string {
	if err == nil {
		return ""
	}
	return Redact(err.Error())
}

// Error is a zap field carrying a redacted error message
func Error(err error) zap.Field {
	return zap.String("error", RedactError(err))
}
